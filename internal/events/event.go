// Package events receives Slack app_mention events and drives the answer
// pipeline for each one.
package events

import "strings"

// InboundEvent is a normalized mention, whether it arrived over the HTTP
// events endpoint or the socket transport.
type InboundEvent struct {
	EventID   string
	UserID    string
	BotID     string
	ChannelID string
	Text      string
	TS        string
	ThreadTS  string
}

// DedupKey identifies the event for duplicate suppression. Slack retries
// reuse the event_id; synthetic events fall back to ts:channel.
func (ev InboundEvent) DedupKey() string {
	if id := strings.TrimSpace(ev.EventID); id != "" {
		return id
	}
	return strings.TrimSpace(ev.TS) + ":" + strings.TrimSpace(ev.ChannelID)
}

// ThreadAnchor is the timestamp the reply threads under. A mention inside an
// existing thread carries thread_ts; a top-level mention starts its own.
func (ev InboundEvent) ThreadAnchor() string {
	if ts := strings.TrimSpace(ev.ThreadTS); ts != "" {
		return ts
	}
	return strings.TrimSpace(ev.TS)
}
