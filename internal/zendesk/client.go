// Package zendesk is a minimal helpdesk REST client covering the three
// endpoints this bot uses: help-center article search, ticket listing and
// ticket comments.
package zendesk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quailyquaily/answerbot/internal/apierr"
)

type Client struct {
	http      *http.Client
	baseURL   string
	subdomain string
	email     string
	apiToken  string
}

type ClientOptions struct {
	HTTPClient *http.Client
	// BaseURL overrides the https://<subdomain>.zendesk.com default; used by
	// tests to point at a local server.
	BaseURL   string
	Subdomain string
	Email     string
	APIToken  string
}

func NewClient(opts ClientOptions) (*Client, error) {
	subdomain := strings.TrimSpace(opts.Subdomain)
	email := strings.TrimSpace(opts.Email)
	apiToken := strings.TrimSpace(opts.APIToken)
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		if subdomain == "" {
			return nil, fmt.Errorf("zendesk subdomain is required")
		}
		baseURL = "https://" + subdomain + ".zendesk.com"
	}
	if email == "" {
		return nil, fmt.Errorf("zendesk email is required")
	}
	if apiToken == "" {
		return nil, fmt.Errorf("zendesk api token is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		subdomain: subdomain,
		email:     email,
		apiToken:  apiToken,
	}, nil
}

type Article struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type Ticket struct {
	ID          int64  `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type articleSearchResponse struct {
	Results []Article `json:"results"`
}

// SearchArticles runs a keyword search against the help center and returns
// at most limit results as-is, without re-scoring.
func (c *Client) SearchArticles(ctx context.Context, query string, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 3
	}
	path := "/api/v2/help_center/articles/search.json?query=" + url.QueryEscape(strings.TrimSpace(query))
	var out articleSearchResponse
	if err := c.getJSON(ctx, "zendesk article search", path, &out); err != nil {
		return nil, err
	}
	results := out.Results
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type ticketListResponse struct {
	Tickets  []Ticket `json:"tickets"`
	NextPage string   `json:"next_page"`
}

// ListTickets pages through the ticket listing, newest page first, until max
// tickets are collected or the listing is exhausted.
func (c *Client) ListTickets(ctx context.Context, max int) ([]Ticket, error) {
	if max <= 0 {
		max = 100
	}
	next := c.baseURL + "/api/v2/tickets.json?page[size]=100"
	var tickets []Ticket
	for next != "" && len(tickets) < max {
		var out ticketListResponse
		if err := c.getJSONURL(ctx, "zendesk ticket list", next, &out); err != nil {
			return nil, err
		}
		tickets = append(tickets, out.Tickets...)
		next = strings.TrimSpace(out.NextPage)
	}
	if len(tickets) > max {
		tickets = tickets[:max]
	}
	return tickets, nil
}

type ticketCommentsResponse struct {
	Comments []struct {
		Body string `json:"body"`
	} `json:"comments"`
}

// TicketComments returns the comment bodies of one ticket in posting order.
func (c *Client) TicketComments(ctx context.Context, ticketID int64) ([]string, error) {
	path := fmt.Sprintf("/api/v2/tickets/%d/comments.json", ticketID)
	var out ticketCommentsResponse
	if err := c.getJSON(ctx, "zendesk ticket comments", path, &out); err != nil {
		return nil, err
	}
	bodies := make([]string, 0, len(out.Comments))
	for _, comment := range out.Comments {
		bodies = append(bodies, comment.Body)
	}
	return bodies, nil
}

// TicketURL is the agent-facing link stored alongside each embedded chunk.
func (c *Client) TicketURL(ticketID int64) string {
	return fmt.Sprintf("%s/agent/tickets/%d", c.baseURL, ticketID)
}

func (c *Client) getJSON(ctx context.Context, service, path string, out any) error {
	return c.getJSONURL(ctx, service, c.baseURL+path, out)
}

func (c *Client) getJSONURL(ctx context.Context, service, rawURL string, out any) error {
	if c == nil || c.http == nil {
		return &apierr.TransportError{Service: service, Err: fmt.Errorf("zendesk client is not initialized")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &apierr.TransportError{Service: service, Err: err}
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &apierr.TransportError{Service: service, Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &apierr.TransportError{Service: service, Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apierr.UpstreamError{Service: service, Status: resp.StatusCode, Code: upstreamCode(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apierr.ParseError{Service: service, Err: err}
	}
	return nil
}

func (c *Client) authHeader() string {
	creds := c.email + "/token:" + c.apiToken
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func upstreamCode(raw []byte) string {
	var body struct {
		Error       string `json:"error"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if strings.TrimSpace(body.Error) != "" {
		return strings.TrimSpace(body.Error)
	}
	return strings.TrimSpace(body.Description)
}
