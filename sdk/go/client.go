package dicecupsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Dicecup HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Roll represents an executed roll.
type Roll struct {
	ID         string `json:"id"`
	Input      string `json:"input"`
	Notation   string `json:"notation"`
	Value      int    `json:"value"`
	Trace      string `json:"trace"`
	Minimum    int    `json:"minimum"`
	Maximum    int    `json:"maximum"`
	Unbounded  bool   `json:"unbounded"`
	Seed       *int64 `json:"seed,omitempty"`
	Expression string `json:"expression,omitempty"`
	ActorID    string `json:"actor_id"`
	CreatedAt  string `json:"created_at"`
}

// Inspection reports the bounds of a notation.
type Inspection struct {
	Input     string `json:"input"`
	Notation  string `json:"notation"`
	Minimum   int    `json:"minimum"`
	Maximum   int    `json:"maximum"`
	Unbounded bool   `json:"unbounded"`
}

// Sample summarizes repeated rolls of a notation.
type Sample struct {
	Input    string  `json:"input"`
	Notation string  `json:"notation"`
	Trials   int     `json:"trials"`
	Seed     *int64  `json:"seed,omitempty"`
	Lowest   int     `json:"lowest"`
	Highest  int     `json:"highest"`
	Mean     float64 `json:"mean"`
}

// Expression is a named, saved notation.
type Expression struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Roll evaluates a notation. A non-nil seed makes the roll reproducible.
func (c *Client) Roll(ctx context.Context, notation string, seed *int64) (Roll, error) {
	body := map[string]any{"notation": notation}
	if seed != nil {
		body["seed"] = *seed
	}
	var resp Roll
	err := c.do(ctx, http.MethodPost, "v0/rolls", body, &resp)
	return resp, err
}

// Inspect returns the bounds of a notation without rolling it.
func (c *Client) Inspect(ctx context.Context, notation string) (Inspection, error) {
	var resp Inspection
	err := c.do(ctx, http.MethodPost, "v0/inspections", map[string]any{"notation": notation}, &resp)
	return resp, err
}

// Sample rolls a notation repeatedly and returns summary statistics.
func (c *Client) Sample(ctx context.Context, notation string, trials int, seed *int64) (Sample, error) {
	body := map[string]any{"notation": notation, "trials": trials}
	if seed != nil {
		body["seed"] = *seed
	}
	var resp Sample
	err := c.do(ctx, http.MethodPost, "v0/samples", body, &resp)
	return resp, err
}

// SaveExpression creates or updates a named expression.
func (c *Client) SaveExpression(ctx context.Context, name, notation, description string) (Expression, error) {
	body := map[string]any{"notation": notation}
	if description != "" {
		body["description"] = description
	}
	var resp Expression
	endpoint := fmt.Sprintf("v0/expressions/%s", url.PathEscape(name))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// Expressions lists saved expressions.
func (c *Client) Expressions(ctx context.Context) ([]Expression, error) {
	var resp []Expression
	err := c.do(ctx, http.MethodGet, "v0/expressions", nil, &resp)
	return resp, err
}

// GetExpression fetches a saved expression by name.
func (c *Client) GetExpression(ctx context.Context, name string) (Expression, error) {
	var resp Expression
	endpoint := fmt.Sprintf("v0/expressions/%s", url.PathEscape(name))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DeleteExpression removes a saved expression.
func (c *Client) DeleteExpression(ctx context.Context, name string) error {
	endpoint := fmt.Sprintf("v0/expressions/%s", url.PathEscape(name))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// RollExpression rolls a saved expression by name.
func (c *Client) RollExpression(ctx context.Context, name string, seed *int64) (Roll, error) {
	endpoint := fmt.Sprintf("v0/expressions/%s/rolls", url.PathEscape(name))
	if seed != nil {
		endpoint = fmt.Sprintf("%s?seed=%d", endpoint, *seed)
	}
	var resp Roll
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
