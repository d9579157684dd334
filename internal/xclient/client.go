package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"xetl/internal/metrics"
	"xetl/internal/model"
)

const (
	DefaultBaseURL = "https://api.twitter.com/2"

	endpointUserByUsername = "users/by/username"
	endpointUserTweets     = "users/tweets"

	// X accepts max_results in [5,100] on the user timeline.
	minPageSize = 5
	maxPageSize = 100
)

// XClient defines methods we use from X API.
type XClient interface {
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserTweets(ctx context.Context, userID string, opts TimelineOptions) ([]model.Post, error)
}

// TimelineOptions selects what a user timeline read returns.
type TimelineOptions struct {
	MaxResults  int
	TweetFields []string
	// Exclude takes "retweets" and/or "replies".
	Exclude []string
}

// HTTPClient is a bearer-token client for X API v2. It does not retry or
// pace requests; throttling surfaces as *RateLimitError.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

func WithBaseURL(u string) Option {
	return func(c *HTTPClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewHTTPClient returns a client that sends bearerToken on every request.
// The token is used as issued; it is never refreshed.
func NewHTTPClient(bearerToken string, opts ...Option) *HTTPClient {
	hc := &http.Client{}
	if bearerToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})
		hc = oauth2.NewClient(context.Background(), src)
	}
	hc.Timeout = 15 * time.Second
	c := &HTTPClient{baseURL: DefaultBaseURL, httpClient: hc}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var out model.User
	if username == "" {
		return out, &APIError{Endpoint: endpointUserByUsername, Err: errors.New("empty username")}
	}
	u := fmt.Sprintf("%s/users/by/username/%s?user.fields=created_at", c.baseURL, url.PathEscape(username))
	var raw struct {
		Data struct {
			ID        string    `json:"id"`
			Name      string    `json:"name"`
			Username  string    `json:"username"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"data"`
		Errors []problem `json:"errors"`
	}
	if err := c.getJSON(ctx, endpointUserByUsername, u, &raw); err != nil {
		return out, err
	}
	if raw.Data.ID == "" {
		return out, &APIError{Endpoint: endpointUserByUsername, StatusCode: http.StatusOK, Detail: firstProblem(raw.Errors, "user not found")}
	}
	out = model.User{
		ID:        raw.Data.ID,
		Username:  raw.Data.Username,
		Name:      raw.Data.Name,
		CreatedAt: raw.Data.CreatedAt,
	}
	return out, nil
}

// GetUserTweets returns up to opts.MaxResults of the user's most recent
// posts, newest first, in one request. meta.next_token is never followed.
func (c *HTTPClient) GetUserTweets(ctx context.Context, userID string, opts TimelineOptions) ([]model.Post, error) {
	if userID == "" {
		return nil, &APIError{Endpoint: endpointUserTweets, Err: errors.New("empty user id")}
	}
	limit := opts.MaxResults
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(limit, minPageSize, maxPageSize)))
	if len(opts.TweetFields) > 0 {
		q.Set("tweet.fields", strings.Join(opts.TweetFields, ","))
	}
	if len(opts.Exclude) > 0 {
		q.Set("exclude", strings.Join(opts.Exclude, ","))
	}
	u := fmt.Sprintf("%s/users/%s/tweets?%s", c.baseURL, url.PathEscape(userID), q.Encode())

	var page struct {
		Data []struct {
			ID            string    `json:"id"`
			AuthorID      string    `json:"author_id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				RetweetCount int `json:"retweet_count"`
				ReplyCount   int `json:"reply_count"`
				LikeCount    int `json:"like_count"`
				QuoteCount   int `json:"quote_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Meta struct {
			ResultCount int    `json:"result_count"`
			NextToken   string `json:"next_token"`
		} `json:"meta"`
		Errors []problem `json:"errors"`
	}
	if err := c.getJSON(ctx, endpointUserTweets, u, &page); err != nil {
		return nil, err
	}
	// A 200 with only an errors array means the timeline itself was
	// not readable (suspended or unknown account).
	if len(page.Data) == 0 && len(page.Errors) > 0 {
		return nil, &APIError{Endpoint: endpointUserTweets, StatusCode: http.StatusOK, Detail: firstProblem(page.Errors, "")}
	}
	out := make([]model.Post, 0, len(page.Data))
	for _, d := range page.Data {
		author := d.AuthorID
		if author == "" {
			author = userID
		}
		out = append(out, model.Post{
			ID:           d.ID,
			AuthorID:     author,
			Text:         d.Text,
			CreatedAt:    d.CreatedAt,
			RetweetCount: d.PublicMetrics.RetweetCount,
			LikeCount:    d.PublicMetrics.LikeCount,
			ReplyCount:   d.PublicMetrics.ReplyCount,
			QuoteCount:   d.PublicMetrics.QuoteCount,
		})
	}
	// max_results has a floor of 5, so small limits are trimmed here.
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// problem is one entry of the v2 "errors" array.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func firstProblem(ps []problem, def string) string {
	for _, p := range ps {
		if p.Detail != "" {
			return p.Detail
		}
		if p.Title != "" {
			return p.Title
		}
	}
	return def
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(endpoint, "error")
		return &APIError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveAPIRequest(endpoint, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode == http.StatusTooManyRequests {
		return newRateLimitError(endpoint, resp.Header)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var p problem
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &p) == nil {
			detail = firstProblem([]problem{p}, detail)
		}
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Detail: detail}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
