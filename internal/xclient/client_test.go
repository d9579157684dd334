package xclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(ts *httptest.Server) *HTTPClient {
	return NewHTTPClient("test", WithBaseURL(ts.URL), WithTimeout(2*time.Second))
}

var exportOpts = TimelineOptions{
	MaxResults:  10,
	TweetFields: []string{"created_at", "public_metrics", "text"},
	Exclude:     []string{"retweets", "replies"},
}

func TestGetUserTweetsSendsQueryAndBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/44196397/tweets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization header: %q", got)
		}
		q := r.URL.Query()
		if q.Get("max_results") != "10" {
			t.Errorf("max_results: %q", q.Get("max_results"))
		}
		if q.Get("tweet.fields") != "created_at,public_metrics,text" {
			t.Errorf("tweet.fields: %q", q.Get("tweet.fields"))
		}
		if q.Get("exclude") != "retweets,replies" {
			t.Errorf("exclude: %q", q.Get("exclude"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"id":"2","text":"Hello","created_at":"2024-01-01T00:00:00.000Z",
				 "public_metrics":{"retweet_count":3,"like_count":10,"reply_count":1,"quote_count":0}},
				{"id":"1","text":"Older","created_at":"2023-12-31T23:00:00.000Z",
				 "public_metrics":{"retweet_count":0,"like_count":1,"reply_count":0,"quote_count":2}}
			],
			"meta": {"result_count": 2}
		}`))
	}))
	defer ts.Close()

	posts, err := newTestClient(ts).GetUserTweets(context.Background(), "44196397", exportOpts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	p := posts[0]
	if p.ID != "2" || p.Text != "Hello" || p.AuthorID != "44196397" {
		t.Fatalf("unexpected first post: %+v", p)
	}
	if !p.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at: %v", p.CreatedAt)
	}
	if p.RetweetCount != 3 || p.LikeCount != 10 || p.ReplyCount != 1 || p.QuoteCount != 0 {
		t.Fatalf("metrics: %+v", p)
	}
	if posts[1].QuoteCount != 2 {
		t.Fatalf("order not preserved: %+v", posts[1])
	}
}

func TestGetUserTweetsEmptyTimeline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	}))
	defer ts.Close()

	posts, err := newTestClient(ts).GetUserTweets(context.Background(), "1", exportOpts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}
}

func TestGetUserTweetsIgnoresNextToken(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.URL.Query().Get("pagination_token") != "" {
			t.Errorf("request must not carry a pagination token")
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"7","text":"a"},{"id":"6","text":"b"},{"id":"5","text":"c"},{"id":"4","text":"d"},
			{"id":"3","text":"e"},{"id":"2","text":"f"},{"id":"1","text":"g"}
		],"meta":{"result_count":7,"next_token":"p2"}}`))
	}))
	defer ts.Close()

	posts, err := newTestClient(ts).GetUserTweets(context.Background(), "1", exportOpts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 request, got %d", calls)
	}
	if len(posts) != 7 || posts[0].ID != "7" || posts[6].ID != "1" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}

func TestGetUserTweetsTrimsBelowPageFloor(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("max_results"); got != "5" {
			t.Errorf("max_results: %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"5","text":"a"},{"id":"4","text":"b"},{"id":"3","text":"c"},{"id":"2","text":"d"},{"id":"1","text":"e"}],"meta":{"result_count":5,"next_token":"p2"}}`))
	}))
	defer ts.Close()

	opts := exportOpts
	opts.MaxResults = 3
	posts, err := newTestClient(ts).GetUserTweets(context.Background(), "1", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 request, got %d", calls)
	}
	if len(posts) != 3 || posts[2].ID != "3" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}

func TestGetUserTweetsRateLimited(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("x-rate-limit-limit", "1500")
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", "1704067200")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).GetUserTweets(context.Background(), "1", exportOpts)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if errors.Is(err, ErrRemoteAPI) {
		t.Fatalf("rate limit must not match ErrRemoteAPI")
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.Remaining != 0 || rl.Reset.Unix() != 1704067200 {
		t.Fatalf("unexpected rate limit detail: %+v", rl)
	}
	if attempts != 1 {
		t.Fatalf("client must not retry, got %d attempts", attempts)
	}
}

func TestGetUserTweetsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized","type":"about:blank","status":401,"detail":"Unauthorized"}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).GetUserTweets(context.Background(), "1", exportOpts)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if !errors.Is(err, ErrRemoteAPI) || errors.Is(err, ErrRateLimited) {
		t.Fatalf("wrong classification for %v", err)
	}
}

func TestGetUserTweetsErrorsOnlyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"title":"Forbidden","detail":"User has been suspended: [1]."}]}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).GetUserTweets(context.Background(), "1", exportOpts)
	if !errors.Is(err, ErrRemoteAPI) {
		t.Fatalf("expected ErrRemoteAPI, got %v", err)
	}
}

func TestGetUserTweetsMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).GetUserTweets(context.Background(), "1", exportOpts)
	if !errors.Is(err, ErrRemoteAPI) {
		t.Fatalf("expected ErrRemoteAPI, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/by/username/elonmusk" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"44196397","name":"Elon Musk","username":"elonmusk"}}`))
	}))
	defer ts.Close()

	u, err := newTestClient(ts).GetUserByUsername(context.Background(), "elonmusk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "44196397" || u.Username != "elonmusk" {
		t.Fatalf("unexpected user: %+v", u)
	}
}
