// Package social queries the X recent-search API for hashtag posts.
package social

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
)

// ErrRateLimited is returned when the API answers 429.
var ErrRateLimited = errors.New("social search rate limit exceeded")

// recentSearchWindow is how far back the recent-search endpoint accepts start_time.
const recentSearchWindow = 7 * 24 * time.Hour

type Post struct {
	ID        string
	Author    string
	CreatedAt time.Time
	HasMedia  bool
}

type Query struct {
	Handle  string // with or without "@"
	Hashtag string
	Since   time.Time
	Limit   int
}

type Searcher interface {
	Search(ctx context.Context, q Query) ([]Post, error)
}

type xSearcher struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// NewXSearcher builds a client that authenticates every request with the app bearer token.
func NewXSearcher(ctx context.Context, bearerToken, baseURL string) Searcher {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = 30 * time.Second

	return &xSearcher{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

type searchResponse struct {
	Data []struct {
		ID          string    `json:"id"`
		CreatedAt   time.Time `json:"created_at"`
		Attachments *struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

func (s *xSearcher) Search(ctx context.Context, q Query) ([]Post, error) {
	author := strings.TrimPrefix(q.Handle, "@")

	params := url.Values{}
	params.Set("query", fmt.Sprintf("from:%s %s", author, q.Hashtag))
	params.Set("max_results", strconv.Itoa(clampLimit(q.Limit)))
	params.Set("tweet.fields", "created_at,attachments")

	// The endpoint rejects start_time older than its window.
	earliest := s.now().Add(-recentSearchWindow).Add(time.Minute)
	since := q.Since
	if since.Before(earliest) {
		since = earliest
	}
	params.Set("start_time", since.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/2/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("social search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode social search response: %w", err)
	}

	posts := make([]Post, 0, len(payload.Data))
	for _, d := range payload.Data {
		posts = append(posts, Post{
			ID:        d.ID,
			Author:    "@" + strings.ToLower(author),
			CreatedAt: d.CreatedAt,
			HasMedia:  d.Attachments != nil && len(d.Attachments.MediaKeys) > 0,
		})
	}
	return posts, nil
}

// clampLimit keeps max_results inside the API's accepted [10, 100] range.
func clampLimit(n int) int {
	if n < 10 {
		return 10
	}
	if n > 100 {
		return 100
	}
	return n
}
