package cmd

import (
	pkghttp "FactVerse/backend/go/pkg/http"
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

// apiClient talks to the FactVerse REST API.
type apiClient struct {
	base string
	hc   *pkghttp.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		hc:   pkghttp.NewClientWith(&http.Client{Timeout: 60 * time.Second}, nil),
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) (http.Header, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			return resp.Header, &pkghttp.StatusError{StatusCode: resp.StatusCode, Body: eb.Error}
		}
		return resp.Header, &pkghttp.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.Header, fmt.Errorf("decode response: %w", err)
	}
	return resp.Header, nil
}

type generateBody struct {
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count,omitempty"`
}

// Generate returns the fact and the name of the backend that produced it.
func (c *apiClient) Generate(ctx context.Context, body generateBody) (fact, string, error) {
	var f fact
	h, err := c.do(ctx, http.MethodPost, "/api/facts/generate", nil, body, &f)
	if err != nil {
		return f, "", err
	}
	return f, h.Get("X-Fact-Backend"), nil
}

type batchResponse struct {
	Facts    []fact `json:"facts"`
	Metadata struct {
		Requested int      `json:"requested"`
		Generated int      `json:"generated"`
		Errors    []string `json:"errors"`
	} `json:"metadata"`
}

func (c *apiClient) Batch(ctx context.Context, body generateBody) (*batchResponse, error) {
	var out batchResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/facts/generate/batch", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Random(ctx context.Context, category string) (fact, error) {
	var f fact
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	_, err := c.do(ctx, http.MethodGet, "/api/facts/random", q, nil, &f)
	return f, err
}

func (c *apiClient) Get(ctx context.Context, id string) (fact, error) {
	var f fact
	_, err := c.do(ctx, http.MethodGet, "/api/facts/"+url.PathEscape(id), nil, nil, &f)
	return f, err
}

func (c *apiClient) Like(ctx context.Context, id string) (int, error) {
	var out struct {
		Likes int `json:"likes"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/facts/"+url.PathEscape(id)+"/like", nil, nil, &out)
	return out.Likes, err
}

type pageResponse struct {
	Facts      []fact     `json:"facts"`
	Pagination pagination `json:"pagination"`
}

func (c *apiClient) Search(ctx context.Context, query, category, difficulty string, page, limit int) (*pageResponse, error) {
	q := url.Values{"q": {query}}
	if category != "" {
		q.Set("category", category)
	}
	if difficulty != "" {
		q.Set("difficulty", difficulty)
	}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))

	var out pageResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/facts/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Trending(ctx context.Context, limit int) ([]fact, error) {
	var out []fact
	_, err := c.do(ctx, http.MethodGet, "/api/facts/trending", url.Values{"limit": {fmt.Sprint(limit)}}, nil, &out)
	return out, err
}

func (c *apiClient) Stats(ctx context.Context) (*factStats, error) {
	var out factStats
	if _, err := c.do(ctx, http.MethodGet, "/api/facts/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Analyze(ctx context.Context, text string) (*analysis, error) {
	var out analysis
	if _, err := c.do(ctx, http.MethodPost, "/api/ai/analyze", nil, map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
