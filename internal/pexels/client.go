// Package pexels implements the photo-search client against the Pexels
// /v1/search contract.
package pexels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/httpx"
)

// DefaultBaseURL is the production search endpoint.
const DefaultBaseURL = "https://api.pexels.com/v1/search"

// SearchResult is the parsed search response.
type SearchResult struct {
	TotalResults int     `json:"total_results"`
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	Photos       []Photo `json:"photos"`
}

// Photo is one search hit.
type Photo struct {
	ID           int64    `json:"id"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	URL          string   `json:"url"`
	Photographer string   `json:"photographer"`
	Src          PhotoSrc `json:"src"`
}

// PhotoSrc holds the per-resolution variants of a photo.
type PhotoSrc struct {
	Original  string `json:"original"`
	Large2x   string `json:"large2x"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Portrait  string `json:"portrait"`
	Landscape string `json:"landscape"`
	Tiny      string `json:"tiny"`
}

// Client searches Pexels for photos.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates a client with the given API key and request timeout.
func New(apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: httpx.NewBreaker("pexels"),
	}
}

// NewWithBaseURL creates a client against a custom endpoint, for tests.
func NewWithBaseURL(apiKey, baseURL string, timeout time.Duration) *Client {
	c := New(apiKey, timeout)
	c.baseURL = baseURL
	return c
}

// Search returns up to perPage photos matching query.
func (c *Client) Search(ctx context.Context, query string, perPage int) (*SearchResult, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("query", query)
		values.Set("per_page", strconv.Itoa(perPage))

		req, err := http.NewRequest(http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		return req, nil
	}

	resp, err := httpx.Do(ctx, c.client, c.breaker, httpx.DefaultBackoff, buildRequest)
	if err != nil {
		return nil, errors.NewNetwork("search photos", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork("read search response", err)
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewParse("parse search response", err)
	}

	return &result, nil
}

// FirstLargeURL searches for one photo and returns its large-resolution
// URL, or "" when the search has no usable result.
func (c *Client) FirstLargeURL(ctx context.Context, query string) (string, error) {
	result, err := c.Search(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(result.Photos) == 0 {
		return "", nil
	}
	return result.Photos[0].Src.Large, nil
}
