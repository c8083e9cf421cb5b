// Package weatherapi implements the current-conditions client against the
// WeatherAPI.com contract.
package weatherapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/httpx"
)

// DefaultBaseURL is the production endpoint for current conditions.
const DefaultBaseURL = "https://api.weatherapi.com/v1/current.json"

// Payload is the parsed current-conditions response.
type Payload struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
}

type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Localtime string  `json:"localtime"`
}

type Current struct {
	TempC      float64   `json:"temp_c"`
	TempF      float64   `json:"temp_f"`
	Condition  Condition `json:"condition"`
	WindKph    float64   `json:"wind_kph"`
	WindMph    float64   `json:"wind_mph"`
	WindDir    string    `json:"wind_dir"`
	PressureMb float64   `json:"pressure_mb"`
	PressureIn float64   `json:"pressure_in"`
	VisKm      float64   `json:"vis_km"`
	VisMiles   float64   `json:"vis_miles"`
	UV         float64   `json:"uv"`
	Cloud      int       `json:"cloud"`
	Humidity   int       `json:"humidity"`
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

// Client fetches current conditions over HTTPS.
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
		breaker: httpx.NewBreaker("weatherapi"),
	}
}

// NewWithBaseURL creates a client against a custom endpoint, for tests.
func NewWithBaseURL(apiKey, baseURL string, timeout time.Duration) *Client {
	c := New(apiKey, timeout)
	c.baseURL = baseURL
	return c
}

// FetchCurrent returns current conditions for the city query. A timeout,
// connection failure, or non-2xx status is a NetworkError; a malformed
// body is a ParseError.
func (c *Client) FetchCurrent(ctx context.Context, cityQuery string) (*Payload, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", c.apiKey)
		values.Set("q", cityQuery)

		req, err := http.NewRequest(http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := httpx.Do(ctx, c.client, c.breaker, httpx.DefaultBackoff, buildRequest)
	if err != nil {
		return nil, errors.NewNetwork("fetch current weather", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork("read weather response", err)
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewParse("parse weather response", err)
	}
	if payload.Location.Name == "" {
		return nil, errors.NewParse("weather response missing location", nil)
	}

	return &payload, nil
}
