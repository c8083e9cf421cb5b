package weatherapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skycastapp/skycast/internal/errors"
)

const sampleBody = `{
	"location": {
		"name": "Beijing",
		"region": "Beijing",
		"country": "China",
		"lat": 39.93,
		"lon": 116.39,
		"localtime": "2024-05-01 12:00"
	},
	"current": {
		"temp_c": 21.0,
		"temp_f": 69.8,
		"condition": {"text": "Heavy rain", "icon": "//cdn.weatherapi.com/icon.png", "code": 1195},
		"wind_kph": 15.1,
		"wind_dir": "NE",
		"pressure_mb": 1012.0,
		"vis_km": 8.0,
		"uv": 3.0,
		"cloud": 75,
		"humidity": 88
	}
}`

func TestFetchCurrent_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("q"); got != "Beijing" {
			t.Errorf("q = %q, want Beijing", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL, 2*time.Second)
	payload, err := client.FetchCurrent(context.Background(), "Beijing")
	if err != nil {
		t.Fatalf("FetchCurrent failed: %v", err)
	}

	if payload.Location.Name != "Beijing" || payload.Location.Country != "China" {
		t.Errorf("location = %+v", payload.Location)
	}
	if payload.Current.TempC != 21.0 {
		t.Errorf("TempC = %v, want 21.0", payload.Current.TempC)
	}
	if payload.Current.Condition.Text != "Heavy rain" {
		t.Errorf("condition = %q, want Heavy rain", payload.Current.Condition.Text)
	}
	if payload.Current.WindDir != "NE" || payload.Current.Cloud != 75 {
		t.Errorf("current = %+v", payload.Current)
	}
}

func TestFetchCurrent_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewWithBaseURL("bad-key", server.URL, 2*time.Second)
	_, err := client.FetchCurrent(context.Background(), "Beijing")
	if !errors.Is(err, errors.ErrNetwork) {
		t.Errorf("err = %v, want NETWORK", err)
	}
}

func TestFetchCurrent_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{truncated"))
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL, 2*time.Second)
	_, err := client.FetchCurrent(context.Background(), "Beijing")
	if !errors.Is(err, errors.ErrParse) {
		t.Errorf("err = %v, want PARSE", err)
	}
}

func TestFetchCurrent_EmptyLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"location": {}, "current": {}}`))
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL, 2*time.Second)
	_, err := client.FetchCurrent(context.Background(), "Beijing")
	if !errors.Is(err, errors.ErrParse) {
		t.Errorf("err = %v, want PARSE", err)
	}
}

func TestFetchCurrent_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := NewWithBaseURL("test-key", server.URL, time.Second)
	_, err := client.FetchCurrent(context.Background(), "Beijing")
	if !errors.Is(err, errors.ErrNetwork) {
		t.Errorf("err = %v, want NETWORK", err)
	}
}
