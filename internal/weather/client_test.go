package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleObservation = `{
	"weather": [{"description": "scattered clouds"}],
	"main": {"temp": 18.4, "feels_like": 17.9, "temp_min": 16.2, "temp_max": 20.1, "humidity": 62},
	"wind": {"speed": 3.6, "deg": 250},
	"clouds": {"all": 40},
	"name": "Oslo"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", "metric", nil, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", "metric", nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewClient(\"\") = %v, want ErrMissingAPIKey", err)
	}
}

func TestReportRendersObservation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Oslo" {
			t.Errorf("query location = %q, want Oslo", got)
		}
		if got := r.URL.Query().Get("appid"); got != "test-key" {
			t.Errorf("appid = %q, want test-key", got)
		}
		w.Write([]byte(sampleObservation))
	})

	report, err := c.Report(context.Background(), "Oslo")
	if err != nil {
		t.Fatalf("Report() unexpected error: %v", err)
	}

	for _, want := range []string{
		"In Oslo, the current weather is as follows:",
		"Detailed status: scattered clouds",
		"Wind speed: 3.6 m/s, direction: 250°",
		"Humidity: 62%",
		"- Current: 18.4°C",
		"- Feels like: 17.9°C",
		"Rain: none",
		"Cloud cover: 40%",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("Report() missing %q in:\n%s", want, report)
		}
	}
}

func TestReportLocationNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	})

	if _, err := c.Report(context.Background(), "Nowhereville"); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("Report() = %v, want ErrLocationNotFound", err)
	}
}

func TestReportProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	if _, err := c.Report(context.Background(), "Oslo"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Report() = %v, want ErrProviderUnavailable", err)
	}
}

func TestReportImperialUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("units"); got != "imperial" {
			t.Errorf("units = %q, want imperial", got)
		}
		w.Write([]byte(sampleObservation))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", "imperial", nil, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	report, err := c.Report(context.Background(), "Miami")
	if err != nil {
		t.Fatalf("Report() unexpected error: %v", err)
	}
	if !strings.Contains(report, "°F") || !strings.Contains(report, "mph") {
		t.Errorf("Report() missing imperial units:\n%s", report)
	}
}
