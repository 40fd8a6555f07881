// Package weather wraps the OpenWeatherMap current-weather API and renders
// observations as a multi-line textual report suitable for a language model.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

var (
	// ErrMissingAPIKey indicates the client was built without a credential.
	ErrMissingAPIKey = errors.New("weather: missing API key")

	// ErrLocationNotFound indicates the provider does not know the location.
	ErrLocationNotFound = errors.New("weather: location not found")

	// ErrProviderUnavailable indicates a non-404 provider failure.
	ErrProviderUnavailable = errors.New("weather: provider unavailable")
)

// Client queries OpenWeatherMap for current conditions.
type Client struct {
	apiKey  string
	units   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a weather client. units is "metric" or "imperial".
func NewClient(apiKey, units string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if units == "" {
		units = "metric"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		apiKey:  apiKey,
		units:   units,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "weather"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// observation mirrors the subset of the OpenWeatherMap response we render.
type observation struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Rain map[string]float64 `json:"rain"`
	Name string             `json:"name"`
}

// Report fetches current conditions for location and renders them as a
// multi-line report. Provider failures come back as errors; the caller
// decides how to surface them to the model.
func (c *Client) Report(ctx context.Context, location string) (string, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", c.units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read weather response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %q", ErrLocationNotFound, location)
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("weather provider error", "status", resp.StatusCode, "location", location)
		return "", fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var obs observation
	if err := json.Unmarshal(body, &obs); err != nil {
		return "", fmt.Errorf("decode weather response: %w", err)
	}

	return c.render(location, &obs), nil
}

func (c *Client) render(location string, obs *observation) string {
	tempUnit := "°C"
	speedUnit := "m/s"
	if c.units == "imperial" {
		tempUnit = "°F"
		speedUnit = "mph"
	}

	desc := "unknown"
	if len(obs.Weather) > 0 {
		desc = obs.Weather[0].Description
	}

	rain := "none"
	if len(obs.Rain) > 0 {
		parts := make([]string, 0, len(obs.Rain))
		for window, mm := range obs.Rain {
			parts = append(parts, fmt.Sprintf("%.1fmm/%s", mm, window))
		}
		rain = strings.Join(parts, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "In %s, the current weather is as follows:\n", location)
	fmt.Fprintf(&b, "Detailed status: %s\n", desc)
	fmt.Fprintf(&b, "Wind speed: %.1f %s, direction: %d°\n", obs.Wind.Speed, speedUnit, obs.Wind.Deg)
	fmt.Fprintf(&b, "Humidity: %d%%\n", obs.Main.Humidity)
	fmt.Fprintf(&b, "Temperature:\n")
	fmt.Fprintf(&b, "  - Current: %.1f%s\n", obs.Main.Temp, tempUnit)
	fmt.Fprintf(&b, "  - High: %.1f%s\n", obs.Main.TempMax, tempUnit)
	fmt.Fprintf(&b, "  - Low: %.1f%s\n", obs.Main.TempMin, tempUnit)
	fmt.Fprintf(&b, "  - Feels like: %.1f%s\n", obs.Main.FeelsLike, tempUnit)
	fmt.Fprintf(&b, "Rain: %s\n", rain)
	fmt.Fprintf(&b, "Cloud cover: %d%%", obs.Clouds.All)
	return b.String()
}
