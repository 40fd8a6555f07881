package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// InvalidLocationSentinel is returned for placeholder locations. The model
// is expected to relay the embedded question to the user.
const InvalidLocationSentinel = "ERROR: invalid location. Ask the user: Which location (country/city)?"

// badLocations are placeholder values the model emits when it has no real
// location. Matched case-insensitively after trimming.
var badLocations = map[string]bool{
	"":        true,
	"?":       true,
	"unknown": true,
	"n/a":     true,
	"na":      true,
	"none":    true,
	"null":    true,
}

// WeatherReporter fetches a textual weather report for a location.
type WeatherReporter interface {
	Report(ctx context.Context, location string) (string, error)
}

// NewWeatherTool builds the weather_query definition.
//
// Placeholder locations short-circuit to InvalidLocationSentinel without
// touching the provider. Provider failures surface as tool-output text via
// the registry's error handling.
func NewWeatherTool(reporter WeatherReporter) (*Definition, error) {
	if reporter == nil {
		return nil, fmt.Errorf("weather reporter is required")
	}

	schema, err := resolveSchema[WeatherInput](nil)
	if err != nil {
		return nil, fmt.Errorf("weather tool: %w", err)
	}

	return &Definition{
		Kind:        KindWeather,
		Name:        WeatherToolName,
		Description: "Fetches real-time weather data for a specified location using OpenWeatherMap API.",
		schema:      schema,
		run: func(ctx context.Context, raw json.RawMessage) (string, error) {
			in, err := decode[WeatherInput](raw)
			if err != nil {
				return "", err
			}

			loc := strings.TrimSpace(in.Location)
			if badLocations[strings.ToLower(loc)] {
				return InvalidLocationSentinel, nil
			}
			return reporter.Report(ctx, loc)
		},
	}, nil
}
