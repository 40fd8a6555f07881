package tools

// WeatherInput is the argument shape for weather_query.
type WeatherInput struct {
	Location string `json:"location" jsonschema:"City or country to fetch current weather for"`
}

// RetrieveInput is the argument shape for
// retrieve_weather_activity_clothing_info.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"What weather, activity, or clothing information to look up"`
}

// SearchInput is the argument shape for internet_search.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"Search query for quick facts, definitions, entities"`
	MaxRelated *int   `json:"max_related,omitempty" jsonschema:"Maximum related links to include (0-20)"`
}
