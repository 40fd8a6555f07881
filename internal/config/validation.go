package config

import (
	"fmt"
	"net"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and model
	if !slices.Contains([]string{ProviderGoogleAI, ProviderOpenAI, ProviderOllama}, c.Provider) {
		return fmt.Errorf("%w: %q (want googleai, openai, or ollama)", ErrInvalidProvider, c.Provider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Completion-service credentials per provider. Ollama is local and
	// needs none.
	switch c.Provider {
	case ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	}

	// 2. Weather provider credential. Required unconditionally: the agent
	// refuses to start without its weather tool.
	if c.OpenWeatherMapAPIKey == "" {
		return fmt.Errorf("%w: OPENWEATHERMAP_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	// 3. Planning loop bounds
	if c.MaxTurns < 1 || c.MaxTurns > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if c.RequestTimeoutSec < 1 || c.RequestTimeoutSec > 600 {
		return fmt.Errorf("%w: must be between 1 and 600 seconds, got %d", ErrInvalidRequestTimeout, c.RequestTimeoutSec)
	}

	// 4. Retrieval
	if c.RetrieveTopK < 1 || c.RetrieveTopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidRetrieveTopK, c.RetrieveTopK)
	}
	if c.RerankTopN < 1 || c.RerankTopN > c.RetrieveTopK {
		return fmt.Errorf("%w: must be between 1 and retrieve_top_k (%d), got %d",
			ErrInvalidRerankTopN, c.RetrieveTopK, c.RerankTopN)
	}

	// 5. Web search
	if c.SearchConcurrency < 1 || c.SearchConcurrency > 32 {
		return fmt.Errorf("%w: must be between 1 and 32, got %d", ErrInvalidSearchConcurrency, c.SearchConcurrency)
	}
	if c.SearchMaxRelated < 0 || c.SearchMaxRelated > 20 {
		return fmt.Errorf("%w: must be between 0 and 20, got %d", ErrInvalidMaxRelated, c.SearchMaxRelated)
	}

	// 6. Source caps
	if c.MaxRetrievalSources < 0 {
		return fmt.Errorf("%w: max_retrieval_sources cannot be negative, got %d", ErrInvalidSourceCap, c.MaxRetrievalSources)
	}
	if c.MaxTotalSources < 1 {
		return fmt.Errorf("%w: max_total_sources must be at least 1, got %d", ErrInvalidSourceCap, c.MaxTotalSources)
	}

	// 7. PostgreSQL
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// 8. HTTP server
	if _, _, err := net.SplitHostPort(c.ServerAddr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidServerAddr, c.ServerAddr, err)
	}

	return nil
}
