// Package tools defines the closed set of agent tools and their dispatch.
//
// The tool surface is a static enum, not a plugin system: weather lookup,
// knowledge retrieval, and internet search. Each tool carries a derived JSON
// schema that is resolved once at registry construction and validated on
// every dispatch. Tool failures are returned as sentinel strings inside the
// tool output so the model can react to them; dispatch itself never fails
// the request.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

// Kind identifies one of the closed set of tools.
type Kind int

const (
	KindWeather Kind = iota
	KindRetrieve
	KindSearch
)

// String returns the step name used in latency breakdowns.
func (k Kind) String() string {
	switch k {
	case KindWeather:
		return "weather_query"
	case KindRetrieve:
		return "retrieve"
	case KindSearch:
		return "internet_search"
	default:
		return "unknown"
	}
}

// Model-visible tool names.
const (
	WeatherToolName  = "weather_query"
	RetrieveToolName = "retrieve_weather_activity_clothing_info"
	SearchToolName   = "internet_search"
)

// Definition is one dispatchable tool.
type Definition struct {
	Kind        Kind
	Name        string
	Description string

	schema *jsonschema.Resolved
	run    func(ctx context.Context, args json.RawMessage) (string, error)
}

// Outcome is the normalized record of one tool dispatch. The planner hands
// Outcomes to the source extractor and telemetry; Output always holds text,
// sentinel error strings included.
type Outcome struct {
	Tool   string
	Kind   Kind
	Args   string
	Output string
}

// Registry holds the static dispatch table.
//
// Registry is safe for concurrent use after construction.
type Registry struct {
	byName map[string]*Definition
	order  []*Definition
	logger *slog.Logger
}

// NewRegistry builds the dispatch table from the given definitions.
func NewRegistry(logger *slog.Logger, defs ...*Definition) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byName: make(map[string]*Definition, len(defs)),
		logger: logger.With("component", "tools"),
	}
	for _, d := range defs {
		if d == nil {
			return nil, fmt.Errorf("nil tool definition")
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d)
	}
	return r, nil
}

// Definitions returns tools in registration order.
func (r *Registry) Definitions() []*Definition {
	return r.order
}

// Register defines every tool with genkit so the model sees its schema, and
// returns the refs for ai.WithTools. The handlers delegate to Dispatch, but
// the planner runs with ReturnToolRequests and performs dispatch itself.
func (r *Registry) Register(g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(r.order))
	for _, d := range r.order {
		def := d
		tool := genkit.DefineTool(g, def.Name, def.Description,
			func(toolCtx *ai.ToolContext, input map[string]any) (string, error) {
				return r.Dispatch(toolCtx.Context, def.Name, input).Output, nil
			})
		refs = append(refs, tool)
	}
	return refs
}

// Dispatch validates args against the tool schema and runs the tool.
// Every failure mode lands in Outcome.Output as a sentinel string; the
// returned Outcome is always usable.
func (r *Registry) Dispatch(ctx context.Context, name string, args any) Outcome {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	out := Outcome{Tool: name, Args: string(raw)}

	def, ok := r.byName[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		out.Output = fmt.Sprintf("ERROR: unknown tool: %s", name)
		return out
	}
	out.Kind = def.Kind

	if err := def.schema.Validate(args); err != nil {
		r.logger.Warn("tool argument validation failed", "tool", name, "error", err)
		out.Output = fmt.Sprintf("ERROR: invalid arguments for %s: %v", name, err)
		return out
	}

	result, err := def.run(ctx, raw)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", name, "error", err)
		out.Output = fmt.Sprintf("ERROR: %s failed: %v", name, err)
		return out
	}
	out.Output = result
	return out
}

// resolveSchema derives and resolves the JSON schema for In once.
func resolveSchema[In any](mutate func(*jsonschema.Schema)) (*jsonschema.Resolved, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema: %w", err)
	}
	if mutate != nil {
		mutate(schema)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return resolved, nil
}

func decode[In any](raw json.RawMessage) (In, error) {
	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("decode arguments: %w", err)
	}
	return in, nil
}
