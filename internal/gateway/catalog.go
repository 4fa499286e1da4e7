package gateway

import (
	"sort"

	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

type LatencyClass string

const (
	LatencyFast     LatencyClass = "fast"
	LatencyBalanced LatencyClass = "balanced"
	LatencyQuality  LatencyClass = "quality"
)

// ModelProfile is one static catalog entry. The catalog is read-only shared
// configuration and is never mutated by requests.
type ModelProfile struct {
	ID           string       `json:"id"`
	Provider     string       `json:"provider"`
	UpstreamName string       `json:"upstream_name"`
	PricePer1K   float64      `json:"price_per_1k_tokens"`
	MaxTokens    int          `json:"max_tokens"`
	Latency      LatencyClass `json:"latency_class"`
}

// CostEstimate approximates the dollar cost of a token count.
func (p ModelProfile) CostEstimate(tokens int) float64 {
	return float64(tokens) / 1000 * p.PricePer1K
}

type Catalog struct {
	profiles  map[string]ModelProfile
	defaultID string
}

func NewCatalog(defaultID string, profiles ...ModelProfile) *Catalog {
	m := make(map[string]ModelProfile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	if _, ok := m[defaultID]; !ok && len(profiles) > 0 {
		defaultID = profiles[0].ID
	}
	return &Catalog{profiles: m, defaultID: defaultID}
}

func (c *Catalog) Lookup(id string) (ModelProfile, error) {
	p, ok := c.profiles[id]
	if !ok {
		return ModelProfile{}, utils.ErrUnknownModel
	}
	return p, nil
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.profiles[id]
	return ok
}

func (c *Catalog) Default() ModelProfile { return c.profiles[c.defaultID] }

func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.profiles))
	for id := range c.profiles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DefaultCatalog lists the models the service is priced for. OpenAI-style
// ids route through the OpenRouter-compatible provider; gemini goes to
// Vertex directly.
func DefaultCatalog(defaultID string) *Catalog {
	return NewCatalog(defaultID,
		ModelProfile{ID: "gpt-4o-mini", Provider: "openai", UpstreamName: "openai/gpt-4o-mini", PricePer1K: 0.00015, MaxTokens: 16384, Latency: LatencyBalanced},
		ModelProfile{ID: "gpt-4o", Provider: "openai", UpstreamName: "openai/gpt-4o", PricePer1K: 0.0025, MaxTokens: 16384, Latency: LatencyQuality},
		ModelProfile{ID: "gpt-4", Provider: "openai", UpstreamName: "openai/gpt-4", PricePer1K: 0.03, MaxTokens: 8192, Latency: LatencyQuality},
		ModelProfile{ID: "gpt-3.5-turbo", Provider: "openai", UpstreamName: "openai/gpt-3.5-turbo-16k", PricePer1K: 0.003, MaxTokens: 16384, Latency: LatencyFast},
		ModelProfile{ID: "claude-3-haiku", Provider: "openai", UpstreamName: "anthropic/claude-3-haiku", PricePer1K: 0.00025, MaxTokens: 4096, Latency: LatencyFast},
		ModelProfile{ID: "claude-3-sonnet", Provider: "openai", UpstreamName: "anthropic/claude-3-sonnet", PricePer1K: 0.003, MaxTokens: 4096, Latency: LatencyBalanced},
		ModelProfile{ID: "llama-3.1-8b", Provider: "openai", UpstreamName: "meta-llama/llama-3.1-8b-instruct", PricePer1K: 0.000015, MaxTokens: 8192, Latency: LatencyFast},
		ModelProfile{ID: "llama-3.1-70b", Provider: "openai", UpstreamName: "meta-llama/llama-3.1-70b-instruct", PricePer1K: 0.0001, MaxTokens: 8192, Latency: LatencyBalanced},
		ModelProfile{ID: "mistral-7b", Provider: "openai", UpstreamName: "mistralai/mistral-7b-instruct", PricePer1K: 0.000028, MaxTokens: 8192, Latency: LatencyFast},
		ModelProfile{ID: "gemini-1.5-flash", Provider: "vertex", UpstreamName: "gemini-1.5-flash", PricePer1K: 0.00015, MaxTokens: 8192, Latency: LatencyFast},
	)
}
