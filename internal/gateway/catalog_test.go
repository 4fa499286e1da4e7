package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog("gpt-4o-mini")

	p, err := c.Lookup("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Provider)
	assert.Equal(t, "openai/gpt-4o-mini", p.UpstreamName)

	_, err = c.Lookup("made-up-model")
	assert.ErrorIs(t, err, utils.ErrUnknownModel)
	assert.False(t, c.Has("made-up-model"))
}

func TestCatalogDefaultFallsBackToFirst(t *testing.T) {
	c := NewCatalog("missing",
		ModelProfile{ID: "a", Provider: "openai"},
		ModelProfile{ID: "b", Provider: "openai"},
	)
	assert.Equal(t, "a", c.Default().ID)
}

func TestCatalogIDsSorted(t *testing.T) {
	c := NewCatalog("b",
		ModelProfile{ID: "b"},
		ModelProfile{ID: "a"},
		ModelProfile{ID: "c"},
	)
	assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
}

func TestCostEstimate(t *testing.T) {
	p := ModelProfile{PricePer1K: 0.003}
	assert.InDelta(t, 0.0045, p.CostEstimate(1500), 1e-9)
	assert.Zero(t, p.CostEstimate(0))
}
