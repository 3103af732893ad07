package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_DedupKey(t *testing.T) {
	m := Memory{Text: "  Prefers Dark Mode "}
	assert.Equal(t, "prefers dark mode", m.DedupKey())
}

func TestMemory_Valid(t *testing.T) {
	assert.True(t, Memory{Text: "x", Source: "s"}.Valid())
	assert.False(t, Memory{Text: "   ", Source: "s"}.Valid())
	assert.False(t, Memory{Text: "x", Source: ""}.Valid())
}

func TestMemory_ClampRelevance(t *testing.T) {
	assert.Equal(t, 0.0, Memory{Relevance: -0.5}.ClampRelevance().Relevance)
	assert.Equal(t, 1.0, Memory{Relevance: 1.7}.ClampRelevance().Relevance)
	assert.Equal(t, 0.42, Memory{Relevance: 0.42}.ClampRelevance().Relevance)
}

func TestOptions_EffectiveTopK(t *testing.T) {
	assert.Equal(t, DefaultTopK, Options{}.EffectiveTopK(0))
	assert.Equal(t, 10, Options{TopK: 10}.EffectiveTopK(0))
	assert.Equal(t, 20, Options{TopK: 100}.EffectiveTopK(20))
	assert.Equal(t, DefaultTopK, Options{}.EffectiveTopK(200))
}

func TestOptions_EffectiveTimeRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr := Options{}.EffectiveTimeRange(now)
	assert.Equal(t, now.UnixMilli(), tr.End)
	assert.Equal(t, now.AddDate(0, 0, -7).UnixMilli(), tr.Start)

	explicit := TimeRange{Start: 1, End: 2}
	assert.Equal(t, explicit, Options{TimeRange: explicit}.EffectiveTimeRange(now))
}
