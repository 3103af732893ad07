package memory

import (
	"strings"
	"time"
)

// Memory is an atomic observation contributed by a provider or an agent.
// Instances are treated as immutable once constructed.
type Memory struct {
	Text      string            `json:"text" validate:"required,min=1"`
	Relevance float64           `json:"relevance"`
	Timestamp int64             `json:"timestamp"` // epoch milliseconds
	Source    string            `json:"source" validate:"required,min=1"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DedupKey returns the identity used for deduplication: the trimmed,
// lowercased text.
func (m Memory) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(m.Text))
}

// Valid reports whether the memory carries usable text and source labels.
func (m Memory) Valid() bool {
	return strings.TrimSpace(m.Text) != "" && strings.TrimSpace(m.Source) != ""
}

// ClampRelevance returns a copy with Relevance forced into [0, 1].
func (m Memory) ClampRelevance() Memory {
	if m.Relevance < 0 {
		m.Relevance = 0
	}
	if m.Relevance > 1 {
		m.Relevance = 1
	}
	return m
}

// Context is an ordered collection of memories.
type Context struct {
	Memories []Memory `json:"memories"`
}

// TimeRange bounds a context query. Zero values mean unbounded on that side.
type TimeRange struct {
	Start int64 `json:"start,omitempty"` // epoch milliseconds
	End   int64 `json:"end,omitempty"`
}

// DefaultTopK is the truncation limit applied when a query does not name one.
const DefaultTopK = 50

// DefaultTimeRangeDays is the window reported in response metadata when the
// caller leaves the time range unspecified. Sources may use it as a filter
// hint; the core itself never filters by time.
const DefaultTimeRangeDays = 7

// Options is the query shape accepted by context reads.
type Options struct {
	RelevanceQuery string    `json:"relevance_query,omitempty"`
	TimeRange      TimeRange `json:"time_range,omitempty"`
	TopK           int       `json:"top_k,omitempty" validate:"omitempty,min=1,max=1000"`
	Categories     []string  `json:"categories,omitempty"`
	Format         string    `json:"format,omitempty" validate:"omitempty,oneof=plain structured"`
}

// EffectiveTopK resolves the truncation limit, applying the default and the
// provider's advertised maximum (0 = no provider cap).
func (o Options) EffectiveTopK(providerMax int) int {
	k := o.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if providerMax > 0 && k > providerMax {
		k = providerMax
	}
	return k
}

// EffectiveTimeRange resolves the range reported back to the caller,
// defaulting to the last DefaultTimeRangeDays days ending now.
func (o Options) EffectiveTimeRange(now time.Time) TimeRange {
	if o.TimeRange.Start != 0 || o.TimeRange.End != 0 {
		return o.TimeRange
	}
	return TimeRange{
		Start: now.AddDate(0, 0, -DefaultTimeRangeDays).UnixMilli(),
		End:   now.UnixMilli(),
	}
}
