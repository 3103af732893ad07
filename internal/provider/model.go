package provider

import (
	"time"

	"github.com/contexthub-project/contexthub/internal/memory"
	"github.com/contexthub-project/contexthub/internal/result"
)

// Capabilities advertises what a provider supports.
type Capabilities struct {
	Read       bool     `json:"read"`
	Write      bool     `json:"write"`
	MaxTopK    int      `json:"max_top_k,omitempty"`
	Formats    []string `json:"formats,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Record is a provider's identity and capability advertisement.
type Record struct {
	ProviderID   string       `json:"provider_id" validate:"required,min=1,max=128"`
	ProviderName string       `json:"provider_name" validate:"required,min=1,max=255"`
	Version      string       `json:"version" validate:"required,min=1,max=64"`
	Capabilities Capabilities `json:"capabilities"`
}

// ResultMetadata describes how a context result was produced.
type ResultMetadata struct {
	ProviderID   string           `json:"provider_id"`
	ProviderName string           `json:"provider_name"`
	Version      string           `json:"version"`
	GeneratedAt  time.Time        `json:"generated_at"`
	TimeRange    memory.TimeRange `json:"time_range"`
	Categories   []string         `json:"categories,omitempty"`
}

// ContextResult is the read-path envelope. Exactly one of Context or Error
// is meaningful depending on Success.
type ContextResult struct {
	Success  bool            `json:"success"`
	Context  *memory.Context `json:"context,omitempty"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`
	Error    *result.Error   `json:"error,omitempty"`
}

// HasData reports whether the result succeeded with at least one memory.
func (r ContextResult) HasData() bool {
	return r.Success && r.Context != nil && len(r.Context.Memories) > 0
}

// WriteResult is the write-path envelope.
type WriteResult struct {
	Success   bool          `json:"success"`
	ContextID string        `json:"context_id,omitempty"`
	Accepted  int           `json:"accepted"`
	Rejected  int           `json:"rejected"`
	Error     *result.Error `json:"error,omitempty"`
}

func failedContext(err *result.Error) ContextResult {
	return ContextResult{Success: false, Error: err}
}

func failedWrite(err *result.Error) WriteResult {
	return WriteResult{Success: false, Error: err}
}
