package writeback

import (
	"fmt"
	"time"

	"github.com/contexthub-project/contexthub/internal/memory"
)

// ContextSource describes how an agent obtained the submitted context.
type ContextSource struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// AgentContext is a caller-submitted context bundle pending processing.
type AgentContext struct {
	AgentID     string          `json:"agent_id" validate:"required,min=1"`
	AgentName   string          `json:"agent_name,omitempty"`
	AgentType   string          `json:"agent_type,omitempty"`
	Memories    []memory.Memory `json:"memories" validate:"required,min=1,dive"`
	ContextType string          `json:"context_type,omitempty"`
	Timestamp   int64           `json:"timestamp"` // epoch milliseconds
	Domain      string          `json:"domain,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	ExpiresAt   int64           `json:"expires_at,omitempty"` // epoch milliseconds
	Source      ContextSource   `json:"source,omitempty"`
}

// ID derives the storage key: agentID_sessionID_timestamp, with "default"
// standing in for an absent session.
func (c AgentContext) ID() string {
	session := c.SessionID
	if session == "" {
		session = "default"
	}
	return fmt.Sprintf("%s_%s_%d", c.AgentID, session, c.Timestamp)
}

// Entry is the persisted wrapper around an accepted AgentContext.
type Entry struct {
	Context    AgentContext `json:"context"`
	ReceivedAt time.Time    `json:"received_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Processed  bool         `json:"processed"`
	Accepted   int          `json:"accepted"`
	Rejected   int          `json:"rejected"`
}

// Expired reports whether the entry is past its expiry at the given time.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// PutOptions tunes a single Put call.
type PutOptions struct {
	// StorageType "ephemeral" selects the short default TTL when the
	// context carries no explicit expiry.
	StorageType string `json:"storage_type,omitempty" validate:"omitempty,oneof=ephemeral durable"`
}
