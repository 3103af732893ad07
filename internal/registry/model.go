package registry

import (
	"github.com/contexthub-project/contexthub/internal/memory"
	"github.com/contexthub-project/contexthub/internal/provider"
	"github.com/contexthub-project/contexthub/internal/result"
)

// ProtocolVersion is the wire contract version reported in status snapshots.
const ProtocolVersion = "1.0"

// Features lists the capabilities this registry build supports.
var Features = []string{"aggregation", "write-back", "permissions", "events"}

// AggregatedResult is the envelope of a multi-provider read. Raw per-provider
// results are exposed for caller introspection alongside the merged context.
type AggregatedResult struct {
	Success       bool                              `json:"success"`
	Merged        *memory.Context                   `json:"merged,omitempty"`
	Providers     map[string]provider.ContextResult `json:"providers,omitempty"`
	ProviderCount int                               `json:"provider_count"`
	Error         *result.Error                     `json:"error,omitempty"`
}

// ProviderStatus is one row of the status snapshot.
type ProviderStatus struct {
	ProviderID        string                `json:"provider_id"`
	ProviderName      string                `json:"provider_name"`
	Version           string                `json:"version"`
	Available         bool                  `json:"available"`
	PermissionGranted bool                  `json:"permission_granted"`
	Capabilities      provider.Capabilities `json:"capabilities"`
}

// Status is the registry-wide snapshot returned to callers.
type Status struct {
	Available       bool             `json:"available"`
	ProviderCount   int              `json:"provider_count"`
	Providers       []ProviderStatus `json:"providers"`
	ProtocolVersion string           `json:"protocol_version"`
	Features        []string         `json:"features"`
}

// InstallationInfo tells callers whether any provider is present and what to
// do about it.
type InstallationInfo struct {
	Installed     bool     `json:"installed"`
	ProviderCount int      `json:"provider_count"`
	ProviderIDs   []string `json:"provider_ids"`
	InstallHint   string   `json:"install_hint,omitempty"`
}
