package permission

import "time"

// Capability names the two permission scopes.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// Capabilities holds the per-capability grant flags. Absent flags deny.
type Capabilities struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// Has reports whether the named capability is granted. Unknown capability
// names deny.
func (c Capabilities) Has(cap Capability) bool {
	switch cap {
	case CapabilityRead:
		return c.Read
	case CapabilityWrite:
		return c.Write
	}
	return false
}

// Record is the grant state for one (provider, domain) pair. Records are
// never deleted; revocation sets RevokedAt and keeps the rest for audit.
type Record struct {
	Domain       string       `json:"domain"`
	Granted      bool         `json:"granted"`
	GrantedAt    time.Time    `json:"granted_at"`
	Capabilities Capabilities `json:"capabilities"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty"`
}

// Active reports whether the record currently grants anything: a revoked
// record denies regardless of its Granted flag.
func (r Record) Active() bool {
	return r.Granted && r.RevokedAt == nil
}

// AppInfo identifies the caller requesting permission.
type AppInfo struct {
	AppID     string `json:"app_id" validate:"required,min=1"`
	AppName   string `json:"app_name,omitempty"`
	Domain    string `json:"domain,omitempty"`
	WantRead  bool   `json:"want_read"`
	WantWrite bool   `json:"want_write"`
}

// Result is the outcome of a permission request.
type Result struct {
	Granted      bool         `json:"granted"`
	FirstTime    bool         `json:"first_time"`
	Domain       string       `json:"domain"`
	Capabilities Capabilities `json:"capabilities"`
}
