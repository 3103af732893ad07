// Package prompt abstracts the permission-solicitation dialog. The visual
// dialog itself lives outside this service; the shipped implementation
// answers from a configured domain policy.
package prompt

import (
	"context"
	"strings"
)

// Request describes who is asking for access and for which domain.
type Request struct {
	AppID      string
	AppName    string
	Domain     string
	ProviderID string
	WantRead   bool
	WantWrite  bool
}

// Decision carries one binary answer per requested capability.
type Decision struct {
	Read  bool
	Write bool
}

// Granted reports whether any capability was approved.
func (d Decision) Granted() bool {
	return d.Read || d.Write
}

// Confirmer solicits a per-capability grant decision from the host.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (Decision, error)
}

// Policy answers permission prompts from allow/deny domain lists. Deny wins
// over allow; a domain on neither list gets DefaultAllow. Matching is exact
// or suffix-wildcard ("*.example.com").
type Policy struct {
	Allow        []string
	Deny         []string
	DefaultAllow bool
}

// NewPolicy creates a policy confirmer from configured domain lists.
func NewPolicy(allow, deny []string, defaultAllow bool) *Policy {
	return &Policy{Allow: allow, Deny: deny, DefaultAllow: defaultAllow}
}

func (p *Policy) Confirm(_ context.Context, req Request) (Decision, error) {
	if matchesAny(req.Domain, p.Deny) {
		return Decision{}, nil
	}
	allowed := p.DefaultAllow || matchesAny(req.Domain, p.Allow)
	if !allowed {
		return Decision{}, nil
	}
	return Decision{Read: req.WantRead, Write: req.WantWrite}, nil
}

func matchesAny(domain string, patterns []string) bool {
	domain = strings.ToLower(domain)
	for _, pat := range patterns {
		pat = strings.ToLower(strings.TrimSpace(pat))
		if pat == "" {
			continue
		}
		if pat == domain || pat == "*" {
			return true
		}
		if strings.HasPrefix(pat, "*.") && strings.HasSuffix(domain, pat[1:]) {
			return true
		}
	}
	return false
}
