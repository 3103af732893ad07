// Package provider implements the adapter contract between the registry and
// an arbitrary context source. Capabilities are fixed at construction; the
// read and write paths never let an error or panic escape as anything other
// than a failure envelope.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/contexthub-project/contexthub/internal/memory"
	"github.com/contexthub-project/contexthub/internal/permission"
	"github.com/contexthub-project/contexthub/internal/result"
	"github.com/contexthub-project/contexthub/internal/writeback"
)

// WriteHandler runs after a context is accepted into the write-back store.
// A non-nil return value replaces the default success envelope. Handler
// errors never undo the stored entry.
type WriteHandler func(ctx context.Context, entry writeback.Entry) (*WriteResult, error)

// Provider adapts one context source (and optionally a sink) to the
// registry.
type Provider struct {
	record  Record
	domain  string
	perms   *permission.Store
	source  Source
	sink    Sink
	wb      *writeback.Store
	handler WriteHandler

	allowedAgentTypes []string

	now func() time.Time
}

// Config assembles a Provider.
type Config struct {
	Record            Record
	Domain            string // the provider's "current domain"
	Permissions       *permission.Store
	Source            Source
	Sink              Sink // nil for read-only providers
	WriteBack         *writeback.Store
	Handler           WriteHandler
	AllowedAgentTypes []string
}

// New builds a provider. The write capability flag is forced to match the
// presence of a sink so capability checks never need runtime probing.
func New(cfg Config) *Provider {
	cfg.Record.Capabilities.Read = cfg.Source != nil
	cfg.Record.Capabilities.Write = cfg.Sink != nil && cfg.WriteBack != nil
	return &Provider{
		record:            cfg.Record,
		domain:            cfg.Domain,
		perms:             cfg.Permissions,
		source:            cfg.Source,
		sink:              cfg.Sink,
		wb:                cfg.WriteBack,
		handler:           cfg.Handler,
		allowedAgentTypes: cfg.AllowedAgentTypes,
		now:               time.Now,
	}
}

// Record returns the provider's advertisement.
func (p *Provider) Record() Record {
	return p.record
}

// ID returns the provider id.
func (p *Provider) ID() string {
	return p.record.ProviderID
}

// DefaultDomain returns the provider's notion of "current domain".
func (p *Provider) DefaultDomain() string {
	return p.domain
}

// Writable reports whether the provider accepts contributions.
func (p *Provider) Writable() bool {
	return p.record.Capabilities.Write
}

// Granted checks the permission store; empty domain resolves to the
// provider's default domain.
func (p *Provider) Granted(ctx context.Context, domain string, capability permission.Capability) bool {
	return p.perms.Granted(ctx, domain, capability)
}

// RequestPermission delegates to the permission store.
func (p *Provider) RequestPermission(ctx context.Context, info permission.AppInfo) (permission.Result, error) {
	return p.perms.Request(ctx, info)
}

// RevokePermission delegates to the permission store.
func (p *Provider) RevokePermission(ctx context.Context, domain string) (bool, error) {
	return p.perms.Revoke(ctx, domain)
}

// GetContext runs the read path: permission gate, source fetch, sanitize,
// sort, truncate, wrap. Failures come back as envelopes, never errors.
func (p *Provider) GetContext(ctx context.Context, opts memory.Options) (res ContextResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panicked during read", "provider_id", p.ID(), "panic", r)
			res = failedContext(result.ProviderError(fmt.Sprintf("provider %s: internal failure", p.ID())))
		}
	}()

	if !p.perms.Granted(ctx, "", permission.CapabilityRead) {
		return failedContext(result.PermissionDenied(
			fmt.Sprintf("read access not granted for %s", p.domain)))
	}

	fetched, err := p.source.Fetch(ctx, p.domain, opts)
	if err != nil {
		slog.Warn("provider source fetch failed", "provider_id", p.ID(), "error", err)
		return failedContext(result.ProviderError(fmt.Sprintf("fetching context: %v", err)))
	}

	topK := opts.EffectiveTopK(p.record.Capabilities.MaxTopK)
	sanitized := make([]memory.Memory, 0, len(fetched.Memories))
	for _, m := range fetched.Memories {
		if !m.Valid() {
			continue
		}
		sanitized = append(sanitized, m.ClampRelevance())
	}
	sort.SliceStable(sanitized, func(i, j int) bool {
		return sanitized[i].Relevance > sanitized[j].Relevance
	})
	if len(sanitized) > topK {
		sanitized = sanitized[:topK]
	}

	return ContextResult{
		Success: true,
		Context: &memory.Context{Memories: sanitized},
		Metadata: &ResultMetadata{
			ProviderID:   p.record.ProviderID,
			ProviderName: p.record.ProviderName,
			Version:      p.record.Version,
			GeneratedAt:  p.now(),
			TimeRange:    opts.EffectiveTimeRange(p.now()),
			Categories:   opts.Categories,
		},
	}
}

// ProvideContext runs the write path: permission gate for the submitted
// domain, agent-type allow-list, write-back storage, sink delivery, and the
// optional handler whose non-nil result overrides the default envelope.
func (p *Provider) ProvideContext(ctx context.Context, ac writeback.AgentContext, opts writeback.PutOptions) (res WriteResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panicked during write", "provider_id", p.ID(), "panic", r)
			res = failedWrite(result.ProviderError(fmt.Sprintf("provider %s: internal failure", p.ID())))
		}
	}()

	if !p.Writable() {
		return failedWrite(result.NotAvailable(
			fmt.Sprintf("provider %s does not accept contributions", p.ID())))
	}

	if !p.perms.Granted(ctx, ac.Domain, permission.CapabilityWrite) {
		domain := ac.Domain
		if domain == "" {
			domain = p.domain
		}
		return failedWrite(result.PermissionDenied(
			fmt.Sprintf("write access not granted for %s", domain)))
	}

	if !p.agentTypeAllowed(ac.AgentType) {
		return failedWrite(result.InvalidOptions(
			fmt.Sprintf("agent type %q not accepted", ac.AgentType)))
	}

	if ac.Timestamp == 0 {
		ac.Timestamp = p.now().UnixMilli()
	}
	if ac.Domain == "" {
		ac.Domain = p.domain
	}

	id, accepted, rejected, err := p.wb.Put(ctx, ac, opts)
	if err != nil {
		var re *result.Error
		if errors.As(err, &re) {
			return failedWrite(re)
		}
		slog.Warn("write-back store failed", "provider_id", p.ID(), "error", err)
		return failedWrite(result.ProviderError(fmt.Sprintf("storing context: %v", err)))
	}

	// Sink delivery is the "processing" step. Its failure is orthogonal to
	// storage success and is only logged.
	if entry, ok, getErr := p.wb.Get(ctx, id); getErr == nil && ok {
		if err := p.sink.Store(ctx, ac.Domain, entry.Context.Memories); err != nil {
			slog.Warn("sink delivery failed", "provider_id", p.ID(), "context_id", id, "error", err)
		}
	}

	out := WriteResult{Success: true, ContextID: id, Accepted: accepted, Rejected: rejected}

	if p.handler != nil {
		if entry, ok, _ := p.wb.Get(ctx, id); ok {
			override, err := p.handler(ctx, entry)
			if err != nil {
				slog.Warn("write handler failed", "provider_id", p.ID(), "context_id", id, "error", err)
			}
			if override != nil {
				out = *override
			}
		}
	}

	// The entry is marked processed only after the handler has run; handler
	// failures never undo the stored entry.
	if _, err := p.wb.MarkProcessed(ctx, id, accepted, rejected); err != nil {
		slog.Warn("marking context processed failed", "provider_id", p.ID(), "context_id", id, "error", err)
	}

	return out
}

// ContributeMemory wraps bare memories into an agent context attributed to
// the given source label and runs the write path against the provider's
// default domain.
func (p *Provider) ContributeMemory(ctx context.Context, memories []memory.Memory, sourceLabel string) WriteResult {
	ac := writeback.AgentContext{
		AgentID:     sourceLabel,
		AgentName:   sourceLabel,
		ContextType: "contributed",
		Timestamp:   p.now().UnixMilli(),
		Domain:      p.domain,
		Memories:    memories,
		Source:      writeback.ContextSource{Type: "direct", Confidence: 1},
	}
	return p.ProvideContext(ctx, ac, writeback.PutOptions{})
}

func (p *Provider) agentTypeAllowed(agentType string) bool {
	if len(p.allowedAgentTypes) == 0 {
		return true
	}
	for _, t := range p.allowedAgentTypes {
		if t == agentType {
			return true
		}
	}
	return false
}
