// Package registry is the authoritative provider directory and request
// router: single-provider and aggregated context reads, write-back routing,
// permission mediation, and lifecycle events.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/contexthub-project/contexthub/internal/memory"
	"github.com/contexthub-project/contexthub/internal/metrics"
	"github.com/contexthub-project/contexthub/internal/permission"
	"github.com/contexthub-project/contexthub/internal/provider"
	"github.com/contexthub-project/contexthub/internal/result"
	"github.com/contexthub-project/contexthub/internal/writeback"
)

// DefaultProviderTimeout bounds each provider call during aggregation. A
// timed-out provider counts as that provider's failure; it never stalls the
// aggregate.
const DefaultProviderTimeout = 5 * time.Second

// Notifier re-publishes registry events to listeners outside the process,
// e.g. a message broker. A nil notifier keeps events in-process only.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// Registry routes caller requests to registered providers. Construct one per
// process and pass it explicitly; there is no ambient singleton.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider.Provider
	order     []string // registration order; replacement keeps the slot

	bus      *Bus
	notifier Notifier
	timeout  time.Duration
}

// Config assembles a Registry.
type Config struct {
	Notifier        Notifier      // optional
	ProviderTimeout time.Duration // 0 = DefaultProviderTimeout
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Registry{
		providers: make(map[string]*provider.Provider),
		bus:       NewBus(),
		notifier:  cfg.Notifier,
		timeout:   timeout,
	}
}

// Subscribe adds an in-process listener for the given event kind.
func (r *Registry) Subscribe(kind EventKind, fn Listener) Subscription {
	return r.bus.Subscribe(kind, fn)
}

// Unsubscribe removes a listener.
func (r *Registry) Unsubscribe(sub Subscription) {
	r.bus.Unsubscribe(sub)
}

// Dispatch emits a caller-constructed event to subscribed listeners and the
// notifier, same as the registry's own lifecycle events.
func (r *Registry) Dispatch(ctx context.Context, event Event) {
	r.emit(ctx, event)
}

// emit dispatches to in-process listeners and re-publishes through the
// notifier. Notifier failures are logged, never surfaced to the caller.
func (r *Registry) emit(ctx context.Context, event Event) {
	event.Timestamp = time.Now()
	r.bus.Dispatch(event)
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Kind)).Inc()
	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, event); err != nil {
			slog.Warn("publishing registry event", "kind", event.Kind, "error", err)
		}
	}
}

// Register inserts the provider, replacing any entry with the same id
// (last-write-wins). Registration always succeeds.
func (r *Registry) Register(ctx context.Context, p *provider.Provider) {
	id := p.ID()

	r.mu.Lock()
	if _, exists := r.providers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.providers[id] = p
	count := len(r.order)
	r.mu.Unlock()

	metrics.ProvidersRegistered.Set(float64(count))
	slog.Info("provider registered", "provider_id", id, "version", p.Record().Version)
	r.emit(ctx, Event{Kind: EventProviderRegistered, ProviderID: id,
		Detail: map[string]any{"version": p.Record().Version}})
}

// Unregister removes the provider, reporting whether one was present.
func (r *Registry) Unregister(ctx context.Context, providerID string) bool {
	r.mu.Lock()
	_, exists := r.providers[providerID]
	if exists {
		delete(r.providers, providerID)
		for i, id := range r.order {
			if id == providerID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	count := len(r.order)
	r.mu.Unlock()

	if !exists {
		return false
	}
	metrics.ProvidersRegistered.Set(float64(count))
	slog.Info("provider unregistered", "provider_id", providerID)
	r.emit(ctx, Event{Kind: EventProviderUnregistered, ProviderID: providerID})
	return true
}

// Provider returns the provider registered under id.
func (r *Registry) Provider(providerID string) (*provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerID]
	return p, ok
}

// Providers returns all provider records in registration order.
func (r *Registry) Providers() []provider.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]provider.Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id].Record())
	}
	return out
}

// snapshot returns the providers in registration order.
func (r *Registry) snapshot() []*provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*provider.Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// first returns the earliest-registered provider.
func (r *Registry) first() (*provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.providers[r.order[0]], true
}

// GetContext routes a single-provider read. With a provider id it targets
// that provider; without one it targets the first-registered provider
// regardless of grant state, and the provider's own permission gate decides.
func (r *Registry) GetContext(ctx context.Context, opts memory.Options, providerID string) provider.ContextResult {
	var p *provider.Provider
	if providerID != "" {
		var ok bool
		p, ok = r.Provider(providerID)
		if !ok {
			return failed(result.NotAvailable(fmt.Sprintf("provider %s is not registered", providerID)))
		}
	} else {
		var ok bool
		p, ok = r.first()
		if !ok {
			return failed(result.NotAvailable("no context provider is registered"))
		}
	}

	res := r.callWithTimeout(ctx, p, opts)
	metrics.ObserveContextRequest("single", res.Success)
	return res
}

// GetAggregatedContext fans out to every provider granted for its own
// default domain, merges successful non-empty results, and reports the raw
// per-provider results alongside. Zero registered and zero granted providers
// share the PERMISSION_DENIED path.
func (r *Registry) GetAggregatedContext(ctx context.Context, opts memory.Options) AggregatedResult {
	var qualifying []*provider.Provider
	for _, p := range r.snapshot() {
		if p.Granted(ctx, "", "") {
			qualifying = append(qualifying, p)
		}
	}

	if len(qualifying) == 0 {
		metrics.ObserveContextRequest("aggregated", false)
		return AggregatedResult{
			Success: false,
			Error:   result.PermissionDenied("no provider has permission for its current domain"),
		}
	}

	start := time.Now()

	// Concurrent fan-out; slot order preserves registration order so the
	// merge input order, and therefore tie-breaking, stays deterministic.
	results := make([]provider.ContextResult, len(qualifying))
	var wg sync.WaitGroup
	for i, p := range qualifying {
		wg.Add(1)
		go func(i int, p *provider.Provider) {
			defer wg.Done()
			results[i] = r.callWithTimeout(ctx, p, opts)
		}(i, p)
	}
	wg.Wait()

	byProvider := make(map[string]provider.ContextResult, len(qualifying))
	var contexts []memory.Context
	for i, p := range qualifying {
		byProvider[p.ID()] = results[i]
		if results[i].HasData() {
			contexts = append(contexts, *results[i].Context)
		}
	}

	if len(contexts) == 0 {
		metrics.ObserveContextRequest("aggregated", false)
		return AggregatedResult{
			Success:       false,
			Providers:     byProvider,
			ProviderCount: len(qualifying),
			Error:         result.NoData("no provider returned context data"),
		}
	}

	merged := memory.Merge(contexts, opts.EffectiveTopK(0))
	metrics.ObserveContextRequest("aggregated", true)
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())

	return AggregatedResult{
		Success:       true,
		Merged:        &merged,
		Providers:     byProvider,
		ProviderCount: len(qualifying),
	}
}

// callWithTimeout bounds one provider read. The provider call itself runs on
// its own goroutine; on timeout the slot gets a failure result and the stale
// call's eventual return is discarded.
func (r *Registry) callWithTimeout(ctx context.Context, p *provider.Provider, opts memory.Options) provider.ContextResult {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ch := make(chan provider.ContextResult, 1)
	go func() {
		ch <- p.GetContext(callCtx, opts)
	}()

	select {
	case res := <-ch:
		return res
	case <-callCtx.Done():
		slog.Warn("provider read timed out", "provider_id", p.ID(), "timeout", r.timeout)
		return provider.ContextResult{
			Success: false,
			Error:   result.ProviderError(fmt.Sprintf("provider %s timed out after %s", p.ID(), r.timeout)),
		}
	}
}

// Granted reports permission state for a provider (first-registered when the
// id is empty) and domain.
func (r *Registry) Granted(ctx context.Context, providerID, domain string) bool {
	p, ok := r.resolve(providerID)
	if !ok {
		return false
	}
	return p.Granted(ctx, domain, "")
}

// RequestPermission delegates the prompt to a provider. With no registered
// provider it reports an ungranted first-time result rather than an error.
func (r *Registry) RequestPermission(ctx context.Context, info permission.AppInfo, providerID string) (permission.Result, error) {
	p, ok := r.resolve(providerID)
	if !ok {
		return permission.Result{Granted: false, FirstTime: true, Domain: info.Domain}, nil
	}

	res, err := p.RequestPermission(ctx, info)
	if err != nil {
		return permission.Result{}, err
	}

	kind := EventPermissionDenied
	if res.Granted {
		kind = EventPermissionGranted
	}
	r.emit(ctx, Event{Kind: kind, ProviderID: p.ID(), Domain: res.Domain,
		Detail: map[string]any{"first_time": res.FirstTime}})
	return res, nil
}

// RevokePermission revokes a provider's grant for the domain.
func (r *Registry) RevokePermission(ctx context.Context, providerID, domain string) (bool, error) {
	p, ok := r.resolve(providerID)
	if !ok {
		return false, nil
	}
	revoked, err := p.RevokePermission(ctx, domain)
	if err != nil {
		return false, err
	}
	if revoked {
		r.emit(ctx, Event{Kind: EventPermissionRevoked, ProviderID: p.ID(), Domain: domain})
	}
	return revoked, nil
}

// ProvideContext routes a submitted context to a write-capable provider: the
// named one, or the first whose write permission covers the submitted
// domain.
func (r *Registry) ProvideContext(ctx context.Context, ac writeback.AgentContext, opts writeback.PutOptions, providerID string) provider.WriteResult {
	var target *provider.Provider
	if providerID != "" {
		p, ok := r.Provider(providerID)
		if !ok {
			return provider.WriteResult{Success: false,
				Error: result.NotAvailable(fmt.Sprintf("provider %s is not registered", providerID))}
		}
		target = p
	} else {
		for _, p := range r.snapshot() {
			if p.Writable() && p.Granted(ctx, ac.Domain, permission.CapabilityWrite) {
				target = p
				break
			}
		}
		if target == nil {
			return provider.WriteResult{Success: false,
				Error: result.NotAvailable("no write-capable provider accepts this domain")}
		}
	}

	res := target.ProvideContext(ctx, ac, opts)
	if res.Success {
		r.emit(ctx, Event{Kind: EventContextProvided, ProviderID: target.ID(),
			Domain: ac.Domain, ContextID: res.ContextID,
			Detail: map[string]any{"accepted": res.Accepted, "rejected": res.Rejected}})
	}
	return res
}

// ContributeMemory routes bare memories to a write-capable provider (the
// named one, or the first registered with write capability).
func (r *Registry) ContributeMemory(ctx context.Context, memories []memory.Memory, sourceLabel, providerID string) provider.WriteResult {
	var target *provider.Provider
	if providerID != "" {
		p, ok := r.Provider(providerID)
		if !ok {
			return provider.WriteResult{Success: false,
				Error: result.NotAvailable(fmt.Sprintf("provider %s is not registered", providerID))}
		}
		target = p
	} else {
		for _, p := range r.snapshot() {
			if p.Writable() {
				target = p
				break
			}
		}
		if target == nil {
			return provider.WriteResult{Success: false,
				Error: result.NotAvailable("no write-capable provider is registered")}
		}
	}

	res := target.ContributeMemory(ctx, memories, sourceLabel)
	if res.Success {
		r.emit(ctx, Event{Kind: EventContextProvided, ProviderID: target.ID(),
			ContextID: res.ContextID,
			Detail:    map[string]any{"accepted": res.Accepted, "rejected": res.Rejected}})
	}
	return res
}

// Status reports the registry-wide snapshot.
func (r *Registry) Status(ctx context.Context) Status {
	providers := r.snapshot()
	statuses := make([]ProviderStatus, 0, len(providers))
	for _, p := range providers {
		rec := p.Record()
		statuses = append(statuses, ProviderStatus{
			ProviderID:        rec.ProviderID,
			ProviderName:      rec.ProviderName,
			Version:           rec.Version,
			Available:         true,
			PermissionGranted: p.Granted(ctx, "", ""),
			Capabilities:      rec.Capabilities,
		})
	}
	return Status{
		Available:       true,
		ProviderCount:   len(statuses),
		Providers:       statuses,
		ProtocolVersion: ProtocolVersion,
		Features:        Features,
	}
}

// Installation reports provider presence for install-prompt decisions.
func (r *Registry) Installation() InstallationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := InstallationInfo{
		Installed:     len(r.order) > 0,
		ProviderCount: len(r.order),
		ProviderIDs:   append([]string(nil), r.order...),
	}
	if !info.Installed {
		info.InstallHint = "register a context provider to enable memory features"
	}
	return info
}

func (r *Registry) resolve(providerID string) (*provider.Provider, bool) {
	if providerID != "" {
		return r.Provider(providerID)
	}
	return r.first()
}

func failed(err *result.Error) provider.ContextResult {
	return provider.ContextResult{Success: false, Error: err}
}
