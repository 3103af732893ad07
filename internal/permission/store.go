// Package permission gates provider access per (domain, capability). State
// is a tombstone-preserving record collection persisted as one document per
// provider in the kv store.
package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/prompt"
)

// Store holds the per-domain permission records of a single provider.
type Store struct {
	providerID    string
	defaultDomain string
	store         kv.Store
	confirmer     prompt.Confirmer

	mu sync.Mutex
}

// NewStore creates a permission store for providerID. defaultDomain is the
// provider's notion of "current domain", used when callers omit one.
func NewStore(providerID, defaultDomain string, store kv.Store, confirmer prompt.Confirmer) *Store {
	return &Store{
		providerID:    providerID,
		defaultDomain: defaultDomain,
		store:         store,
		confirmer:     confirmer,
	}
}

// DefaultDomain returns the domain used when a check omits one.
func (s *Store) DefaultDomain() string {
	return s.defaultDomain
}

func (s *Store) docKey() string {
	return "perm:" + s.providerID
}

func (s *Store) load(ctx context.Context) (map[string]Record, error) {
	raw, ok, err := s.store.Get(ctx, s.docKey())
	if err != nil {
		return nil, fmt.Errorf("loading permission records: %w", err)
	}
	records := make(map[string]Record)
	if !ok {
		return records, nil
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decoding permission records: %w", err)
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records map[string]Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding permission records: %w", err)
	}
	if err := s.store.Set(ctx, s.docKey(), string(data)); err != nil {
		return fmt.Errorf("saving permission records: %w", err)
	}
	return nil
}

func (s *Store) resolveDomain(domain string) string {
	if domain == "" {
		return s.defaultDomain
	}
	return domain
}

// Granted reports whether access is currently granted for the domain. An
// empty capability requires only an active grant; naming one additionally
// requires that capability's flag. Missing records and storage errors deny.
func (s *Store) Granted(ctx context.Context, domain string, capability Capability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		slog.Warn("permission check failed, denying", "provider_id", s.providerID, "error", err)
		return false
	}

	rec, ok := records[s.resolveDomain(domain)]
	if !ok || !rec.Active() {
		return false
	}
	if capability == "" {
		return true
	}
	return rec.Capabilities.Has(capability)
}

// Request solicits a grant for the resolved domain. Already-granted domains
// short-circuit without re-prompting. Denials persist a tombstone record so
// the next request for the same domain is not reported as first-time.
func (s *Store) Request(ctx context.Context, info AppInfo) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain := s.resolveDomain(info.Domain)

	records, err := s.load(ctx)
	if err != nil {
		return Result{}, err
	}

	if rec, ok := records[domain]; ok && rec.Active() {
		return Result{
			Granted:      true,
			FirstTime:    false,
			Domain:       domain,
			Capabilities: rec.Capabilities,
		}, nil
	}

	_, seen := records[domain]

	wantRead, wantWrite := info.WantRead, info.WantWrite
	if !wantRead && !wantWrite {
		wantRead = true
	}

	decision, err := s.confirmer.Confirm(ctx, prompt.Request{
		AppID:      info.AppID,
		AppName:    info.AppName,
		Domain:     domain,
		ProviderID: s.providerID,
		WantRead:   wantRead,
		WantWrite:  wantWrite,
	})
	if err != nil {
		return Result{}, fmt.Errorf("confirming permission for %s: %w", domain, err)
	}

	rec := Record{
		Domain:  domain,
		Granted: decision.Granted(),
		Capabilities: Capabilities{
			Read:  decision.Read,
			Write: decision.Write,
		},
	}
	if rec.Granted {
		rec.GrantedAt = time.Now()
	}
	records[domain] = rec

	if err := s.save(ctx, records); err != nil {
		return Result{}, err
	}

	slog.Info("permission decision recorded",
		"provider_id", s.providerID, "domain", domain,
		"granted", rec.Granted, "first_time", !seen)

	return Result{
		Granted:      rec.Granted,
		FirstTime:    !seen,
		Domain:       domain,
		Capabilities: rec.Capabilities,
	}, nil
}

// Revoke marks the domain's record as revoked, keeping its capability flags
// for audit. Revoking an unknown domain reports false.
func (s *Store) Revoke(ctx context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain = s.resolveDomain(domain)

	records, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	rec, ok := records[domain]
	if !ok {
		return false, nil
	}

	now := time.Now()
	rec.RevokedAt = &now
	records[domain] = rec

	if err := s.save(ctx, records); err != nil {
		return false, err
	}

	slog.Info("permission revoked", "provider_id", s.providerID, "domain", domain)
	return true, nil
}

// Records returns a copy of all persisted records, tombstones included.
func (s *Store) Records(ctx context.Context) (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}
