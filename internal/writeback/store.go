// Package writeback buffers agent-submitted contexts with bounded storage,
// oldest-first eviction, and access-time expiry. Entries are persisted as
// one document per provider in the kv store; there is no background sweep.
package writeback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/metrics"
	"github.com/contexthub-project/contexthub/internal/result"
)

// Limits bounds the store.
type Limits struct {
	MaxContexts  int           // non-expired entries kept before eviction
	MaxBytes     int           // serialized size of a single context
	DefaultTTL   time.Duration // expiry when the context names none
	EphemeralTTL time.Duration // expiry for storage_type "ephemeral"
}

// DefaultLimits matches the documented defaults: 24h durable, 5m ephemeral.
func DefaultLimits() Limits {
	return Limits{
		MaxContexts:  100,
		MaxBytes:     64 * 1024,
		DefaultTTL:   24 * time.Hour,
		EphemeralTTL: 5 * time.Minute,
	}
}

// Store is the write-back buffer of a single provider.
type Store struct {
	providerID string
	store      kv.Store
	limits     Limits
	now        func() time.Time

	mu sync.Mutex

	// evictions counts entries displaced by the bound.
	evictions int64
}

// NewStore creates a write-back store for providerID.
func NewStore(providerID string, store kv.Store, limits Limits) *Store {
	if limits.MaxContexts <= 0 {
		limits.MaxContexts = DefaultLimits().MaxContexts
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits().MaxBytes
	}
	if limits.DefaultTTL <= 0 {
		limits.DefaultTTL = DefaultLimits().DefaultTTL
	}
	if limits.EphemeralTTL <= 0 {
		limits.EphemeralTTL = DefaultLimits().EphemeralTTL
	}
	return &Store{
		providerID: providerID,
		store:      store,
		limits:     limits,
		now:        time.Now,
	}
}

func (s *Store) docKey() string {
	return "writeback:" + s.providerID
}

func (s *Store) load(ctx context.Context) (map[string]Entry, error) {
	raw, ok, err := s.store.Get(ctx, s.docKey())
	if err != nil {
		return nil, fmt.Errorf("loading write-back entries: %w", err)
	}
	entries := make(map[string]Entry)
	if !ok {
		return entries, nil
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decoding write-back entries: %w", err)
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding write-back entries: %w", err)
	}
	if err := s.store.Set(ctx, s.docKey(), string(data)); err != nil {
		return fmt.Errorf("saving write-back entries: %w", err)
	}
	return nil
}

// Put accepts a context, evicting the oldest non-expired entries if the
// store is full. Returns the derived context id, the number of memories
// accepted and rejected, or an INVALID_OPTIONS error when the serialized
// context exceeds the byte limit.
func (s *Store) Put(ctx context.Context, ac AgentContext, opts PutOptions) (string, int, int, error) {
	data, err := json.Marshal(ac)
	if err != nil {
		return "", 0, 0, result.InvalidOptions(fmt.Sprintf("unserializable context: %v", err))
	}
	if len(data) > s.limits.MaxBytes {
		return "", 0, 0, result.InvalidOptions(
			fmt.Sprintf("context size %d exceeds limit %d bytes", len(data), s.limits.MaxBytes))
	}

	now := s.now()

	accepted, rejected := 0, 0
	sanitized := ac.Memories[:0:0]
	for _, m := range ac.Memories {
		if !m.Valid() {
			rejected++
			continue
		}
		sanitized = append(sanitized, m.ClampRelevance())
		accepted++
	}
	ac.Memories = sanitized

	var expiresAt time.Time
	switch {
	case ac.ExpiresAt > 0:
		expiresAt = time.UnixMilli(ac.ExpiresAt)
	case opts.StorageType == "ephemeral":
		expiresAt = now.Add(s.limits.EphemeralTTL)
	default:
		expiresAt = now.Add(s.limits.DefaultTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return "", 0, 0, err
	}

	s.evictLocked(entries, now)

	id := ac.ID()
	entries[id] = Entry{
		Context:    ac,
		ReceivedAt: now,
		ExpiresAt:  expiresAt,
	}

	if err := s.save(ctx, entries); err != nil {
		return "", 0, 0, err
	}

	slog.Debug("write-back context stored",
		"provider_id", s.providerID, "context_id", id,
		"accepted", accepted, "rejected", rejected)
	return id, accepted, rejected, nil
}

// evictLocked removes oldest-by-ReceivedAt entries until at least one slot
// is free among the non-expired population. Expired entries do not count
// toward the bound; they are reaped by the next read.
func (s *Store) evictLocked(entries map[string]Entry, now time.Time) {
	type aged struct {
		id string
		at time.Time
	}
	var live []aged
	for id, e := range entries {
		if !e.Expired(now) {
			live = append(live, aged{id: id, at: e.ReceivedAt})
		}
	}
	if len(live) < s.limits.MaxContexts {
		return
	}
	sort.Slice(live, func(i, j int) bool { return live[i].at.Before(live[j].at) })
	evict := len(live) - s.limits.MaxContexts + 1
	for i := 0; i < evict; i++ {
		delete(entries, live[i].id)
		s.evictions++
		metrics.WritebackEvictionsTotal.Inc()
		slog.Debug("write-back entry evicted", "provider_id", s.providerID, "context_id", live[i].id)
	}
}

// List returns all live entries. Expired entries are dropped from both the
// returned set and the persisted document; this access-time purge is the
// only expiry mechanism.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	purged := false
	for id, e := range entries {
		if e.Expired(now) {
			delete(entries, id)
			purged = true
		}
	}
	if purged {
		if err := s.save(ctx, entries); err != nil {
			return nil, err
		}
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// Get returns a live entry by id. Expired entries read as absent and are
// purged from the persisted document.
func (s *Store) Get(ctx context.Context, contextID string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return Entry{}, false, err
	}

	e, ok := entries[contextID]
	if !ok {
		return Entry{}, false, nil
	}
	if e.Expired(s.now()) {
		delete(entries, contextID)
		if err := s.save(ctx, entries); err != nil {
			return Entry{}, false, err
		}
		return Entry{}, false, nil
	}
	return e, true, nil
}

// MarkProcessed records that the handler ran for the entry, along with its
// accepted/rejected memory counts. Unknown ids report false.
func (s *Store) MarkProcessed(ctx context.Context, contextID string, accepted, rejected int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	e, ok := entries[contextID]
	if !ok {
		return false, nil
	}
	e.Processed = true
	e.Accepted = accepted
	e.Rejected = rejected
	entries[contextID] = e

	if err := s.save(ctx, entries); err != nil {
		return false, err
	}
	return true, nil
}

// Evictions returns the number of entries displaced by the bound so far.
func (s *Store) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}
