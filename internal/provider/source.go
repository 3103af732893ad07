package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/memory"
)

// Source produces memories for a domain. Implementations own all filtering
// beyond topK truncation (time range, categories, relevance query hints).
type Source interface {
	Fetch(ctx context.Context, domain string, opts memory.Options) (memory.Context, error)
}

// Sink accepts contributed memories so later reads can return them. A
// provider with a Sink is write-capable.
type Sink interface {
	Store(ctx context.Context, domain string, memories []memory.Memory) error
}

// maxStoredPerDomain bounds the kv source's per-domain document.
const maxStoredPerDomain = 500

// KVSource reads and writes per-domain memory documents in the kv store.
// It is both the default Source and the Sink target, so contributed
// memories become readable on the next fetch.
type KVSource struct {
	providerID string
	store      kv.Store

	mu sync.Mutex
}

// NewKVSource creates a kv-backed source for providerID.
func NewKVSource(providerID string, store kv.Store) *KVSource {
	return &KVSource{providerID: providerID, store: store}
}

func (s *KVSource) docKey(domain string) string {
	return fmt.Sprintf("memories:%s:%s", s.providerID, domain)
}

func (s *KVSource) load(ctx context.Context, domain string) ([]memory.Memory, error) {
	raw, ok, err := s.store.Get(ctx, s.docKey(domain))
	if err != nil {
		return nil, fmt.Errorf("loading memories for %s: %w", domain, err)
	}
	if !ok {
		return nil, nil
	}
	var memories []memory.Memory
	if err := json.Unmarshal([]byte(raw), &memories); err != nil {
		return nil, fmt.Errorf("decoding memories for %s: %w", domain, err)
	}
	return memories, nil
}

func (s *KVSource) Fetch(ctx context.Context, domain string, opts memory.Options) (memory.Context, error) {
	s.mu.Lock()
	memories, err := s.load(ctx, domain)
	s.mu.Unlock()
	if err != nil {
		return memory.Context{}, err
	}

	var out []memory.Memory
	for _, m := range memories {
		if !matchTimeRange(m, opts.TimeRange) {
			continue
		}
		if !matchCategories(m, opts.Categories) {
			continue
		}
		if !matchQuery(m, opts.RelevanceQuery) {
			continue
		}
		out = append(out, m)
	}
	return memory.Context{Memories: out}, nil
}

func (s *KVSource) Store(ctx context.Context, domain string, contributed []memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	memories, err := s.load(ctx, domain)
	if err != nil {
		return err
	}

	// Merge keeps the higher-relevance copy of duplicated text.
	index := make(map[string]int, len(memories))
	for i, m := range memories {
		index[m.DedupKey()] = i
	}
	for _, m := range contributed {
		if i, ok := index[m.DedupKey()]; ok {
			if m.Relevance > memories[i].Relevance {
				memories[i] = m
			}
			continue
		}
		index[m.DedupKey()] = len(memories)
		memories = append(memories, m)
	}

	if len(memories) > maxStoredPerDomain {
		// Keep the most recent ones.
		sort.Slice(memories, func(i, j int) bool {
			return memories[i].Timestamp > memories[j].Timestamp
		})
		memories = memories[:maxStoredPerDomain]
	}

	data, err := json.Marshal(memories)
	if err != nil {
		return fmt.Errorf("encoding memories for %s: %w", domain, err)
	}
	if err := s.store.Set(ctx, s.docKey(domain), string(data)); err != nil {
		return fmt.Errorf("saving memories for %s: %w", domain, err)
	}
	return nil
}

func matchTimeRange(m memory.Memory, tr memory.TimeRange) bool {
	if tr.Start != 0 && m.Timestamp < tr.Start {
		return false
	}
	if tr.End != 0 && m.Timestamp > tr.End {
		return false
	}
	return true
}

func matchCategories(m memory.Memory, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	cat := m.Metadata["category"]
	for _, c := range categories {
		if strings.EqualFold(c, cat) {
			return true
		}
	}
	return false
}

// matchQuery is a non-authoritative substring hint, never a hard filter for
// empty queries.
func matchQuery(m memory.Memory, query string) bool {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Text), query)
}

// StaticSource serves a fixed memory set regardless of domain. Used for
// declaratively registered providers and test fixtures.
type StaticSource struct {
	Memories []memory.Memory
}

func (s *StaticSource) Fetch(_ context.Context, _ string, opts memory.Options) (memory.Context, error) {
	var out []memory.Memory
	for _, m := range s.Memories {
		if !matchTimeRange(m, opts.TimeRange) || !matchCategories(m, opts.Categories) || !matchQuery(m, opts.RelevanceQuery) {
			continue
		}
		out = append(out, m)
	}
	return memory.Context{Memories: out}, nil
}
