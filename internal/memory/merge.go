package memory

import "sort"

// Merge flattens the given contexts into one deduplicated, relevance-ordered
// context truncated to topK (DefaultTopK when topK <= 0).
//
// Two memories are duplicates when their DedupKey matches; the one with the
// higher relevance wins, and ties keep the first encountered in input order.
// The result is therefore deterministic for a fixed input order. Caller-owned
// contexts are never mutated.
func Merge(contexts []Context, topK int) Context {
	if topK <= 0 {
		topK = DefaultTopK
	}

	switch len(contexts) {
	case 0:
		return Context{Memories: []Memory{}}
	case 1:
		return contexts[0]
	}

	best := make(map[string]int) // dedup key -> index into merged
	var merged []Memory
	for _, c := range contexts {
		for _, m := range c.Memories {
			key := m.DedupKey()
			if i, ok := best[key]; ok {
				if m.Relevance > merged[i].Relevance {
					merged[i] = m
				}
				continue
			}
			best[key] = len(merged)
			merged = append(merged, m)
		}
	}

	// Stable keeps first-encountered order for equal relevance.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return Context{Memories: merged}
}
