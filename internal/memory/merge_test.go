package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mem(text string, relevance float64) Memory {
	return Memory{Text: text, Relevance: relevance, Timestamp: 1700000000000, Source: "test"}
}

func TestMerge_Empty(t *testing.T) {
	out := Merge(nil, 0)
	assert.NotNil(t, out.Memories)
	assert.Empty(t, out.Memories)
}

func TestMerge_SingleInputUnchanged(t *testing.T) {
	in := Context{Memories: []Memory{mem("b", 0.2), mem("a", 0.9)}}
	out := Merge([]Context{in}, 10)

	// A single input passes through as-is, including its ordering.
	assert.Equal(t, in, out)
}

func TestMerge_DedupKeepsHigherRelevance(t *testing.T) {
	a := Context{Memories: []Memory{mem("User prefers dark mode", 0.5)}}
	b := Context{Memories: []Memory{mem("  user prefers DARK MODE ", 0.9)}}

	out := Merge([]Context{a, b}, 0)
	require.Len(t, out.Memories, 1)
	assert.Equal(t, 0.9, out.Memories[0].Relevance)

	// Same result with the inputs swapped.
	out = Merge([]Context{b, a}, 0)
	require.Len(t, out.Memories, 1)
	assert.Equal(t, 0.9, out.Memories[0].Relevance)
}

func TestMerge_TieKeepsFirstEncountered(t *testing.T) {
	first := mem("same text", 0.7)
	first.Source = "p1"
	second := mem("same text", 0.7)
	second.Source = "p2"

	out := Merge([]Context{
		{Memories: []Memory{first}},
		{Memories: []Memory{second}},
	}, 0)

	require.Len(t, out.Memories, 1)
	assert.Equal(t, "p1", out.Memories[0].Source)
}

func TestMerge_SortsByRelevanceDescending(t *testing.T) {
	a := Context{Memories: []Memory{mem("low", 0.1), mem("high", 0.9)}}
	b := Context{Memories: []Memory{mem("mid", 0.5)}}

	out := Merge([]Context{a, b}, 0)
	require.Len(t, out.Memories, 3)
	assert.Equal(t, "high", out.Memories[0].Text)
	assert.Equal(t, "mid", out.Memories[1].Text)
	assert.Equal(t, "low", out.Memories[2].Text)
}

func TestMerge_TruncatesToTopK(t *testing.T) {
	var a, b Context
	for i := 0; i < 50; i++ {
		a.Memories = append(a.Memories, mem(fmt.Sprintf("a-%d", i), float64(i)/100))
		b.Memories = append(b.Memories, mem(fmt.Sprintf("b-%d", i), float64(50+i)/100))
	}

	out := Merge([]Context{a, b}, 50)
	require.Len(t, out.Memories, 50)
	for i := 1; i < len(out.Memories); i++ {
		assert.GreaterOrEqual(t, out.Memories[i-1].Relevance, out.Memories[i].Relevance)
	}
	// The b-side memories all outrank the a-side ones.
	assert.Equal(t, "b-49", out.Memories[0].Text)
}

func TestMerge_DefaultTopK(t *testing.T) {
	var a, b Context
	for i := 0; i < 60; i++ {
		a.Memories = append(a.Memories, mem(fmt.Sprintf("a-%d", i), 0.5))
		b.Memories = append(b.Memories, mem(fmt.Sprintf("b-%d", i), 0.5))
	}

	out := Merge([]Context{a, b}, 0)
	assert.Len(t, out.Memories, DefaultTopK)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := Context{Memories: []Memory{mem("x", 0.1), mem("y", 0.2)}}
	b := Context{Memories: []Memory{mem("x", 0.9)}}
	before := append([]Memory(nil), a.Memories...)

	Merge([]Context{a, b}, 1)
	assert.Equal(t, before, a.Memories)
}
