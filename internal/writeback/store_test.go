package writeback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/memory"
	"github.com/contexthub-project/contexthub/internal/result"
)

func setupStore(t *testing.T, limits Limits) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore("p1", kv.NewRedisStore(client, "test"), limits)
}

func agentCtx(agentID string, ts int64) AgentContext {
	return AgentContext{
		AgentID:   agentID,
		AgentType: "assistant",
		Timestamp: ts,
		Domain:    "example.com",
		Memories: []memory.Memory{
			{Text: "observation", Relevance: 0.8, Timestamp: ts, Source: agentID},
		},
	}
}

func TestStore_PutDerivesID(t *testing.T) {
	store := setupStore(t, Limits{})
	ctx := context.Background()

	id, accepted, rejected, err := store.Put(ctx, agentCtx("a1", 1234), PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a1_default_1234", id)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 0, rejected)

	withSession := agentCtx("a1", 1234)
	withSession.SessionID = "s9"
	id, _, _, err = store.Put(ctx, withSession, PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a1_s9_1234", id)
}

func TestStore_PutRejectsOversized(t *testing.T) {
	store := setupStore(t, Limits{MaxBytes: 200})

	big := agentCtx("a1", 1)
	big.Memories[0].Text = strings.Repeat("x", 500)

	_, _, _, err := store.Put(context.Background(), big, PutOptions{})
	require.Error(t, err)
	var re *result.Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, result.CodeInvalidOptions, re.Code)
}

func TestStore_PutSanitizesMemories(t *testing.T) {
	store := setupStore(t, Limits{})
	ctx := context.Background()

	ac := agentCtx("a1", 1)
	ac.Memories = append(ac.Memories,
		memory.Memory{Text: "  ", Source: "a1"},          // blank text
		memory.Memory{Text: "over", Relevance: 3, Source: "a1"},
	)

	id, accepted, rejected, err := store.Put(ctx, ac, PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, rejected)

	entry, ok, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entry.Context.Memories, 2)
	assert.Equal(t, 1.0, entry.Context.Memories[1].Relevance)
}

func TestStore_EvictsOldestWhenFull(t *testing.T) {
	store := setupStore(t, Limits{MaxContexts: 3})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	var ids []string
	for i := 0; i < 4; i++ {
		clock = base.Add(time.Duration(i) * time.Minute)
		id, _, _, err := store.Put(ctx, agentCtx("a1", int64(i)), PutOptions{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Oldest entry is gone, the other three remain.
	_, ok, err := store.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, ok)
	for _, id := range ids[1:] {
		_, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}
	assert.Equal(t, int64(1), store.Evictions())
}

func TestStore_LazyExpiryOnList(t *testing.T) {
	store := setupStore(t, Limits{DefaultTTL: time.Hour})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	_, _, _, err := store.Put(ctx, agentCtx("a1", 1), PutOptions{})
	require.NoError(t, err)
	_, _, _, err = store.Put(ctx, agentCtx("a2", 2), PutOptions{})
	require.NoError(t, err)

	// Past the TTL, the entries vanish from a read without any purge call.
	clock = base.Add(2 * time.Hour)
	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// And they are gone from the persisted document as well.
	store.mu.Lock()
	raw, errLoad := store.load(ctx)
	store.mu.Unlock()
	require.NoError(t, errLoad)
	assert.Empty(t, raw)
}

func TestStore_EphemeralTTL(t *testing.T) {
	store := setupStore(t, Limits{EphemeralTTL: 5 * time.Minute, DefaultTTL: 24 * time.Hour})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	eid, _, _, err := store.Put(ctx, agentCtx("eph", 1), PutOptions{StorageType: "ephemeral"})
	require.NoError(t, err)
	did, _, _, err := store.Put(ctx, agentCtx("dur", 2), PutOptions{})
	require.NoError(t, err)

	clock = base.Add(10 * time.Minute)
	_, ok, err := store.Get(ctx, eid)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, did)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ExplicitExpiresAtWins(t *testing.T) {
	store := setupStore(t, Limits{DefaultTTL: 24 * time.Hour})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	ac := agentCtx("a1", 1)
	ac.ExpiresAt = base.Add(time.Minute).UnixMilli()
	id, _, _, err := store.Put(ctx, ac, PutOptions{})
	require.NoError(t, err)

	clock = base.Add(2 * time.Minute)
	_, ok, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_MarkProcessed(t *testing.T) {
	store := setupStore(t, Limits{})
	ctx := context.Background()

	id, _, _, err := store.Put(ctx, agentCtx("a1", 1), PutOptions{})
	require.NoError(t, err)

	ok, err := store.MarkProcessed(ctx, id, 1, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, found, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.Processed)
	assert.Equal(t, 1, entry.Accepted)

	ok, err = store.MarkProcessed(ctx, "missing", 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ExpiredEntriesDoNotCountTowardBound(t *testing.T) {
	store := setupStore(t, Limits{MaxContexts: 2, DefaultTTL: time.Minute})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	_, _, _, err := store.Put(ctx, agentCtx("a1", 1), PutOptions{})
	require.NoError(t, err)

	// First entry has expired; the next two puts fit without eviction.
	clock = base.Add(2 * time.Minute)
	id2, _, _, err := store.Put(ctx, agentCtx("a2", 2), PutOptions{})
	require.NoError(t, err)
	id3, _, _, err := store.Put(ctx, agentCtx("a3", 3), PutOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), store.Evictions())
	for _, id := range []string{id2, id3} {
		_, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
