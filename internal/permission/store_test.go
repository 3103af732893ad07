package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/prompt"
)

// fakeConfirmer answers with a fixed decision and counts invocations.
type fakeConfirmer struct {
	decision prompt.Decision
	err      error
	calls    int
}

func (f *fakeConfirmer) Confirm(_ context.Context, _ prompt.Request) (prompt.Decision, error) {
	f.calls++
	return f.decision, f.err
}

func setupStore(t *testing.T, confirmer prompt.Confirmer) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore("p1", "example.com", kv.NewRedisStore(client, "test"), confirmer)
}

func TestStore_FailClosedWithoutRecord(t *testing.T) {
	store := setupStore(t, &fakeConfirmer{})
	ctx := context.Background()

	assert.False(t, store.Granted(ctx, "example.com", ""))
	assert.False(t, store.Granted(ctx, "example.com", CapabilityRead))
	assert.False(t, store.Granted(ctx, "example.com", CapabilityWrite))
	assert.False(t, store.Granted(ctx, "", ""))
}

func TestStore_RequestGrant(t *testing.T) {
	fc := &fakeConfirmer{decision: prompt.Decision{Read: true, Write: true}}
	store := setupStore(t, fc)
	ctx := context.Background()

	res, err := store.Request(ctx, AppInfo{AppID: "agent-1", WantRead: true, WantWrite: true})
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.True(t, res.FirstTime)
	assert.Equal(t, "example.com", res.Domain)

	assert.True(t, store.Granted(ctx, "example.com", CapabilityRead))
	assert.True(t, store.Granted(ctx, "example.com", CapabilityWrite))
	assert.False(t, store.Granted(ctx, "other.com", CapabilityRead))
}

func TestStore_RequestIdempotentWhenGranted(t *testing.T) {
	fc := &fakeConfirmer{decision: prompt.Decision{Read: true}}
	store := setupStore(t, fc)
	ctx := context.Background()

	_, err := store.Request(ctx, AppInfo{AppID: "agent-1", WantRead: true})
	require.NoError(t, err)

	res, err := store.Request(ctx, AppInfo{AppID: "agent-1", WantRead: true})
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.False(t, res.FirstTime)
	assert.Equal(t, 1, fc.calls, "already-granted domains must not re-prompt")
}

func TestStore_DenialLeavesTombstone(t *testing.T) {
	fc := &fakeConfirmer{} // denies everything
	store := setupStore(t, fc)
	ctx := context.Background()

	res, err := store.Request(ctx, AppInfo{AppID: "agent-1", WantRead: true})
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.True(t, res.FirstTime)

	// A second request for the same domain is recognized.
	res, err = store.Request(ctx, AppInfo{AppID: "agent-1", WantRead: true})
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.False(t, res.FirstTime)
}

func TestStore_RevocationTombstone(t *testing.T) {
	fc := &fakeConfirmer{decision: prompt.Decision{Read: true, Write: true}}
	store := setupStore(t, fc)
	ctx := context.Background()

	_, err := store.Request(ctx, AppInfo{AppID: "agent-1", WantRead: true, WantWrite: true})
	require.NoError(t, err)

	removed, err := store.Revoke(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, removed)

	assert.False(t, store.Granted(ctx, "example.com", ""))
	assert.False(t, store.Granted(ctx, "example.com", CapabilityRead))

	// The record itself survives with its Granted flag and capabilities intact.
	records, err := store.Records(ctx)
	require.NoError(t, err)
	rec, ok := records["example.com"]
	require.True(t, ok)
	assert.True(t, rec.Granted)
	assert.True(t, rec.Capabilities.Read)
	assert.NotNil(t, rec.RevokedAt)
}

func TestStore_RevokeUnknownDomain(t *testing.T) {
	store := setupStore(t, &fakeConfirmer{})

	removed, err := store.Revoke(context.Background(), "never-seen.com")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_ConfirmerError(t *testing.T) {
	store := setupStore(t, &fakeConfirmer{err: errors.New("dialog unavailable")})

	_, err := store.Request(context.Background(), AppInfo{AppID: "agent-1", WantRead: true})
	assert.Error(t, err)
}

func TestStore_DefaultsToReadWhenNothingRequested(t *testing.T) {
	fc := &fakeConfirmer{decision: prompt.Decision{Read: true}}
	store := setupStore(t, fc)
	ctx := context.Background()

	res, err := store.Request(ctx, AppInfo{AppID: "agent-1"})
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.True(t, res.Capabilities.Read)
}
