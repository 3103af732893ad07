package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_AllowList(t *testing.T) {
	p := NewPolicy([]string{"example.com"}, nil, false)

	d, err := p.Confirm(context.Background(), Request{Domain: "example.com", WantRead: true, WantWrite: true})
	require.NoError(t, err)
	assert.True(t, d.Read)
	assert.True(t, d.Write)

	d, err = p.Confirm(context.Background(), Request{Domain: "other.com", WantRead: true})
	require.NoError(t, err)
	assert.False(t, d.Granted())
}

func TestPolicy_DenyWinsOverAllow(t *testing.T) {
	p := NewPolicy([]string{"*"}, []string{"tracker.com"}, true)

	d, err := p.Confirm(context.Background(), Request{Domain: "tracker.com", WantRead: true})
	require.NoError(t, err)
	assert.False(t, d.Granted())
}

func TestPolicy_WildcardSuffix(t *testing.T) {
	p := NewPolicy([]string{"*.example.com"}, nil, false)

	d, _ := p.Confirm(context.Background(), Request{Domain: "app.example.com", WantRead: true})
	assert.True(t, d.Read)

	d, _ = p.Confirm(context.Background(), Request{Domain: "example.org", WantRead: true})
	assert.False(t, d.Granted())
}

func TestPolicy_OnlyRequestedCapabilities(t *testing.T) {
	p := NewPolicy(nil, nil, true)

	d, _ := p.Confirm(context.Background(), Request{Domain: "example.com", WantRead: true})
	assert.True(t, d.Read)
	assert.False(t, d.Write)
}
