package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexthub-project/contexthub/internal/kv"
)

type stubHealth struct{ healthy bool }

func (s stubHealth) Healthy() bool { return s.healthy }

func newRouterFixture(t *testing.T, natsHealth HealthChecker) (*miniredis.Miniredis, *httptest.Server) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ok := func(w http.ResponseWriter, r *http.Request) { JSON(w, http.StatusOK, nil) }
	router := NewRouter(kv.NewRedisStore(client, "test"), natsHealth, RouterConfig{}, HandlerSet{
		ListProviders:      ok,
		RegisterProvider:   ok,
		GetProvider:        ok,
		UnregisterProvider: ok,
		Status:             ok,
		Installation:       ok,
		QueryContext:       ok,
		AggregateContext:   ok,
		ProvideContext:     ok,
		ContributeMemory:   ok,
		GetPermissions:     ok,
		RequestPermission:  ok,
		RevokePermission:   ok,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return mr, srv
}

func getHealth(t *testing.T, url string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.Data
}

func TestRouter_LivenessAlwaysOK(t *testing.T) {
	mr, srv := newRouterFixture(t, nil)
	mr.Close()

	code, _ := getHealth(t, srv.URL+"/health/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_ReadinessWithoutNATS(t *testing.T) {
	_, srv := newRouterFixture(t, nil)

	code, health := getHealth(t, srv.URL+"/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", health["storage"])
	assert.Equal(t, "not configured", health["nats"])
}

func TestRouter_ReadinessUnhealthyNATS(t *testing.T) {
	_, srv := newRouterFixture(t, stubHealth{healthy: false})

	code, health := getHealth(t, srv.URL+"/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", health["nats"])
	assert.Equal(t, "degraded", health["status"])
}

func TestRouter_ReadinessStorageDown(t *testing.T) {
	mr, srv := newRouterFixture(t, stubHealth{healthy: true})
	mr.Close()

	code, health := getHealth(t, srv.URL+"/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", health["storage"])
}
