package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *testAPI) {
	t.Helper()
	a := setupTestRouter()
	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP(srv.URL, srv.Client()), a
}

func TestClient_LockStatusUnlock(t *testing.T) {
	client, a := newTestClient(t)
	ctx := context.Background()

	assert.True(t, client.Ping(ctx))

	status, err := client.Lock(ctx, 10)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, int64(600), status.SecondsRemaining)

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)

	resp, err := client.Unlock(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, domain.TierRole, resp.Outcome.Tier)
	assert.False(t, resp.Status.IsLocked)
	assert.Equal(t, 1, a.lock.unlocks)
}

func TestClient_ErrorsMapToDomain(t *testing.T) {
	client, a := newTestClient(t)
	a.lock.startErr = domain.ErrNoOriginalLauncher

	_, err := client.Lock(context.Background(), 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoOriginalLauncher)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 412, apiErr.StatusCode)
	assert.Equal(t, CodeNoOriginalLauncher, apiErr.Code)
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient("127.0.0.1:1")

	assert.False(t, client.Ping(context.Background()))
}
