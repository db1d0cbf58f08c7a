package volume

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gophercloud/gophercloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const volumeBody = `{"volume": {
	"id": "vol-1",
	"name": "cloudkitty_test_vol-abc",
	"size": 2,
	"status": "%s",
	"user_id": "user-1",
	"os-vol-tenant-attr:tenant_id": "proj-1"
}}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFromServiceClient(&gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{TokenID: "test-token"},
		Endpoint:       srv.URL + "/",
		ResourceBase:   srv.URL + "/",
	})
}

func writeVolume(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, volumeBody, state)
}

func TestCreate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Volume struct {
				Name string `json:"name"`
				Size int    `json:"size"`
			} `json:"volume"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cloudkitty_test_vol-abc", body.Volume.Name)
		assert.Equal(t, 2, body.Volume.Size)

		writeVolume(w, http.StatusAccepted, StatusCreating)
	})

	vol, err := newTestClient(t, mux).Create(context.Background(), "cloudkitty_test_vol-abc", 2)
	require.NoError(t, err)
	assert.Equal(t, "vol-1", vol.ID)
	assert.Equal(t, StatusCreating, vol.Status)
	assert.Equal(t, "proj-1", vol.ProjectID)
	assert.Equal(t, "user-1", vol.UserID)
	assert.Equal(t, 2, vol.Size)
}

func TestGet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/vol-1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		writeVolume(w, http.StatusOK, StatusAvailable)
	})

	vol, err := newTestClient(t, mux).Get(context.Background(), "vol-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, vol.Status)
	assert.Equal(t, "proj-1", vol.ProjectID, "owner comes from os-vol-tenant-attr:tenant_id")
	assert.Equal(t, "user-1", vol.UserID)
}

func TestGet_NotFound(t *testing.T) {
	_, err := newTestClient(t, http.NotFoundHandler()).Get(context.Background(), "vol-gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDelete(t *testing.T) {
	deleted := false
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/vol-1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = true
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, newTestClient(t, mux).Delete(context.Background(), "vol-1"))
	assert.True(t, deleted)
}

func TestDelete_NotFound(t *testing.T) {
	err := newTestClient(t, http.NotFoundHandler()).Delete(context.Background(), "vol-1")
	assert.True(t, IsNotFound(err))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, http.NotFoundHandler()).Create(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
