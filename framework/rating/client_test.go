package rating

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gophercloud/gophercloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFromServiceClient(&gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{TokenID: "test-token"},
		Endpoint:       srv.URL + "/",
		Type:           ServiceType,
	})
}

func TestCreateHashmapService(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/services", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-token", r.Header.Get("X-Auth-Token"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "volume.size", body["name"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"service_id": "svc-1", "name": "volume.size"}`))
	})

	client := newTestClient(t, mux)
	svc, err := client.CreateHashmapService(context.Background(), "volume.size")
	require.NoError(t, err)
	assert.Equal(t, "svc-1", svc.ServiceID)
	assert.Equal(t, "volume.size", svc.Name)
}

func TestCreateHashmapService_MissingID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/services", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name": "volume.size"}`))
	})

	_, err := newTestClient(t, mux).CreateHashmapService(context.Background(), "volume.size")
	assert.ErrorContains(t, err, "no service_id")
}

func TestCreateHashmapMapping_SendsNumericCost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/mappings", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "svc-1", body["service_id"])
		assert.Equal(t, 2.5, body["cost"])
		assert.Equal(t, "flat", body["type"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"mapping_id": "map-1", "service_id": "svc-1", "cost": "2.50000000", "map_type": "flat"}`))
	})

	mapping, err := newTestClient(t, mux).CreateHashmapMapping(context.Background(), MappingOpts{
		ServiceID: "svc-1",
		Cost:      "2.5",
		Type:      "flat",
	})
	require.NoError(t, err)
	assert.Equal(t, "map-1", mapping.MappingID)
	assert.Equal(t, "flat", mapping.Type)
}

func TestDeleteHashmapMapping(t *testing.T) {
	deleted := false
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/mappings/map-1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		assert.Empty(t, r.URL.RawQuery)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, newTestClient(t, mux).DeleteHashmapMapping(context.Background(), "map-1"))
	assert.True(t, deleted)
}

func TestDeleteHashmapService_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/services/svc-gone", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"faultstring": "No such service"}`, http.StatusNotFound)
	})

	err := newTestClient(t, mux).DeleteHashmapService(context.Background(), "svc-gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDeleteHashmapService_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/services", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := newTestClient(t, mux).DeleteHashmapService(context.Background(), "svc-1")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestListHashmapServices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/module_config/hashmap/services", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"services": [{"service_id": "a", "name": "volume.size"}, {"service_id": "b", "name": "instance"}]}`))
	})

	services, err := newTestClient(t, mux).ListHashmapServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "instance", services[1].Name)
}

func TestModules(t *testing.T) {
	var update ModuleUpdate
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rating/modules/hashmap", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"module_id": "hashmap", "enabled": false, "priority": 1, "hot-config": true}`))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	client := newTestClient(t, mux)
	module, err := client.GetModule(context.Background(), "hashmap")
	require.NoError(t, err)
	assert.Equal(t, "hashmap", module.Name)
	assert.False(t, module.Enabled)
	assert.True(t, module.HotConfig)

	require.NoError(t, client.UpdateModule(context.Background(), "hashmap", ModuleUpdate{Enabled: true, Priority: 5}))
	assert.True(t, update.Enabled)
	assert.Equal(t, 5, update.Priority)
}

func TestGetDataframes(t *testing.T) {
	begin := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/storage/dataframes", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "volume.size", q.Get("resource_type"))
		assert.Equal(t, "proj-1", q.Get("tenant_id"))
		assert.Equal(t, "2026-10-18T10:00:00", q.Get("begin"))
		assert.Empty(t, q.Get("end"))
		_, _ = w.Write([]byte(`{"dataframes": [{"tenant_id": "proj-1", "resources": [
			{"service": "volume.size", "desc": {"id": "vol-1"}, "rating": "4"}]}]}`))
	})

	resp, err := newTestClient(t, mux).GetDataframes(context.Background(), DataframeQuery{
		ResourceType: "volume.size",
		TenantID:     "proj-1",
		Begin:        begin,
	})
	require.NoError(t, err)
	assert.Equal(t, dataframe.KindEnvelope, resp.Kind)

	records := dataframe.Normalize(resp)
	require.Len(t, records, 1)
	assert.Equal(t, "vol-1", records[0].Desc.ID)
}

func TestGetDataframes_EmptyBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/storage/dataframes", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	resp, err := newTestClient(t, mux).GetDataframes(context.Background(), DataframeQuery{})
	require.NoError(t, err)
	assert.Equal(t, dataframe.KindEmpty, resp.Kind)
}

func TestClient_CancelledContext(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetDataframes(ctx, DataframeQuery{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, client.DeleteHashmapService(ctx, "svc"), context.Canceled)
}

func TestGetDataframes_HungRequestBoundedByHTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewFromServiceClient(&gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{
			TokenID:    "test-token",
			HTTPClient: http.Client{Timeout: 50 * time.Millisecond},
		},
		Endpoint: srv.URL + "/",
	})

	start := time.Now()
	_, err := c.GetDataframes(context.Background(), DataframeQuery{ResourceType: "volume.size"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
