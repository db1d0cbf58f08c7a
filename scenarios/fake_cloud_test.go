package scenarios

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gophercloud/gophercloud"
	"github.com/onsi/gomega/ghttp"

	"github.com/redhat/cloudkitty-tests/test/framework/rating"
	"github.com/redhat/cloudkitty-tests/test/framework/volume"
)

const (
	volumeJSON = `{"volume": {
		"id": "vol-1",
		"name": "cloudkitty_test_vol",
		"size": 2,
		"status": %q,
		"user_id": "user-1",
		"os-vol-tenant-attr:tenant_id": "proj-1"
	}}`

	ratedVolumeJSON = `{"dataframes": [{
		"service": "volume.size",
		"desc": {"id": "vol-1", "project_id": "proj-1", "user_id": "user-1"},
		"rating": %q
	}]}`

	otherVolumeJSON = `{"dataframes": [{
		"service": "volume.size",
		"desc": {"id": "vol-other", "project_id": "proj-1"},
		"rating": "2"
	}]}`
)

// fakeCloud serves the Cinder and CloudKitty endpoints the scenario talks to
type fakeCloud struct {
	server *ghttp.Server

	mu            sync.Mutex
	volumeStates  []string
	volumeGets    int
	dataframes    []string
	dataframeGets int
	deleted       []string
	mappingStatus int
}

func newFakeCloud() *fakeCloud {
	c := &fakeCloud{
		server:        ghttp.NewServer(),
		volumeStates:  []string{volume.StatusCreating, volume.StatusAvailable},
		dataframes:    []string{`{"dataframes": []}`, fmt.Sprintf(ratedVolumeJSON, "4")},
		mappingStatus: http.StatusNoContent,
	}

	c.server.RouteToHandler(http.MethodPost, "/volumes", ghttp.CombineHandlers(
		ghttp.VerifyHeaderKV("X-Auth-Token", "test-token"),
		ghttp.RespondWith(http.StatusAccepted, fmt.Sprintf(volumeJSON, volume.StatusCreating)),
	))
	c.server.RouteToHandler(http.MethodGet, "/volumes/vol-1", c.getVolume)
	c.server.RouteToHandler(http.MethodDelete, "/volumes/vol-1", c.recordDelete("volume", http.StatusAccepted))

	c.server.RouteToHandler(http.MethodGet, "/v1/rating/modules/hashmap",
		ghttp.RespondWith(http.StatusOK, `{"module_id": "hashmap", "enabled": true, "priority": 1}`))
	c.server.RouteToHandler(http.MethodGet, "/v1/rating/module_config/hashmap/services",
		ghttp.RespondWith(http.StatusOK, `{"services": []}`))
	c.server.RouteToHandler(http.MethodPost, "/v1/rating/module_config/hashmap/services", ghttp.CombineHandlers(
		ghttp.VerifyJSON(`{"name": "volume.size"}`),
		ghttp.RespondWith(http.StatusCreated, `{"service_id": "svc-1", "name": "volume.size"}`),
	))
	c.server.RouteToHandler(http.MethodPost, "/v1/rating/module_config/hashmap/mappings", ghttp.CombineHandlers(
		ghttp.VerifyJSON(`{"service_id": "svc-1", "cost": 2, "type": "flat"}`),
		ghttp.RespondWith(http.StatusCreated, `{"mapping_id": "map-1", "service_id": "svc-1", "cost": "2", "map_type": "flat"}`),
	))
	c.server.RouteToHandler(http.MethodDelete, "/v1/rating/module_config/hashmap/mappings/map-1", c.deleteMapping)
	c.server.RouteToHandler(http.MethodDelete, "/v1/rating/module_config/hashmap/services/svc-1", c.recordDelete("service", http.StatusNoContent))
	c.server.RouteToHandler(http.MethodGet, "/v1/storage/dataframes", ghttp.CombineHandlers(
		ghttp.VerifyForm(map[string][]string{"resource_type": {"volume.size"}}),
		c.getDataframes,
	))

	return c
}

func (c *fakeCloud) Close() {
	c.server.Close()
}

func (c *fakeCloud) serviceClient() *gophercloud.ServiceClient {
	return &gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{TokenID: "test-token"},
		Endpoint:       c.server.URL() + "/",
	}
}

func (c *fakeCloud) VolumeClient() *volume.Client {
	return volume.NewFromServiceClient(c.serviceClient())
}

func (c *fakeCloud) RatingClient() *rating.Client {
	return rating.NewFromServiceClient(c.serviceClient())
}

// ServeDataframes replaces the sequence of dataframe bodies; the last one repeats
func (c *fakeCloud) ServeDataframes(bodies ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataframes = bodies
	c.dataframeGets = 0
}

// FailMappingDelete makes the mapping deletion answer with status
func (c *fakeCloud) FailMappingDelete(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mappingStatus = status
}

// Deleted returns the deleted resource kinds in request order
func (c *fakeCloud) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

func (c *fakeCloud) DataframeRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataframeGets
}

func (c *fakeCloud) getVolume(w http.ResponseWriter, _ *http.Request) {
	c.mu.Lock()
	state := c.volumeStates[min(c.volumeGets, len(c.volumeStates)-1)]
	c.volumeGets++
	c.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, volumeJSON, state)
}

func (c *fakeCloud) getDataframes(w http.ResponseWriter, _ *http.Request) {
	c.mu.Lock()
	body := c.dataframes[min(c.dataframeGets, len(c.dataframes)-1)]
	c.dataframeGets++
	c.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (c *fakeCloud) deleteMapping(w http.ResponseWriter, _ *http.Request) {
	c.mu.Lock()
	status := c.mappingStatus
	c.deleted = append(c.deleted, "mapping")
	c.mu.Unlock()

	w.WriteHeader(status)
}

func (c *fakeCloud) recordDelete(kind string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.mu.Lock()
		c.deleted = append(c.deleted, kind)
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}
