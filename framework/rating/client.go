package rating

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gophercloud/gophercloud"

	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
)

// ErrNotFound is returned when the rating API answers 404
var ErrNotFound = errors.New("rating resource not found")

// Client talks to the CloudKitty v1 API using the Keystone session of a gophercloud provider.
// Calls check ctx before sending; an in-flight request is bounded by the provider's HTTPClient timeout.
type Client struct {
	sc *gophercloud.ServiceClient
}

// NewClient locates the rating endpoint in the service catalog
func NewClient(provider *gophercloud.ProviderClient, eo gophercloud.EndpointOpts) (*Client, error) {
	eo.ApplyDefaults(ServiceType)
	endpoint, err := provider.EndpointLocator(eo)
	if err != nil {
		return nil, fmt.Errorf("failed to locate %s endpoint: %w", ServiceType, err)
	}
	return NewFromServiceClient(&gophercloud.ServiceClient{
		ProviderClient: provider,
		Endpoint:       gophercloud.NormalizeURL(endpoint),
		Type:           ServiceType,
	}), nil
}

// NewFromServiceClient wraps an existing service client, e.g. one pointed at a test server
func NewFromServiceClient(sc *gophercloud.ServiceClient) *Client {
	return &Client{sc: sc}
}

func (c *Client) hashmapURL(parts ...string) string {
	return c.sc.ServiceURL(append([]string{"v1", "rating", "module_config", "hashmap"}, parts...)...)
}

// CreateHashmapService creates a hashmap service named after the rated metric
func (c *Client) CreateHashmapService(ctx context.Context, name string) (*HashmapService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var svc HashmapService
	_, err := c.sc.Post(c.hashmapURL("services"), map[string]string{"name": name}, &svc, &gophercloud.RequestOpts{
		OkCodes: []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return nil, wrap(err, "create hashmap service %q", name)
	}
	if svc.ServiceID == "" {
		return nil, fmt.Errorf("create hashmap service %q: response carries no service_id", name)
	}
	return &svc, nil
}

// ListHashmapServices lists every hashmap service
func (c *Client) ListHashmapServices(ctx context.Context) ([]HashmapService, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body struct {
		Services []HashmapService `json:"services"`
	}
	if _, err := c.sc.Get(c.hashmapURL("services"), &body, nil); err != nil {
		return nil, wrap(err, "list hashmap services")
	}
	return body.Services, nil
}

// DeleteHashmapService deletes a hashmap service and, server-side, its mappings
func (c *Client) DeleteHashmapService(ctx context.Context, serviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.sc.Delete(c.hashmapURL("services", serviceID), &gophercloud.RequestOpts{
		OkCodes: []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent},
	})
	return wrap(err, "delete hashmap service %s", serviceID)
}

// CreateHashmapMapping creates a mapping on a hashmap service
func (c *Client) CreateHashmapMapping(ctx context.Context, opts MappingOpts) (*HashmapMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var mapping HashmapMapping
	_, err := c.sc.Post(c.hashmapURL("mappings"), opts.body(), &mapping, &gophercloud.RequestOpts{
		OkCodes: []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return nil, wrap(err, "create hashmap mapping on service %s", opts.ServiceID)
	}
	if mapping.MappingID == "" {
		return nil, fmt.Errorf("create hashmap mapping on service %s: response carries no mapping_id", opts.ServiceID)
	}
	return &mapping, nil
}

// DeleteHashmapMapping deletes a hashmap mapping
func (c *Client) DeleteHashmapMapping(ctx context.Context, mappingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.sc.Delete(c.hashmapURL("mappings", mappingID), &gophercloud.RequestOpts{
		OkCodes: []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent},
	})
	return wrap(err, "delete hashmap mapping %s", mappingID)
}

// GetModule returns a rating module's state
func (c *Client) GetModule(ctx context.Context, name string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var module Module
	if _, err := c.sc.Get(c.sc.ServiceURL("v1", "rating", "modules", name), &module, nil); err != nil {
		return nil, wrap(err, "get rating module %s", name)
	}
	return &module, nil
}

// UpdateModule enables or disables a rating module and sets its priority
func (c *Client) UpdateModule(ctx context.Context, name string, update ModuleUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// CloudKitty answers a module update with a redirect to the module resource.
	_, err := c.sc.Put(c.sc.ServiceURL("v1", "rating", "modules", name), update, nil, &gophercloud.RequestOpts{
		OkCodes: []int{http.StatusOK, http.StatusNoContent, http.StatusFound},
	})
	return wrap(err, "update rating module %s", name)
}

// GetDataframes fetches the rated dataframes and classifies the response shape
func (c *Client) GetDataframes(ctx context.Context, q DataframeQuery) (dataframe.Response, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.Response{}, err
	}

	params := url.Values{}
	if q.ResourceType != "" {
		params.Set("resource_type", q.ResourceType)
	}
	if q.TenantID != "" {
		params.Set("tenant_id", q.TenantID)
	}
	if !q.Begin.IsZero() {
		params.Set("begin", q.Begin.UTC().Format("2006-01-02T15:04:05"))
	}
	if !q.End.IsZero() {
		params.Set("end", q.End.UTC().Format("2006-01-02T15:04:05"))
	}

	u := c.sc.ServiceURL("v1", "storage", "dataframes")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	// The body is read raw: an empty 200 is a valid "nothing collected yet" answer.
	httpResp, err := c.sc.Get(u, nil, &gophercloud.RequestOpts{
		OkCodes:          []int{http.StatusOK, http.StatusNoContent},
		KeepResponseBody: true,
	})
	if err != nil {
		return dataframe.Response{}, wrap(err, "get dataframes")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return dataframe.Response{}, fmt.Errorf("get dataframes: read body: %w", err)
	}

	resp, err := dataframe.Parse(body)
	if err != nil {
		return resp, fmt.Errorf("get dataframes: %w", err)
	}
	return resp, nil
}

// IsNotFound reports whether err is a 404 from the rating API
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	var notFound gophercloud.ErrDefault404
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w: %v", msg, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
