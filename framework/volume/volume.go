package volume

import (
	"context"
	"errors"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/blockstorage/extensions/volumetenants"
	"github.com/gophercloud/gophercloud/openstack/blockstorage/v3/volumes"
)

// Cinder volume states relevant to provisioning
const (
	StatusAvailable = "available"
	StatusCreating  = "creating"
	StatusError     = "error"
	StatusDeleting  = "deleting"
)

// ErrNotFound is returned when the volume does not exist
var ErrNotFound = errors.New("volume not found")

// Volume is the subset of a Cinder volume the rating checks rely on
type Volume struct {
	ID        string
	Name      string
	Size      int
	Status    string
	ProjectID string
	UserID    string
}

// Client manages block storage volumes. Calls check ctx before sending;
// an in-flight request is bounded by the provider's HTTPClient timeout.
type Client struct {
	sc *gophercloud.ServiceClient
}

// NewClient creates a block storage v3 client from an authenticated provider
func NewClient(provider *gophercloud.ProviderClient, eo gophercloud.EndpointOpts) (*Client, error) {
	sc, err := openstack.NewBlockStorageV3(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("failed to create block storage client: %w", err)
	}
	return NewFromServiceClient(sc), nil
}

// NewFromServiceClient wraps an existing service client
func NewFromServiceClient(sc *gophercloud.ServiceClient) *Client {
	return &Client{sc: sc}
}

// Create requests a new volume. The returned volume is usually still "creating".
func (c *Client) Create(ctx context.Context, name string, sizeGB int) (*Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var v cinderVolume
	if err := volumes.Create(c.sc, volumes.CreateOpts{Name: name, Size: sizeGB}).ExtractInto(&v); err != nil {
		return nil, wrap(err, "create volume %q", name)
	}
	return v.toVolume(), nil
}

// Get returns the current state of a volume
func (c *Client) Get(ctx context.Context, id string) (*Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var v cinderVolume
	if err := volumes.Get(c.sc, id).ExtractInto(&v); err != nil {
		return nil, wrap(err, "get volume %s", id)
	}
	return v.toVolume(), nil
}

// Delete requests deletion of a volume
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(volumes.Delete(c.sc, id, volumes.DeleteOpts{}).ExtractErr(), "delete volume %s", id)
}

// IsNotFound reports whether err means the volume does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// cinderVolume carries the owner project from os-vol-tenant-attr:tenant_id
type cinderVolume struct {
	volumes.Volume
	volumetenants.VolumeTenantExt
}

func (v *cinderVolume) toVolume() *Volume {
	return &Volume{
		ID:        v.ID,
		Name:      v.Name,
		Size:      v.Size,
		Status:    v.Status,
		ProjectID: v.TenantID,
		UserID:    v.UserID,
	}
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
