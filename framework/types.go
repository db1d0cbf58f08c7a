package framework

import (
	"context"

	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
	"github.com/redhat/cloudkitty-tests/test/framework/rating"
	"github.com/redhat/cloudkitty-tests/test/framework/volume"
)

// VolumeClient manages the billed block storage volume
type VolumeClient interface {
	Create(ctx context.Context, name string, sizeGB int) (*volume.Volume, error)
	Get(ctx context.Context, id string) (*volume.Volume, error)
	Delete(ctx context.Context, id string) error
}

// RatingClient talks to the CloudKitty API
type RatingClient interface {
	CreateHashmapService(ctx context.Context, name string) (*rating.HashmapService, error)
	ListHashmapServices(ctx context.Context) ([]rating.HashmapService, error)
	DeleteHashmapService(ctx context.Context, serviceID string) error
	CreateHashmapMapping(ctx context.Context, opts rating.MappingOpts) (*rating.HashmapMapping, error)
	DeleteHashmapMapping(ctx context.Context, mappingID string) error
	GetModule(ctx context.Context, name string) (*rating.Module, error)
	UpdateModule(ctx context.Context, name string, update rating.ModuleUpdate) error
	GetDataframes(ctx context.Context, q rating.DataframeQuery) (dataframe.Response, error)
}

// Compile-time checks that the OpenStack clients satisfy the framework interfaces
var (
	_ VolumeClient = (*volume.Client)(nil)
	_ RatingClient = (*rating.Client)(nil)
)
