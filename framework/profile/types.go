package profile

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/redhat/cloudkitty-tests/test/framework/config"
)

// Profile is a named variant of the collection scenario
type Profile struct {
	// Name is the unique identifier for this profile
	Name string `json:"name" validate:"required,slug"`

	// Description provides human-readable details about the profile
	Description string `json:"description,omitempty"`

	// Rating describes the hashmap rule created for the run
	Rating RatingSpec `json:"rating"`

	// Volume describes the billed volume
	Volume VolumeSpec `json:"volume"`

	// Collection tunes the wait for the collector
	Collection CollectionSpec `json:"collection"`

	// Validation enables optional checks on the matched dataframe
	Validation ValidationSpec `json:"validation"`
}

// RatingSpec defines the hashmap service and mapping
type RatingSpec struct {
	// Service is the hashmap service name, which is also the rated metric (e.g. "volume.size")
	Service string `json:"service" validate:"required"`

	// Cost of the mapping as a positive decimal string
	Cost string `json:"cost" validate:"required,positive_decimal"`

	// MapType is "flat" or "rate"
	MapType string `json:"mapType,omitempty" validate:"omitempty,oneof=flat rate"`

	// EnableModule turns the hashmap module on for the run and restores it afterwards
	EnableModule bool `json:"enableModule,omitempty"`

	// ModulePriority is used when EnableModule is set
	ModulePriority int `json:"modulePriority,omitempty" validate:"gte=0"`

	// PreClean deletes hashmap services left over under the same name
	PreClean bool `json:"preClean,omitempty"`
}

// VolumeSpec defines the billed volume
type VolumeSpec struct {
	// Name is the base name; a unique suffix is appended
	Name string `json:"name,omitempty" validate:"omitempty,max=200"`

	// SizeGB is the volume size in GiB
	SizeGB int `json:"sizeGB,omitempty" validate:"gte=0,lte=1024"`
}

// CollectionSpec defines the collector polling window.
// Durations use Go syntax ("10m", "15s").
type CollectionSpec struct {
	Timeout         metav1.Duration `json:"timeout,omitempty"`
	PollInterval    metav1.Duration `json:"pollInterval,omitempty"`
	MaxPollInterval metav1.Duration `json:"maxPollInterval,omitempty"`
	MinimumWait     metav1.Duration `json:"minimumWait,omitempty"`

	// PrometheusQuery overrides the scrape readiness query; %s is the volume id
	PrometheusQuery string `json:"prometheusQuery,omitempty"`
}

// ValidationSpec defines optional dataframe checks
type ValidationSpec struct {
	// ExpectedRating enables an exact rating check
	ExpectedRating *float64 `json:"expectedRating,omitempty" validate:"omitempty,gt=0"`

	// Tolerance allowed around ExpectedRating
	Tolerance float64 `json:"tolerance,omitempty" validate:"gte=0"`
}

// ApplyTo returns a copy of cfg with the profile's settings layered on top.
// Zero-valued profile fields keep the configured value.
func (p *Profile) ApplyTo(cfg *config.Config) *config.Config {
	cp := *cfg
	out := &cp
	if p.Rating.Service != "" {
		out.ServiceName = p.Rating.Service
	}
	if p.Rating.Cost != "" {
		out.FlatCost = p.Rating.Cost
	}
	if p.Rating.MapType != "" {
		out.MapType = p.Rating.MapType
	}
	if p.Rating.EnableModule {
		out.EnableHashmapModule = true
		if p.Rating.ModulePriority > 0 {
			out.ModulePriority = p.Rating.ModulePriority
		}
	}
	if p.Rating.PreClean {
		out.PreClean = true
	}

	if p.Volume.Name != "" {
		out.VolumeName = p.Volume.Name
	}
	if p.Volume.SizeGB > 0 {
		out = out.WithVolumeSize(p.Volume.SizeGB)
	}

	if d := p.Collection.Timeout.Duration; d > 0 {
		out = out.WithCollectTimeout(d)
	}
	initial, maxInterval := out.PollInitialInterval, out.PollMaxInterval
	if d := p.Collection.PollInterval.Duration; d > 0 {
		initial = d
	}
	if d := p.Collection.MaxPollInterval.Duration; d > 0 {
		maxInterval = d
	}
	out = out.WithPollIntervals(initial, max(initial, maxInterval))
	if d := p.Collection.MinimumWait.Duration; d > 0 {
		out.MinimumWait = d
	}
	if p.Collection.PrometheusQuery != "" {
		out.PrometheusQuery = p.Collection.PrometheusQuery
	}

	if p.Validation.ExpectedRating != nil {
		out = out.WithExpectedRating(*p.Validation.ExpectedRating, p.Validation.Tolerance)
	}

	return out
}
