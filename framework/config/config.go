package config

import (
	"os"
	"strconv"
	"time"
)

// Scenario defaults
const (
	// DefaultServiceName is the hashmap service (and metric) the scenario rates
	DefaultServiceName = "volume.size"

	// DefaultVolumeName is the base name of the billed volume; a unique suffix is appended per run
	DefaultVolumeName = "cloudkitty_test_vol"

	// DefaultVolumeSize is the size of the billed volume in GiB
	DefaultVolumeSize = 2

	// DefaultFlatCost is the cost of the flat hashmap mapping
	DefaultFlatCost = "2"

	// DefaultMapType is the hashmap mapping type
	DefaultMapType = "flat"

	// DefaultRatingModule is the rating module the mappings belong to
	DefaultRatingModule = "hashmap"

	// DefaultModulePriority is the priority set when the hashmap module is enabled
	DefaultModulePriority = 1
)

// Default timeouts used throughout the framework
const (
	// DefaultCollectTimeout bounds the wait for the collector to bill the volume.
	// It must exceed the CloudKitty collect period plus the Prometheus scrape interval.
	DefaultCollectTimeout = 10 * time.Minute

	// DefaultPollInitialInterval is the first delay between dataframe polls
	DefaultPollInitialInterval = 15 * time.Second

	// DefaultPollMaxInterval caps the backoff between dataframe polls
	DefaultPollMaxInterval = 60 * time.Second

	// DefaultPollMultiplier is the backoff factor between dataframe polls
	DefaultPollMultiplier = 2.0

	// DefaultVolumeReadyTimeout is the default timeout for a volume to become available
	DefaultVolumeReadyTimeout = 120 * time.Second

	// DefaultVolumePollInterval is the default interval for polling volume status
	DefaultVolumePollInterval = 2 * time.Second

	// DefaultCleanupTimeout bounds the whole cleanup phase
	DefaultCleanupTimeout = 2 * time.Minute

	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 60 * time.Second
)

// Cloud and monitoring defaults
const (
	// DefaultEndpointInterface is the Keystone catalog interface used for all services
	DefaultEndpointInterface = "public"

	// DefaultPrometheusQuery is the series the collector rates volumes from; %s is the volume id
	DefaultPrometheusQuery = `ceilometer_volume_size{resource="%s"}`

	// DefaultKubeNamespace is the namespace CloudKitty is deployed to on openstack-k8s-operators
	DefaultKubeNamespace = "openstack"

	// DefaultRatingPodSelector selects the CloudKitty API and processor pods
	DefaultRatingPodSelector = "service=cloudkitty"
)

// Environment variable names for configuration overrides
const (
	EnvServiceName         = "CLOUDKITTY_TEST_SERVICE_NAME"
	EnvVolumeName          = "CLOUDKITTY_TEST_VOLUME_NAME"
	EnvVolumeSize          = "CLOUDKITTY_TEST_VOLUME_SIZE"
	EnvFlatCost            = "CLOUDKITTY_TEST_FLAT_COST"
	EnvEnableHashmap       = "CLOUDKITTY_TEST_ENABLE_HASHMAP"
	EnvPreClean            = "CLOUDKITTY_TEST_PRE_CLEAN"
	EnvCollectTimeout      = "CLOUDKITTY_TEST_COLLECT_TIMEOUT"
	EnvPollInitialInterval = "CLOUDKITTY_TEST_POLL_INTERVAL"
	EnvPollMaxInterval     = "CLOUDKITTY_TEST_POLL_MAX_INTERVAL"
	EnvMinimumWait         = "CLOUDKITTY_TEST_MINIMUM_WAIT"
	EnvVolumeReadyTimeout  = "CLOUDKITTY_TEST_VOLUME_READY_TIMEOUT"
	EnvHTTPTimeout         = "CLOUDKITTY_TEST_HTTP_TIMEOUT"
	EnvSkipCleanup         = "CLOUDKITTY_TEST_SKIP_CLEANUP"
	EnvRegion              = "OS_REGION_NAME"
	EnvEndpointInterface   = "OS_INTERFACE"
	EnvPrometheusURL       = "CLOUDKITTY_TEST_PROMETHEUS_URL"
	EnvPrometheusToken     = "CLOUDKITTY_TEST_PROMETHEUS_TOKEN"
	EnvPrometheusQuery     = "CLOUDKITTY_TEST_PROMETHEUS_QUERY"
	EnvKubeNamespace       = "CLOUDKITTY_TEST_KUBE_NAMESPACE"
	EnvExpectedRating      = "CLOUDKITTY_TEST_EXPECTED_RATING"
	EnvRatingTolerance     = "CLOUDKITTY_TEST_RATING_TOLERANCE"
)

// Config holds framework configuration with optional overrides
type Config struct {
	// Rating rule
	ServiceName         string
	FlatCost            string
	MapType             string
	RatingModule        string
	ModulePriority      int
	EnableHashmapModule bool
	PreClean            bool

	// ExpectedRating enables an exact rating check; nil only requires rating > 0
	ExpectedRating  *float64
	RatingTolerance float64

	// Billed resource
	VolumeName string
	VolumeSize int

	// Collection polling
	CollectTimeout      time.Duration
	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	PollMultiplier      float64
	MinimumWait         time.Duration

	// Timeouts
	VolumeReadyTimeout time.Duration
	VolumePollInterval time.Duration
	CleanupTimeout     time.Duration
	HTTPTimeout        time.Duration
	SkipCleanup        bool

	// Cloud
	Region            string
	EndpointInterface string

	// Monitoring; PrometheusURL empty disables the scrape check
	PrometheusURL   string
	PrometheusToken string
	PrometheusQuery string

	// Kubernetes diagnostics
	KubeNamespace     string
	RatingPodSelector string
}

// Default returns a Config with all default values
func Default() *Config {
	return &Config{
		ServiceName:         DefaultServiceName,
		FlatCost:            DefaultFlatCost,
		MapType:             DefaultMapType,
		RatingModule:        DefaultRatingModule,
		ModulePriority:      DefaultModulePriority,
		VolumeName:          DefaultVolumeName,
		VolumeSize:          DefaultVolumeSize,
		CollectTimeout:      DefaultCollectTimeout,
		PollInitialInterval: DefaultPollInitialInterval,
		PollMaxInterval:     DefaultPollMaxInterval,
		PollMultiplier:      DefaultPollMultiplier,
		VolumeReadyTimeout:  DefaultVolumeReadyTimeout,
		VolumePollInterval:  DefaultVolumePollInterval,
		CleanupTimeout:      DefaultCleanupTimeout,
		HTTPTimeout:         DefaultHTTPTimeout,
		EndpointInterface:   DefaultEndpointInterface,
		PrometheusQuery:     DefaultPrometheusQuery,
		KubeNamespace:       DefaultKubeNamespace,
		RatingPodSelector:   DefaultRatingPodSelector,
	}
}

// FromEnv returns a Config with values from environment variables, falling back to defaults
func FromEnv() *Config {
	cfg := Default()

	stringVar(EnvServiceName, &cfg.ServiceName)
	stringVar(EnvVolumeName, &cfg.VolumeName)
	stringVar(EnvRegion, &cfg.Region)
	stringVar(EnvEndpointInterface, &cfg.EndpointInterface)
	stringVar(EnvPrometheusURL, &cfg.PrometheusURL)
	stringVar(EnvPrometheusToken, &cfg.PrometheusToken)
	stringVar(EnvPrometheusQuery, &cfg.PrometheusQuery)
	stringVar(EnvKubeNamespace, &cfg.KubeNamespace)

	if v := os.Getenv(EnvFlatCost); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.FlatCost = v
		}
	}

	if v := os.Getenv(EnvVolumeSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VolumeSize = n
		}
	}

	if v := os.Getenv(EnvExpectedRating); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ExpectedRating = &f
		}
	}
	if v := os.Getenv(EnvRatingTolerance); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RatingTolerance = f
		}
	}

	durationVar(EnvCollectTimeout, &cfg.CollectTimeout)
	durationVar(EnvPollInitialInterval, &cfg.PollInitialInterval)
	durationVar(EnvPollMaxInterval, &cfg.PollMaxInterval)
	durationVar(EnvMinimumWait, &cfg.MinimumWait)
	durationVar(EnvVolumeReadyTimeout, &cfg.VolumeReadyTimeout)
	durationVar(EnvHTTPTimeout, &cfg.HTTPTimeout)

	boolVar(EnvEnableHashmap, &cfg.EnableHashmapModule)
	boolVar(EnvPreClean, &cfg.PreClean)
	boolVar(EnvSkipCleanup, &cfg.SkipCleanup)

	return cfg
}

func stringVar(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func durationVar(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

func boolVar(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// WithServiceName returns a copy with updated hashmap service name
func (c *Config) WithServiceName(name string) *Config {
	cp := *c
	cp.ServiceName = name
	return &cp
}

// WithFlatCost returns a copy with updated flat mapping cost
func (c *Config) WithFlatCost(cost string) *Config {
	cp := *c
	cp.FlatCost = cost
	return &cp
}

// WithVolumeSize returns a copy with updated volume size
func (c *Config) WithVolumeSize(size int) *Config {
	cp := *c
	cp.VolumeSize = size
	return &cp
}

// WithCollectTimeout returns a copy with updated collection timeout
func (c *Config) WithCollectTimeout(d time.Duration) *Config {
	cp := *c
	cp.CollectTimeout = d
	return &cp
}

// WithPollIntervals returns a copy with updated dataframe poll backoff bounds
func (c *Config) WithPollIntervals(initial, max time.Duration) *Config {
	cp := *c
	cp.PollInitialInterval = initial
	cp.PollMaxInterval = max
	return &cp
}

// WithVolumeReadyTimeout returns a copy with updated volume readiness timeout and poll interval
func (c *Config) WithVolumeReadyTimeout(timeout, interval time.Duration) *Config {
	cp := *c
	cp.VolumeReadyTimeout = timeout
	cp.VolumePollInterval = interval
	return &cp
}

// WithHTTPTimeout returns a copy with updated HTTP timeout
func (c *Config) WithHTTPTimeout(d time.Duration) *Config {
	cp := *c
	cp.HTTPTimeout = d
	return &cp
}

// WithExpectedRating returns a copy that checks the rating against want ± tolerance
func (c *Config) WithExpectedRating(want, tolerance float64) *Config {
	cp := *c
	cp.ExpectedRating = &want
	cp.RatingTolerance = tolerance
	return &cp
}

// WithSkipCleanup returns a copy with cleanup disabled or enabled
func (c *Config) WithSkipCleanup(skip bool) *Config {
	cp := *c
	cp.SkipCleanup = skip
	return &cp
}
