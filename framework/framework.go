package framework

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/identity/v3/tokens"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/redhat/cloudkitty-tests/test/framework/config"
	"github.com/redhat/cloudkitty-tests/test/framework/metrics"
	"github.com/redhat/cloudkitty-tests/test/framework/rating"
	"github.com/redhat/cloudkitty-tests/test/framework/volume"
	"github.com/redhat/cloudkitty-tests/test/framework/wait"
)

// Framework wires the OpenStack, CloudKitty, Prometheus and Kubernetes clients a scenario needs
type Framework struct {
	ctx    context.Context
	logger *slog.Logger
	config *config.Config

	volumes VolumeClient
	rating  RatingClient
	series  wait.SeriesChecker

	// Identity of the authenticated session, used when Cinder hides the volume owner
	projectID string
	userID    string

	// Optional Kubernetes access for prerequisites and diagnostics
	client        kubernetes.Interface
	dynamicClient dynamic.Interface
	apiextClient  apiextensionsclient.Interface
	namespace     string
}

// Option is a function that configures the Framework
type Option func(*Framework)

// WithLogger sets a custom logger for the framework
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framework) {
		f.logger = logger
	}
}

// WithConfig sets a custom configuration for the framework
func WithConfig(cfg *config.Config) Option {
	return func(f *Framework) {
		f.config = cfg
	}
}

// WithVolumeClient sets the block storage client instead of authenticating from the environment
func WithVolumeClient(c VolumeClient) Option {
	return func(f *Framework) {
		f.volumes = c
	}
}

// WithRatingClient sets the CloudKitty client instead of authenticating from the environment
func WithRatingClient(c RatingClient) Option {
	return func(f *Framework) {
		f.rating = c
	}
}

// WithSeriesChecker enables the Prometheus scrape check before polling dataframes
func WithSeriesChecker(c wait.SeriesChecker) Option {
	return func(f *Framework) {
		f.series = c
	}
}

// WithIdentity sets the project and user that own the provisioned resources
func WithIdentity(projectID, userID string) Option {
	return func(f *Framework) {
		f.projectID = projectID
		f.userID = userID
	}
}

// WithKubeClients enables Kubernetes prerequisites and diagnostics
func WithKubeClients(client kubernetes.Interface, dynamicClient dynamic.Interface, apiext apiextensionsclient.Interface) Option {
	return func(f *Framework) {
		f.client = client
		f.dynamicClient = dynamicClient
		f.apiextClient = apiext
	}
}

// New creates a new Framework. Clients not supplied through options are built
// from the OS_* environment (Keystone v3) and the configuration.
func New(ctx context.Context, opts ...Option) (*Framework, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	f := &Framework{
		ctx:    ctx,
		logger: slog.Default(),
		config: config.FromEnv(),
	}

	// Apply options
	for _, opt := range opts {
		opt(f)
	}

	f.namespace = f.config.KubeNamespace

	if f.volumes == nil || f.rating == nil {
		if err := f.connectOpenStack(); err != nil {
			return nil, err
		}
	}

	if f.series == nil && f.config.PrometheusURL != "" {
		promClient, err := metrics.NewClient(metrics.ClientConfig{
			URL:     f.config.PrometheusURL,
			Token:   f.config.PrometheusToken,
			Timeout: f.config.HTTPTimeout,
		})
		if err != nil {
			return nil, err
		}
		f.series = promClient
	}

	return f, nil
}

func (f *Framework) connectOpenStack() error {
	ao, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	ao.AllowReauth = true

	provider, err := openstack.NewClient(ao.IdentityEndpoint)
	if err != nil {
		return fmt.Errorf("failed to create openstack client: %w", err)
	}
	provider.HTTPClient = http.Client{Timeout: f.config.HTTPTimeout}

	if err := openstack.Authenticate(provider, ao); err != nil {
		return fmt.Errorf("%w: keystone authentication failed: %v", ErrAuthRequired, err)
	}

	if result, ok := provider.GetAuthResult().(tokens.CreateResult); ok {
		if project, err := result.ExtractProject(); err == nil && project != nil && f.projectID == "" {
			f.projectID = project.ID
		}
		if user, err := result.ExtractUser(); err == nil && user != nil && f.userID == "" {
			f.userID = user.ID
		}
	}

	eo := gophercloud.EndpointOpts{
		Region:       f.config.Region,
		Availability: gophercloud.Availability(f.config.EndpointInterface),
	}

	if f.volumes == nil {
		vc, err := volume.NewClient(provider, eo)
		if err != nil {
			return err
		}
		f.volumes = vc
	}
	if f.rating == nil {
		rc, err := rating.NewClient(provider, eo)
		if err != nil {
			return err
		}
		f.rating = rc
	}

	f.logger.Debug("Authenticated against keystone", "project_id", f.projectID, "region", f.config.Region)
	return nil
}

// ConnectKubernetes builds Kubernetes clients from the in-cluster config or the default kubeconfig
func (f *Framework) ConnectKubernetes() error {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		restConfig, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrClusterConnection, err)
		}
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("%w: failed to create kubernetes client: %v", ErrClusterConnection, err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("%w: failed to create dynamic client: %v", ErrClusterConnection, err)
	}

	apiext, err := apiextensionsclient.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("%w: failed to create apiextensions client: %v", ErrClusterConnection, err)
	}

	WithKubeClients(client, dynamicClient, apiext)(f)
	return nil
}

// HasKubernetes reports whether Kubernetes clients are configured
func (f *Framework) HasKubernetes() bool {
	return f.client != nil
}

// Namespace returns the namespace CloudKitty runs in
func (f *Framework) Namespace() string {
	return f.namespace
}

// Client returns the Kubernetes client
func (f *Framework) Client() kubernetes.Interface {
	return f.client
}

// DynamicClient returns the dynamic Kubernetes client
func (f *Framework) DynamicClient() dynamic.Interface {
	return f.dynamicClient
}

// FrameworkConfig returns the framework configuration
func (f *Framework) FrameworkConfig() *config.Config {
	return f.config
}

// Context returns the context
func (f *Framework) Context() context.Context {
	return f.ctx
}

// Logger returns the logger
func (f *Framework) Logger() *slog.Logger {
	return f.logger
}

// Rating returns the CloudKitty client
func (f *Framework) Rating() RatingClient {
	return f.rating
}

// Volumes returns the block storage client
func (f *Framework) Volumes() VolumeClient {
	return f.volumes
}
