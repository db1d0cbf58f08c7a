package framework

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/redhat/cloudkitty-tests/test/framework/gvr"
	"github.com/redhat/cloudkitty-tests/test/framework/metrics"
)

// PrometheusDiscovery locates the Prometheus that scrapes the volume usage
// series, exposed through an OpenShift route
type PrometheusDiscovery struct {
	// RouteName is the route in the framework namespace that exposes Prometheus
	RouteName string
	// ServiceAccount is used to mint a bearer token; empty sends no token
	ServiceAccount string
	// InsecureSkipVerify accepts the route's self-signed certificate
	InsecureSkipVerify bool
}

// DiscoverPrometheus resolves the Prometheus route, requests a token and
// enables the scrape check of WaitForCollection. It returns the resolved URL.
func (f *Framework) DiscoverPrometheus(ctx context.Context, d PrometheusDiscovery) (string, error) {
	if !f.HasKubernetes() {
		return "", ErrKubeNotConfigured
	}

	route, err := f.dynamicClient.Resource(gvr.Route).Namespace(f.namespace).Get(ctx, d.RouteName, metav1.GetOptions{})
	if err != nil {
		return "", NewResourceError("route", d.RouteName, err)
	}

	host, found, err := unstructured.NestedString(route.Object, "spec", "host")
	if err != nil || !found || host == "" {
		return "", NewResourceError("route", d.RouteName, fmt.Errorf("spec.host not set"))
	}

	scheme := "http"
	if _, tls, _ := unstructured.NestedMap(route.Object, "spec", "tls"); tls {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s", scheme, host)

	var token string
	if d.ServiceAccount != "" {
		token, err = metrics.GenerateToken(ctx, f.client, f.namespace, d.ServiceAccount)
		if err != nil {
			return "", err
		}
	}

	client, err := metrics.NewClient(metrics.ClientConfig{
		URL:                url,
		Token:              token,
		InsecureSkipVerify: d.InsecureSkipVerify,
		Timeout:            f.config.HTTPTimeout,
	})
	if err != nil {
		return "", err
	}

	f.series = client
	f.logger.Info("Prometheus discovered", "url", url, "route", d.RouteName)
	return url, nil
}

// SeriesCheckEnabled reports whether WaitForCollection waits for the usage series first
func (f *Framework) SeriesCheckEnabled() bool {
	return f.series != nil
}
