package gvr

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// openstack-k8s-operators telemetry resources
var (
	// CloudKitty is the GVR for CloudKitty custom resources
	CloudKitty = schema.GroupVersionResource{
		Group:    "telemetry.openstack.org",
		Version:  "v1beta1",
		Resource: "cloudkitties",
	}

	// Telemetry is the GVR for the Telemetry umbrella custom resource
	Telemetry = schema.GroupVersionResource{
		Group:    "telemetry.openstack.org",
		Version:  "v1beta1",
		Resource: "telemetries",
	}

	// MetricStorage is the GVR for the Prometheus stack that feeds the CloudKitty collector
	MetricStorage = schema.GroupVersionResource{
		Group:    "telemetry.openstack.org",
		Version:  "v1beta1",
		Resource: "metricstorages",
	}
)

// Core resources
var (
	// Pod is the GVR for Pod resources
	Pod = schema.GroupVersionResource{
		Group:    "",
		Version:  "v1",
		Resource: "pods",
	}
)

// OpenShift Route resources
var (
	// Route is the GVR for OpenShift Route resources
	Route = schema.GroupVersionResource{
		Group:    "route.openshift.io",
		Version:  "v1",
		Resource: "routes",
	}
)

// CRD names for prerequisite checks
const (
	// CloudKittyCRD is the full name of the CloudKitty CRD
	CloudKittyCRD = "cloudkitties.telemetry.openstack.org"

	// MetricStorageCRD is the full name of the MetricStorage CRD
	MetricStorageCRD = "metricstorages.telemetry.openstack.org"
)

// RequiredCRDs returns the CRDs that must be established before a scenario runs
func RequiredCRDs() []string {
	return []string{
		CloudKittyCRD,
		MetricStorageCRD,
	}
}

// AllTelemetryCRs returns the telemetry custom resource GVRs
func AllTelemetryCRs() []schema.GroupVersionResource {
	return []schema.GroupVersionResource{
		CloudKitty,
		Telemetry,
		MetricStorage,
	}
}
