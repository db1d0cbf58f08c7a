package framework

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
	"github.com/redhat/cloudkitty-tests/test/framework/rating"
	"github.com/redhat/cloudkitty-tests/test/framework/volume"
	"github.com/redhat/cloudkitty-tests/test/framework/wait"
)

// Sentinel errors for framework operations
var (
	// ErrAuthRequired indicates that no OpenStack credentials were found in the environment
	ErrAuthRequired = errors.New("openstack credentials are required")

	// ErrCollectionTimeout indicates that the collector did not bill the volume in time
	ErrCollectionTimeout = errors.New("dataframe collection timed out")

	// ErrVolumeError indicates that the billed volume ended up in the error state
	ErrVolumeError = wait.ErrVolumeFailed

	// ErrNoDataframes indicates that the rating API returned no dataframes
	ErrNoDataframes = dataframe.ErrNoDataframes

	// ErrNoMatchingRecord indicates that no dataframe describes the provisioned volume
	ErrNoMatchingRecord = dataframe.ErrNoMatchingRecord

	// ErrCRDNotEstablished indicates that a CRD is not in established condition
	ErrCRDNotEstablished = errors.New("CRD not established")

	// ErrPodNotReady indicates that pods failed to become ready
	ErrPodNotReady = errors.New("pod not ready")

	// ErrPrerequisite indicates that the environment cannot run the scenario
	ErrPrerequisite = errors.New("prerequisites not met")

	// ErrKubeNotConfigured indicates that a Kubernetes operation was requested without clients
	ErrKubeNotConfigured = errors.New("kubernetes clients not configured")

	// ErrResourceNotFound indicates that a resource was not found
	ErrResourceNotFound = errors.New("resource not found")

	// ErrClusterConnection indicates failure to connect to the cluster
	ErrClusterConnection = errors.New("failed to connect to cluster")

	// ErrContextCancelled indicates the operation was cancelled
	ErrContextCancelled = errors.New("operation cancelled")
)

// Provisioning stages reported by ProvisionError
const (
	StagePreClean    = "pre-clean"
	StageModule      = "rating module"
	StageVolume      = "volume"
	StageVolumeReady = "volume available"
	StageService     = "hashmap service"
	StageMapping     = "hashmap mapping"
)

// ProvisionError reports the provisioning stage that failed
type ProvisionError struct {
	Stage string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// NewProvisionError creates a new ProvisionError
func NewProvisionError(stage string, err error) *ProvisionError {
	return &ProvisionError{
		Stage: stage,
		Err:   err,
	}
}

// ResourceError represents an error related to a specific resource
type ResourceError struct {
	Kind string
	ID   string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(kind, id string, err error) *ResourceError {
	return &ResourceError{
		Kind: kind,
		ID:   id,
		Err:  err,
	}
}

// PrerequisiteError represents an error when checking prerequisites
type PrerequisiteError struct {
	Component string
	Err       error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite check failed for %s: %v", e.Component, e.Err)
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

func (e *PrerequisiteError) Is(target error) bool {
	return target == ErrPrerequisite
}

// NewPrerequisiteError creates a new PrerequisiteError
func NewPrerequisiteError(component string, err error) *PrerequisiteError {
	return &PrerequisiteError{
		Component: component,
		Err:       err,
	}
}

// CleanupError represents errors during cleanup operations
type CleanupError struct {
	Phase string
	Errs  []error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed during %s phase: %v", e.Phase, errors.Join(e.Errs...))
}

func (e *CleanupError) Unwrap() error {
	return errors.Join(e.Errs...)
}

// NewCleanupError creates a new CleanupError
func NewCleanupError(phase string, errs ...error) *CleanupError {
	return &CleanupError{
		Phase: phase,
		Errs:  errs,
	}
}

// TimeoutError represents a timeout during an operation
type TimeoutError struct {
	Operation string
	Duration  string
	Details   string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timeout after %s waiting for %s", e.Duration, e.Operation)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	switch target {
	case ErrCollectionTimeout, wait.ErrTimeout:
		return true
	}
	return false
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, details string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Details:   details,
	}
}

// IsNotFound returns true if the error indicates a resource was not found,
// whether it came from OpenStack, the rating API or Kubernetes
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) ||
		rating.IsNotFound(err) ||
		volume.IsNotFound(err) ||
		apierrors.IsNotFound(err)
}

// IsTimeout returns true if the error is a timeout error
func IsTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, ErrCollectionTimeout) || errors.Is(err, wait.ErrTimeout)
}

// IsCancelled returns true if the error indicates cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrContextCancelled) || errors.Is(err, context.Canceled)
}
