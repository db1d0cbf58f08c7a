package framework

import (
	"context"
	"fmt"
	"strings"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/redhat/cloudkitty-tests/test/framework/gvr"
	"github.com/redhat/cloudkitty-tests/test/framework/wait"
)

// PrerequisiteStatus represents the status of a single prerequisite
type PrerequisiteStatus struct {
	Name      string
	Installed bool
	Skipped   bool
	Message   string
}

func (s PrerequisiteStatus) symbol() string {
	switch {
	case s.Skipped:
		return "-"
	case s.Installed:
		return "✓"
	default:
		return "✗"
	}
}

// PrerequisitesResult contains the results of all prerequisite checks
type PrerequisitesResult struct {
	RatingAPI     PrerequisiteStatus
	Operator      PrerequisiteStatus
	CloudKittyCR  PrerequisiteStatus
	RatingWorkers PrerequisiteStatus
	AllMet        bool
}

// CheckPrerequisites verifies that the rating API answers and, when Kubernetes
// clients are configured, that the CloudKitty deployment is healthy
func (f *Framework) CheckPrerequisites(ctx context.Context) (*PrerequisitesResult, error) {
	if f.rating == nil {
		return nil, NewPrerequisiteError("rating API", ErrAuthRequired)
	}

	result := &PrerequisitesResult{}
	result.RatingAPI = f.checkRatingModule(ctx)

	if f.HasKubernetes() {
		result.Operator = checkCRDs(ctx, f.apiextClient, "CloudKitty operator", gvr.RequiredCRDs())
		result.CloudKittyCR = f.checkCloudKittyReady(ctx)
		result.RatingWorkers = f.checkRatingPods(ctx)
	} else {
		skipped := PrerequisiteStatus{Skipped: true, Message: "kubernetes not configured"}
		result.Operator, result.CloudKittyCR, result.RatingWorkers = skipped, skipped, skipped
		result.Operator.Name = "CloudKitty operator"
		result.CloudKittyCR.Name = "CloudKitty CR"
		result.RatingWorkers.Name = "CloudKitty pods"
	}

	result.AllMet = true
	for _, s := range []PrerequisiteStatus{result.RatingAPI, result.Operator, result.CloudKittyCR, result.RatingWorkers} {
		if !s.Skipped && !s.Installed {
			result.AllMet = false
		}
	}
	return result, nil
}

// checkRatingModule reads the configured rating module; a disabled module only
// passes when the scenario is allowed to enable it
func (f *Framework) checkRatingModule(ctx context.Context) PrerequisiteStatus {
	status := PrerequisiteStatus{Name: "Rating API"}

	module, err := f.rating.GetModule(ctx, f.config.RatingModule)
	if err != nil {
		status.Message = fmt.Sprintf("failed to read module %s: %v", f.config.RatingModule, err)
		return status
	}

	switch {
	case module.Enabled:
		status.Installed = true
		status.Message = fmt.Sprintf("module %s enabled (priority %d)", module.Name, module.Priority)
	case f.config.EnableHashmapModule:
		status.Installed = true
		status.Message = fmt.Sprintf("module %s disabled, will be enabled by the scenario", module.Name)
	default:
		status.Message = fmt.Sprintf("module %s is disabled", module.Name)
	}
	return status
}

// checkCRDs verifies that all required CRDs for an operator are installed
func checkCRDs(ctx context.Context, client apiextensionsclient.Interface, operatorName string, crds []string) PrerequisiteStatus {
	status := PrerequisiteStatus{
		Name:      operatorName,
		Installed: true,
	}

	var missing []string
	var found []string

	for _, crdName := range crds {
		crd, err := client.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, crdName, metav1.GetOptions{})
		if err != nil {
			missing = append(missing, crdName)
			status.Installed = false
			continue
		}

		if !isCRDEstablished(crd) {
			missing = append(missing, crdName+" (not established)")
			status.Installed = false
			continue
		}

		found = append(found, crdName)
	}

	if status.Installed {
		status.Message = fmt.Sprintf("All CRDs found: %v", found)
	} else {
		status.Message = fmt.Sprintf("Missing CRDs: %v", missing)
	}

	return status
}

// isCRDEstablished checks if the CRD has the Established condition set to True
func isCRDEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, cond := range crd.Status.Conditions {
		if cond.Type == apiextensionsv1.Established && cond.Status == apiextensionsv1.ConditionTrue {
			return true
		}
	}
	return false
}

// checkCloudKittyReady requires every CloudKitty CR in the namespace to report Ready=True
func (f *Framework) checkCloudKittyReady(ctx context.Context) PrerequisiteStatus {
	status := PrerequisiteStatus{Name: "CloudKitty CR"}

	list, err := f.dynamicClient.Resource(gvr.CloudKitty).Namespace(f.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		status.Message = fmt.Sprintf("failed to list CloudKitty CRs: %v", err)
		return status
	}
	if len(list.Items) == 0 {
		status.Message = fmt.Sprintf("no CloudKitty CR in namespace %s", f.namespace)
		return status
	}

	var notReady []string
	for i := range list.Items {
		if !conditionTrue(&list.Items[i], "Ready") {
			notReady = append(notReady, list.Items[i].GetName())
		}
	}
	if len(notReady) > 0 {
		status.Message = fmt.Sprintf("not ready: %s", strings.Join(notReady, ", "))
		return status
	}

	status.Installed = true
	status.Message = fmt.Sprintf("%d CloudKitty CR(s) ready", len(list.Items))
	return status
}

// conditionTrue reports whether status.conditions holds condType with status "True"
func conditionTrue(obj *unstructured.Unstructured, condType string) bool {
	conditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil || !found {
		return false
	}
	for _, c := range conditions {
		cond, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if cond["type"] == condType && cond["status"] == "True" {
			return true
		}
	}
	return false
}

// checkRatingPods requires at least one ready CloudKitty pod
func (f *Framework) checkRatingPods(ctx context.Context) PrerequisiteStatus {
	status := PrerequisiteStatus{Name: "CloudKitty pods"}

	pods, err := f.client.CoreV1().Pods(f.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: f.config.RatingPodSelector,
	})
	if err != nil {
		status.Message = fmt.Sprintf("failed to list pods: %v", err)
		return status
	}

	ready := wait.CountReady(pods.Items)
	status.Installed = ready > 0
	status.Message = fmt.Sprintf("%d/%d pods ready (%s)", ready, len(pods.Items), f.config.RatingPodSelector)
	return status
}

// String returns a human-readable summary of the prerequisites result
func (r *PrerequisitesResult) String() string {
	var b strings.Builder
	b.WriteString("Prerequisites Check:\n")
	for _, s := range []PrerequisiteStatus{r.RatingAPI, r.Operator, r.CloudKittyCR, r.RatingWorkers} {
		fmt.Fprintf(&b, "  %s %s: %s\n", s.symbol(), s.Name, s.Message)
	}
	fmt.Fprintf(&b, "  All prerequisites met: %v", r.AllMet)
	return b.String()
}
