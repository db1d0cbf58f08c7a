package wait

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
)

// ForPodsReady waits for at least minReady pods matching the selector to be ready
func ForPodsReady(ctx context.Context, client kubernetes.Interface, namespace string, selector labels.Selector, minReady int, p Poll) error {
	op := fmt.Sprintf("pods %q in %s ready", selector.String(), namespace)
	return Until(ctx, op, p, func(ctx context.Context) (bool, error) {
		pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: selector.String(),
		})
		if err != nil {
			return false, fmt.Errorf("failed to list pods: %w", err)
		}
		return CountReady(pods.Items) >= minReady && len(pods.Items) > 0, nil
	})
}

// CountReady returns how many of the pods are ready
func CountReady(pods []corev1.Pod) int {
	ready := 0
	for i := range pods {
		if IsPodReady(&pods[i]) {
			ready++
		}
	}
	return ready
}

// IsPodReady checks if a pod is in Ready state
func IsPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}

	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			return condition.Status == corev1.ConditionTrue
		}
	}

	return false
}
