package framework

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/redhat/cloudkitty-tests/test/framework/concurrent"
	"github.com/redhat/cloudkitty-tests/test/framework/gvr"
)

// logFetchConcurrency bounds parallel log streams
const logFetchConcurrency = 4

// LogCollectionConfig configures log collection behavior
type LogCollectionConfig struct {
	// OutputDir is the directory to write logs to
	OutputDir string
	// IncludePrevious includes logs from previous container instances
	IncludePrevious bool
	// SinceTime only returns logs after this time
	SinceTime *time.Time
	// TailLines limits the number of lines to return (0 = all)
	TailLines int64
}

// ContainerLogs holds logs for a single container
type ContainerLogs struct {
	Pod       string
	Container string
	Logs      string
	Error     error
}

// LogCollectionResult holds the result of collecting CloudKitty logs
type LogCollectionResult struct {
	Namespace string
	Timestamp time.Time
	Logs      []ContainerLogs
	OutputDir string
	Files     []string
}

type podContainer struct {
	pod       string
	container string
}

// CollectLogs writes the logs of the CloudKitty API and processor pods to
// OutputDir/<namespace>. Failures to read one container do not stop the others.
func (f *Framework) CollectLogs(ctx context.Context, cfg *LogCollectionConfig) (*LogCollectionResult, error) {
	if !f.HasKubernetes() {
		return nil, ErrKubeNotConfigured
	}
	if cfg == nil {
		cfg = &LogCollectionConfig{}
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "logs"
	}

	logDir := filepath.Join(cfg.OutputDir, f.namespace)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	pods, err := f.client.CoreV1().Pods(f.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: f.config.RatingPodSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list CloudKitty pods: %w", err)
	}

	var targets []podContainer
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodPending || pod.Status.Phase == corev1.PodUnknown {
			continue
		}
		for _, c := range pod.Spec.Containers {
			targets = append(targets, podContainer{pod: pod.Name, container: c.Name})
		}
	}

	f.logger.Info("Collecting CloudKitty logs", "namespace", f.namespace, "containers", len(targets))

	logs, _ := concurrent.MapWithLimit(ctx, targets, logFetchConcurrency, func(ctx context.Context, t podContainer) (ContainerLogs, error) {
		text, err := f.getPodContainerLogs(ctx, t.pod, t.container, cfg)
		return ContainerLogs{Pod: t.pod, Container: t.container, Logs: text, Error: err}, nil
	})

	result := &LogCollectionResult{
		Namespace: f.namespace,
		Timestamp: time.Now(),
		Logs:      logs,
		OutputDir: logDir,
	}

	for _, l := range logs {
		if l.Pod == "" {
			continue
		}
		if l.Error != nil {
			f.logger.Warn("Failed to read container logs", "pod", l.Pod, "container", l.Container, "error", l.Error)
			continue
		}
		if l.Logs == "" {
			continue
		}

		filename := strings.ReplaceAll(fmt.Sprintf("%s-%s.log", l.Pod, l.Container), "/", "-")
		path := filepath.Join(logDir, filename)
		if err := os.WriteFile(path, []byte(l.Logs), 0644); err != nil {
			f.logger.Warn("Failed to write log file", "file", path, "error", err)
			continue
		}
		result.Files = append(result.Files, path)
	}

	f.logger.Info("Collected CloudKitty logs", "files", len(result.Files), "dir", logDir)
	return result, nil
}

// getPodContainerLogs retrieves logs from a specific container
func (f *Framework) getPodContainerLogs(ctx context.Context, podName, containerName string, cfg *LogCollectionConfig) (string, error) {
	opts := &corev1.PodLogOptions{
		Container: containerName,
		Previous:  cfg.IncludePrevious,
	}

	if cfg.SinceTime != nil {
		t := metav1.NewTime(*cfg.SinceTime)
		opts.SinceTime = &t
	}

	if cfg.TailLines > 0 {
		opts.TailLines = &cfg.TailLines
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stream, err := f.client.CoreV1().Pods(f.namespace).GetLogs(podName, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to stream logs: %w", err)
	}
	defer stream.Close()

	var logs strings.Builder
	if _, err := io.Copy(&logs, stream); err != nil {
		return logs.String(), fmt.Errorf("failed to read logs: %w", err)
	}
	return logs.String(), nil
}

// DumpTelemetryCRs writes every telemetry custom resource in the namespace to
// a YAML file under outputDir/<namespace> and returns the file paths
func (f *Framework) DumpTelemetryCRs(ctx context.Context, outputDir string) ([]string, error) {
	if !f.HasKubernetes() {
		return nil, ErrKubeNotConfigured
	}
	if outputDir == "" {
		outputDir = "."
	}

	dir := filepath.Join(outputDir, f.namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var files []string
	for _, res := range gvr.AllTelemetryCRs() {
		list, err := f.dynamicClient.Resource(res).Namespace(f.namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return files, fmt.Errorf("failed to list %s: %w", res.Resource, err)
		}

		for i := range list.Items {
			cr := &list.Items[i]
			// Managed fields only clutter the dump
			cr.SetManagedFields(nil)

			data, err := yaml.Marshal(cr.UnstructuredContent())
			if err != nil {
				return files, fmt.Errorf("failed to marshal %s/%s: %w", res.Resource, cr.GetName(), err)
			}

			path := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", res.Resource, cr.GetName()))
			if err := os.WriteFile(path, data, 0644); err != nil {
				return files, fmt.Errorf("failed to write %s: %w", path, err)
			}
			files = append(files, path)
		}
	}

	f.logger.Info("Dumped telemetry CRs", "files", len(files), "dir", dir)
	return files, nil
}
