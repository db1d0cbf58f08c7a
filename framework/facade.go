package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/redhat/cloudkitty-tests/test/framework/metrics"
	"github.com/redhat/cloudkitty-tests/test/framework/profile"
	"github.com/redhat/cloudkitty-tests/test/framework/wait"
)

// RunScenario runs the collect-dataframe scenario with the framework configuration
func (f *Framework) RunScenario(ctx context.Context, name string) (*ScenarioResult, error) {
	return f.NewScenario(name).Run(ctx)
}

// RunProfile runs the scenario with the profile's overrides applied to the framework configuration
func (f *Framework) RunProfile(ctx context.Context, p *profile.Profile) (*ScenarioResult, error) {
	return f.NewScenarioWithConfig(p.Name, p.ApplyTo(f.config)).Run(ctx)
}

// WaitForRatingPods waits until at least minReady CloudKitty pods are ready
func (f *Framework) WaitForRatingPods(ctx context.Context, timeout time.Duration, minReady int) error {
	if !f.HasKubernetes() {
		return ErrKubeNotConfigured
	}

	selector, err := labels.Parse(f.config.RatingPodSelector)
	if err != nil {
		return fmt.Errorf("invalid rating pod selector %q: %w", f.config.RatingPodSelector, err)
	}

	err = wait.ForPodsReady(ctx, f.client, f.namespace, selector, minReady, wait.Poll{
		Timeout:         timeout,
		InitialInterval: f.config.VolumePollInterval,
		Logger:          f.logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPodNotReady, err)
	}
	return nil
}

// ExportReports writes scenario results to outputPath; the format is taken
// from the extension when format is empty
func (f *Framework) ExportReports(results []*ScenarioResult, outputPath string, format metrics.Format) error {
	reports := lo.Map(results, func(r *ScenarioResult, _ int) metrics.Report {
		return r.Report()
	})

	if err := metrics.NewExporter(outputPath, format).Export(reports); err != nil {
		return fmt.Errorf("failed to export reports: %w", err)
	}

	f.logger.Info("Reports exported", "path", outputPath, "count", len(reports))
	return nil
}
