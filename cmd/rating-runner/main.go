package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/redhat/cloudkitty-tests/test/framework"
	"github.com/redhat/cloudkitty-tests/test/framework/config"
	"github.com/redhat/cloudkitty-tests/test/framework/metrics"
	"github.com/redhat/cloudkitty-tests/test/framework/profile"
)

type globalOptions struct {
	profilesDir string
	verbose     bool
}

type runOptions struct {
	profiles          []string
	outputDir         string
	format            string
	dryRun            bool
	skipCleanup       bool
	collectLogs       bool
	skipPrerequisites bool
	prometheusRoute   string
	prometheusSA      string
	insecure          bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	global := &globalOptions{}

	root := &cobra.Command{
		Use:   "rating-runner",
		Short: "Run CloudKitty dataframe collection scenarios",
		Long: `rating-runner provisions a billed volume with a hashmap rating rule,
waits for CloudKitty to rate it and validates the resulting dataframe,
once per profile. OpenStack credentials are read from the OS_* environment.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&global.profilesDir, "profiles-dir", "profiles", "Directory containing profile YAML files")
	root.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCommand(global), newProfilesCommand(global))
	return root
}

func newProfilesCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := profile.LoadAll(global.profilesDir)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collection scenario for one or more profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, global, opts)
		},
	}
	addRunFlags(cmd.Flags(), opts)
	return cmd
}

func addRunFlags(fs *pflag.FlagSet, o *runOptions) {
	fs.StringSliceVar(&o.profiles, "profiles", nil, "Comma-separated list of profiles to run (default: all)")
	fs.StringVar(&o.outputDir, "output", "results", "Output directory for reports and logs")
	fs.StringVar(&o.format, "format", string(metrics.FormatJSON), "Report format: json or csv")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Print what would be executed without running")
	fs.BoolVar(&o.skipCleanup, "skip-cleanup", false, "Leave provisioned resources behind (useful for debugging)")
	fs.BoolVar(&o.collectLogs, "collect-logs", false, "Collect CloudKitty pod logs and telemetry CRs when a profile fails")
	fs.BoolVar(&o.skipPrerequisites, "skip-prerequisites", false, "Do not check the rating API and CloudKitty deployment first")
	fs.StringVar(&o.prometheusRoute, "prometheus-route", "", "Route exposing Prometheus; enables the usage series check")
	fs.StringVar(&o.prometheusSA, "prometheus-sa", "", "Service account used to query Prometheus")
	fs.BoolVar(&o.insecure, "prometheus-insecure", false, "Skip TLS verification of the Prometheus route")
}

func run(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	format := metrics.Format(opts.format)
	if format != metrics.FormatJSON && format != metrics.FormatCSV {
		return fmt.Errorf("invalid format %q, must be json or csv", opts.format)
	}

	var profiles []*profile.Profile
	var err error
	if len(opts.profiles) > 0 {
		profiles, err = profile.LoadByNames(global.profilesDir, opts.profiles)
	} else {
		profiles, err = profile.LoadAll(global.profilesDir)
	}
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles found in %s", global.profilesDir)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d profile(s):\n", len(profiles))
	for _, p := range profiles {
		fmt.Fprintf(out, "  - %s: %s\n", p.Name, p.Description)
	}
	fmt.Fprintln(out)

	cfg := config.FromEnv().WithSkipCleanup(opts.skipCleanup)

	if opts.dryRun {
		fmt.Fprintln(out, "Dry run mode - would execute the following:")
		for _, p := range profiles {
			printProfileSummary(cmd, p.ApplyTo(cfg), p)
		}
		return nil
	}

	level := slog.LevelInfo
	if global.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// The first signal cancels the run; cleanup still runs on a detached context
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	fw, err := framework.New(ctx, framework.WithLogger(logger), framework.WithConfig(cfg))
	if err != nil {
		return err
	}

	if opts.collectLogs || opts.prometheusRoute != "" {
		if err := fw.ConnectKubernetes(); err != nil {
			logger.Warn("Kubernetes not available, diagnostics disabled", "error", err)
		}
	}

	if opts.prometheusRoute != "" && fw.HasKubernetes() {
		if _, err := fw.DiscoverPrometheus(ctx, framework.PrometheusDiscovery{
			RouteName:          opts.prometheusRoute,
			ServiceAccount:     opts.prometheusSA,
			InsecureSkipVerify: opts.insecure,
		}); err != nil {
			logger.Warn("Prometheus discovery failed, skipping the usage series check", "error", err)
		}
	}

	if !opts.skipPrerequisites {
		prereqs, err := fw.CheckPrerequisites(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, prereqs.String())
		if !prereqs.AllMet {
			return framework.ErrPrerequisite
		}
	}

	var results []*framework.ScenarioResult
	for _, p := range profiles {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "Aborted by user")
			break
		}

		fmt.Fprintf(out, "\n========================================\n")
		fmt.Fprintf(out, "Running profile: %s\n", p.Name)
		fmt.Fprintf(out, "========================================\n\n")

		result, err := fw.RunProfile(ctx, p)
		results = append(results, result)
		if err != nil {
			fmt.Fprintf(out, "Profile %s failed: %v\n", p.Name, err)
			if opts.collectLogs && fw.HasKubernetes() {
				collectDiagnostics(context.WithoutCancel(ctx), fw, filepath.Join(opts.outputDir, "logs", p.Name))
			}
		}
	}

	reportPath := filepath.Join(opts.outputDir, "report."+string(format))
	if err := fw.ExportReports(results, reportPath, format); err != nil {
		logger.Warn("Failed to export reports", "error", err)
	}

	failed := printSummary(cmd, results)
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", framework.ErrContextCancelled, ctx.Err())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d profile(s) failed", failed, len(results))
	}
	return nil
}

func collectDiagnostics(ctx context.Context, fw *framework.Framework, dir string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := fw.CollectLogs(ctx, &framework.LogCollectionConfig{OutputDir: dir, TailLines: 2000}); err != nil {
		fw.Logger().Warn("Failed to collect logs", "error", err)
	}
	if _, err := fw.DumpTelemetryCRs(ctx, dir); err != nil && !errors.Is(err, framework.ErrKubeNotConfigured) {
		fw.Logger().Warn("Failed to dump telemetry CRs", "error", err)
	}
}

func printProfileSummary(cmd *cobra.Command, cfg *config.Config, p *profile.Profile) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nProfile: %s\n", p.Name)
	fmt.Fprintf(out, "  Description: %s\n", p.Description)
	fmt.Fprintf(out, "  Rating:\n")
	fmt.Fprintf(out, "    Service: %s\n", cfg.ServiceName)
	fmt.Fprintf(out, "    Mapping: %s cost %s\n", cfg.MapType, cfg.FlatCost)
	if cfg.EnableHashmapModule {
		fmt.Fprintf(out, "    Module: enable %s (priority %d)\n", cfg.RatingModule, cfg.ModulePriority)
	}
	if cfg.PreClean {
		fmt.Fprintf(out, "    Pre-clean: delete stale %q services\n", cfg.ServiceName)
	}
	fmt.Fprintf(out, "  Volume: %s_<id>, %d GiB\n", cfg.VolumeName, cfg.VolumeSize)
	fmt.Fprintf(out, "  Collection:\n")
	fmt.Fprintf(out, "    Timeout: %s\n", cfg.CollectTimeout)
	fmt.Fprintf(out, "    Poll: %s up to %s (x%.1f)\n", cfg.PollInitialInterval, cfg.PollMaxInterval, cfg.PollMultiplier)
	if cfg.MinimumWait > 0 {
		fmt.Fprintf(out, "    Minimum wait: %s\n", cfg.MinimumWait)
	}
	if cfg.ExpectedRating != nil {
		fmt.Fprintf(out, "  Expected rating: %g ± %g\n", *cfg.ExpectedRating, cfg.RatingTolerance)
	} else {
		fmt.Fprintf(out, "  Expected rating: > 0\n")
	}
}

func printSummary(cmd *cobra.Command, results []*framework.ScenarioResult) int {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n========================================\n")
	fmt.Fprintf(out, "SUMMARY\n")
	fmt.Fprintf(out, "========================================\n")

	var passed, failed int
	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
			failed++
		} else {
			passed++
		}
		line := fmt.Sprintf("  %s: %s (%s)", r.Name, status, r.Duration().Round(time.Second))
		if r.Record != nil {
			line += fmt.Sprintf(" rating=%s", r.Record.Rating)
		}
		if r.CleanupErr != nil {
			line += " [cleanup incomplete]"
		}
		fmt.Fprintln(out, line)
	}

	fmt.Fprintf(out, "\nTotal: %d passed, %d failed\n", passed, failed)
	return failed
}
