package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/redhat/cloudkitty-tests/test/framework/concurrent"
	"github.com/redhat/cloudkitty-tests/test/framework/config"
	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
	"github.com/redhat/cloudkitty-tests/test/framework/metrics"
	"github.com/redhat/cloudkitty-tests/test/framework/rating"
	"github.com/redhat/cloudkitty-tests/test/framework/volume"
	"github.com/redhat/cloudkitty-tests/test/framework/wait"
)

// Scenario stage names used in timings and reports
const (
	PhaseProvision = "provision"
	PhaseWait      = "wait_for_collection"
	PhaseFetch     = "fetch_dataframes"
	PhaseValidate  = "validate"
	PhaseCleanup   = "cleanup"
)

// preCleanConcurrency bounds parallel deletions of stale hashmap services
const preCleanConcurrency = 4

// Resources are the objects a scenario provisioned
type Resources struct {
	Volume    *volume.Volume
	ServiceID string
	MappingID string

	// ModuleEnabled is set when the run enabled the rating module and restores it on cleanup
	ModuleEnabled bool
}

// Scenario provisions a billed volume with a hashmap rule, waits for the
// collector to rate it and validates the resulting dataframe. A Scenario is
// single use and not safe for concurrent use.
type Scenario struct {
	fw     *Framework
	name   string
	cfg    *config.Config
	logger *slog.Logger

	cleanup   *CleanupStack
	resources Resources
	response  dataframe.Response
	record    *dataframe.Record
}

// NewScenario creates a scenario using the framework configuration
func (f *Framework) NewScenario(name string) *Scenario {
	return f.NewScenarioWithConfig(name, f.config)
}

// NewScenarioWithConfig creates a scenario with its own configuration, typically from a profile
func (f *Framework) NewScenarioWithConfig(name string, cfg *config.Config) *Scenario {
	logger := f.logger.With("scenario", name)
	return &Scenario{
		fw:      f,
		name:    name,
		cfg:     cfg,
		logger:  logger,
		cleanup: NewCleanupStack(logger),
	}
}

// Name returns the scenario name
func (s *Scenario) Name() string {
	return s.name
}

// Resources returns what has been provisioned so far
func (s *Scenario) Resources() Resources {
	return s.resources
}

// Provision creates the rating rule and the billed volume. Each object is
// registered for cleanup as soon as its id is known; the first failure stops
// provisioning with a *ProvisionError.
func (s *Scenario) Provision(ctx context.Context) error {
	if s.cfg.PreClean {
		if err := s.preClean(ctx); err != nil {
			return NewProvisionError(StagePreClean, err)
		}
	}

	if s.cfg.EnableHashmapModule {
		if err := s.enableModule(ctx); err != nil {
			return NewProvisionError(StageModule, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return NewProvisionError(StageVolume, err)
	}
	name := fmt.Sprintf("%s_%s", s.cfg.VolumeName, uuid.NewString()[:8])
	vol, err := s.fw.volumes.Create(ctx, name, s.cfg.VolumeSize)
	if err != nil {
		return NewProvisionError(StageVolume, err)
	}
	s.resources.Volume = vol
	s.cleanup.Push("volume "+vol.ID, func(ctx context.Context) error {
		return s.fw.volumes.Delete(ctx, vol.ID)
	})
	s.logger.Info("Volume created", "volume_id", vol.ID, "name", name, "size_gb", s.cfg.VolumeSize)

	ready, err := wait.ForVolumeAvailable(ctx, s.fw.volumes, vol.ID, wait.Poll{
		Timeout:         s.cfg.VolumeReadyTimeout,
		InitialInterval: s.cfg.VolumePollInterval,
		MaxInterval:     s.cfg.VolumePollInterval,
		Logger:          s.logger,
	})
	if err != nil {
		return NewProvisionError(StageVolumeReady, err)
	}
	if ready.ProjectID == "" {
		ready.ProjectID = s.fw.projectID
	}
	if ready.UserID == "" {
		ready.UserID = s.fw.userID
	}
	s.resources.Volume = ready

	if err := ctx.Err(); err != nil {
		return NewProvisionError(StageService, err)
	}
	svc, err := s.fw.rating.CreateHashmapService(ctx, s.cfg.ServiceName)
	if err != nil {
		return NewProvisionError(StageService, err)
	}
	s.resources.ServiceID = svc.ServiceID
	s.cleanup.Push("hashmap service "+svc.ServiceID, func(ctx context.Context) error {
		return s.fw.rating.DeleteHashmapService(ctx, svc.ServiceID)
	})
	s.logger.Info("Hashmap service created", "service_id", svc.ServiceID, "service", s.cfg.ServiceName)

	if err := ctx.Err(); err != nil {
		return NewProvisionError(StageMapping, err)
	}
	mapping, err := s.fw.rating.CreateHashmapMapping(ctx, rating.MappingOpts{
		ServiceID: svc.ServiceID,
		Cost:      s.cfg.FlatCost,
		Type:      s.cfg.MapType,
	})
	if err != nil {
		return NewProvisionError(StageMapping, err)
	}
	s.resources.MappingID = mapping.MappingID
	s.cleanup.Push("hashmap mapping "+mapping.MappingID, func(ctx context.Context) error {
		return s.fw.rating.DeleteHashmapMapping(ctx, mapping.MappingID)
	})
	s.logger.Info("Hashmap mapping created", "mapping_id", mapping.MappingID, "cost", s.cfg.FlatCost, "type", s.cfg.MapType)

	return nil
}

// preClean removes hashmap services with the configured name left behind by an earlier run
func (s *Scenario) preClean(ctx context.Context) error {
	services, err := s.fw.rating.ListHashmapServices(ctx)
	if err != nil {
		return err
	}
	stale := lo.Filter(services, func(svc rating.HashmapService, _ int) bool {
		return svc.Name == s.cfg.ServiceName
	})
	return concurrent.ForEachWithLimit(ctx, stale, preCleanConcurrency, func(ctx context.Context, svc rating.HashmapService) error {
		s.logger.Warn("Deleting stale hashmap service", "service_id", svc.ServiceID, "service", svc.Name)
		if err := s.fw.rating.DeleteHashmapService(ctx, svc.ServiceID); err != nil && !IsNotFound(err) {
			return NewResourceError("hashmap service", svc.ServiceID, err)
		}
		return nil
	})
}

// enableModule turns the rating module on and registers the restore of its previous state
func (s *Scenario) enableModule(ctx context.Context) error {
	module := s.cfg.RatingModule
	prev, err := s.fw.rating.GetModule(ctx, module)
	if err != nil {
		return err
	}
	if prev.Enabled && prev.Priority == s.cfg.ModulePriority {
		s.logger.Debug("Rating module already enabled", "module", module, "priority", prev.Priority)
		return nil
	}

	if err := s.fw.rating.UpdateModule(ctx, module, rating.ModuleUpdate{Enabled: true, Priority: s.cfg.ModulePriority}); err != nil {
		return err
	}
	s.resources.ModuleEnabled = true
	restore := rating.ModuleUpdate{Enabled: prev.Enabled, Priority: prev.Priority}
	s.cleanup.Push("rating module "+module, func(ctx context.Context) error {
		return s.fw.rating.UpdateModule(ctx, module, restore)
	})
	s.logger.Info("Rating module enabled", "module", module, "priority", s.cfg.ModulePriority, "was_enabled", prev.Enabled)
	return nil
}

// WaitForCollection polls until the collector has rated the volume. The whole
// wait, scrape check included, is bounded by the collect timeout.
func (s *Scenario) WaitForCollection(ctx context.Context) error {
	vol := s.resources.Volume
	if vol == nil {
		return errors.New("no volume provisioned")
	}
	deadline := time.Now().Add(s.cfg.CollectTimeout)

	if s.cfg.MinimumWait > 0 {
		s.logger.Info("Waiting before the first poll", "minimum_wait", s.cfg.MinimumWait)
		timer := time.NewTimer(s.cfg.MinimumWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	if s.fw.series != nil && s.cfg.PrometheusQuery != "" {
		query := fmt.Sprintf(s.cfg.PrometheusQuery, vol.ID)
		s.logger.Info("Waiting for the usage series to be scraped", "query", query)
		if err := wait.ForMetricSeries(ctx, s.fw.series, query, s.poll(deadline)); err != nil {
			return s.collectionError(err, "usage series "+query, "")
		}
	}

	q := rating.DataframeQuery{ResourceType: s.cfg.ServiceName}
	s.logger.Info("Waiting for the volume to be rated", "volume_id", vol.ID, "timeout", time.Until(deadline).Round(time.Second))
	resp, err := wait.ForDataframe(ctx, s.fw.rating, q, vol.ID, s.poll(deadline))
	s.response = resp
	if err != nil {
		details := fmt.Sprintf("last response kind %s with %d records", resp.Kind, len(dataframe.Normalize(resp)))
		return s.collectionError(err, "dataframe for volume "+vol.ID, details)
	}
	return nil
}

func (s *Scenario) poll(deadline time.Time) wait.Poll {
	return wait.Poll{
		Timeout:         max(time.Until(deadline), time.Millisecond),
		InitialInterval: s.cfg.PollInitialInterval,
		MaxInterval:     s.cfg.PollMaxInterval,
		Multiplier:      s.cfg.PollMultiplier,
		Logger:          s.logger,
	}
}

func (s *Scenario) collectionError(err error, operation, details string) error {
	if errors.Is(err, wait.ErrTimeout) {
		var we *wait.TimeoutError
		if errors.As(err, &we) && we.LastErr != nil {
			details = joinDetails(details, "last error: "+we.LastErr.Error())
		}
		return NewTimeoutError(operation, s.cfg.CollectTimeout.String(), details)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: waiting for %s: %w", ErrContextCancelled, operation, err)
	}
	return fmt.Errorf("waiting for %s: %w", operation, err)
}

func joinDetails(a, b string) string {
	if a == "" {
		return b
	}
	return a + ", " + b
}

// FetchDataframes performs the single dataframes request that is validated
func (s *Scenario) FetchDataframes(ctx context.Context) (dataframe.Response, error) {
	resp, err := s.fw.rating.GetDataframes(ctx, rating.DataframeQuery{ResourceType: s.cfg.ServiceName})
	if err != nil {
		return dataframe.Response{}, fmt.Errorf("failed to fetch dataframes: %w", err)
	}
	s.response = resp
	s.logger.Info("Dataframes fetched", "kind", resp.Kind, "records", resp.Len())
	return resp, nil
}

// Validate checks the fetched dataframes against the provisioned volume
func (s *Scenario) Validate() (*dataframe.Record, error) {
	vol := s.resources.Volume
	if vol == nil {
		return nil, errors.New("no volume provisioned")
	}

	record, err := dataframe.Validate(s.response, s.Expectation())
	s.record = record
	if err != nil {
		return record, err
	}
	s.logger.Info("Dataframe validated", "volume_id", vol.ID, "service", record.Service, "rating", record.Rating)
	return record, nil
}

// Expectation describes the record the collector should produce for the provisioned volume
func (s *Scenario) Expectation() dataframe.Expectation {
	exp := dataframe.Expectation{
		Service:        s.cfg.ServiceName,
		ExpectedRating: s.cfg.ExpectedRating,
		Tolerance:      s.cfg.RatingTolerance,
	}
	if vol := s.resources.Volume; vol != nil {
		exp.ResourceID = vol.ID
		exp.ProjectID = vol.ProjectID
		exp.UserID = vol.UserID
	}
	return exp
}

// Cleanup deletes everything the scenario provisioned. It runs on a context
// detached from ctx's cancellation so an interrupted run still cleans up.
func (s *Scenario) Cleanup(ctx context.Context) error {
	if s.cfg.SkipCleanup {
		if pending := s.cleanup.Pending(); len(pending) > 0 {
			s.logger.Warn("Cleanup skipped, resources left behind", "resources", pending)
		}
		return nil
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CleanupTimeout)
	defer cancel()
	return s.cleanup.Run(cctx)
}

// Run executes every stage in order and always cleans up. The returned error
// is the first stage failure, or the cleanup failure when every stage passed.
func (s *Scenario) Run(ctx context.Context) (*ScenarioResult, error) {
	result := &ScenarioResult{Name: s.name, StartedAt: time.Now()}
	s.logger.Info("Starting scenario", "service", s.cfg.ServiceName, "cost", s.cfg.FlatCost)

	result.Err = s.runStages(ctx, result)

	start := time.Now()
	result.CleanupErr = s.Cleanup(ctx)
	result.addStage(PhaseCleanup, start, result.CleanupErr)

	result.FinishedAt = time.Now()
	result.Resources = s.resources
	result.Response = s.response
	result.Record = s.record

	if result.Err != nil {
		s.logger.Error("Scenario failed", "error", result.Err, "duration", result.Duration())
		return result, result.Err
	}
	s.logger.Info("Scenario passed", "duration", result.Duration())
	return result, result.CleanupErr
}

func (s *Scenario) runStages(ctx context.Context, result *ScenarioResult) error {
	start := time.Now()
	err := s.Provision(ctx)
	result.addStage(PhaseProvision, start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	err = s.WaitForCollection(ctx)
	result.addStage(PhaseWait, start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = s.FetchDataframes(ctx)
	result.addStage(PhaseFetch, start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = s.Validate()
	result.addStage(PhaseValidate, start, err)
	return err
}

// ScenarioResult is the outcome of Scenario.Run
type ScenarioResult struct {
	Name       string
	StartedAt  time.Time
	FinishedAt time.Time

	Resources Resources
	Response  dataframe.Response
	Record    *dataframe.Record
	Stages    []metrics.StageTiming

	Err        error
	CleanupErr error
}

func (r *ScenarioResult) addStage(name string, start time.Time, err error) {
	st := metrics.StageTiming{Name: name, Duration: time.Since(start)}
	if err != nil {
		st.Error = err.Error()
	}
	r.Stages = append(r.Stages, st)
}

// Passed reports whether every stage succeeded
func (r *ScenarioResult) Passed() bool {
	return r.Err == nil
}

// Duration returns the wall time of the run, cleanup included
func (r *ScenarioResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Report converts the result for export
func (r *ScenarioResult) Report() metrics.Report {
	rep := metrics.Report{
		Scenario:      r.Name,
		Status:        metrics.StatusPassed,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		ServiceID:     r.Resources.ServiceID,
		MappingID:     r.Resources.MappingID,
		DataframeKind: r.Response.Kind.String(),
		RecordCount:   len(dataframe.Normalize(r.Response)),
		Stages:        r.Stages,
	}
	if v := r.Resources.Volume; v != nil {
		rep.VolumeID = v.ID
		rep.ProjectID = v.ProjectID
	}
	if r.Record != nil {
		rep.Rating = string(r.Record.Rating)
	}
	if r.Err != nil {
		rep.Status = metrics.StatusFailed
		rep.Error = r.Err.Error()
	}
	var ce *CleanupError
	if errors.As(r.CleanupErr, &ce) {
		for _, e := range ce.Errs {
			rep.CleanupErrors = append(rep.CleanupErrors, e.Error())
		}
	} else if r.CleanupErr != nil {
		rep.CleanupErrors = []string{r.CleanupErr.Error()}
	}
	return rep
}
