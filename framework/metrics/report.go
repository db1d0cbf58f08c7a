package metrics

import "time"

// Run outcome values
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StageTiming records how long one scenario stage took
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report is the exported outcome of one scenario run
type Report struct {
	Scenario   string    `json:"scenario"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	VolumeID  string `json:"volume_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	MappingID string `json:"mapping_id,omitempty"`

	DataframeKind string `json:"dataframe_kind,omitempty"`
	RecordCount   int    `json:"record_count"`
	Rating        string `json:"rating,omitempty"`

	Stages        []StageTiming `json:"stages,omitempty"`
	Error         string        `json:"error,omitempty"`
	CleanupErrors []string      `json:"cleanup_errors,omitempty"`
}

// Duration returns the wall time of the run
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
