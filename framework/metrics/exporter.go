package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Format is a report output format
type Format string

// Supported output formats
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Exporter writes scenario reports somewhere
type Exporter interface {
	Export(reports []Report) error
}

// NewExporter picks an exporter from format, or from the file extension when format is empty
func NewExporter(outputPath string, format Format) Exporter {
	if format == "" {
		if strings.EqualFold(filepath.Ext(outputPath), ".csv") {
			format = FormatCSV
		} else {
			format = FormatJSON
		}
	}

	if format == FormatCSV {
		return NewCSVExporter(outputPath)
	}
	return NewJSONExporter(outputPath)
}

// CSVExporter writes one row per scenario run
type CSVExporter struct {
	outputPath string
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(outputPath string) *CSVExporter {
	return &CSVExporter{
		outputPath: outputPath,
	}
}

var csvHeader = []string{
	"scenario",
	"status",
	"started_at",
	"duration_s",
	"volume_id",
	"service_id",
	"mapping_id",
	"dataframe_kind",
	"record_count",
	"rating",
	"stages",
	"error",
	"cleanup_errors",
}

// Export exports reports to CSV
func (e *CSVExporter) Export(reports []Report) error {
	file, err := os.Create(e.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range reports {
		stages := lo.Map(r.Stages, func(s StageTiming, _ int) string {
			return fmt.Sprintf("%s=%.3f", s.Name, s.Duration.Seconds())
		})
		row := []string{
			r.Scenario,
			r.Status,
			r.StartedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Duration().Seconds(), 'f', 3, 64),
			r.VolumeID,
			r.ServiceID,
			r.MappingID,
			r.DataframeKind,
			strconv.Itoa(r.RecordCount),
			r.Rating,
			strings.Join(stages, ";"),
			r.Error,
			strings.Join(r.CleanupErrors, ";"),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// JSONExporter writes all reports with a summary
type JSONExporter struct {
	outputPath  string
	prettyPrint bool
}

// JSONExportReport is the document written by JSONExporter
type JSONExportReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Reports     []Report  `json:"reports"`
}

// NewJSONExporter creates a new JSON exporter
func NewJSONExporter(outputPath string) *JSONExporter {
	return &JSONExporter{
		outputPath:  outputPath,
		prettyPrint: true,
	}
}

// WithPrettyPrint toggles indentation
func (e *JSONExporter) WithPrettyPrint(pretty bool) *JSONExporter {
	e.prettyPrint = pretty
	return e
}

// Export exports reports to JSON
func (e *JSONExporter) Export(reports []Report) error {
	countStatus := func(status string) int {
		return lo.CountBy(reports, func(r Report) bool { return r.Status == status })
	}

	doc := JSONExportReport{
		GeneratedAt: time.Now().UTC(),
		Total:       len(reports),
		Passed:      countStatus(StatusPassed),
		Failed:      countStatus(StatusFailed),
		Skipped:     countStatus(StatusSkipped),
		Reports:     reports,
	}

	var (
		data []byte
		err  error
	)
	if e.prettyPrint {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(e.outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
