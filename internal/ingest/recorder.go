package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

// RunSummary describes a finished run.
type RunSummary struct {
	JobID      uuid.UUID
	PDFID      uuid.UUID
	JobStatus  enums.JobStatus
	PDFStatus  enums.PDFStatus
	Attempts   int
	Progress   jobs.Progress
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRecorder receives every finished run.
type RunRecorder interface {
	Record(ctx context.Context, summary RunSummary)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, RunSummary) {}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type tableEnsurer interface {
	EnsureTable(ctx context.Context, name string, schema cbigquery.Schema, partitionField string) error
}

// EnsureRunsTable creates the run summary table, partitioned by finish time, when missing.
func EnsureRunsTable(ctx context.Context, client tableEnsurer, table string) error {
	schema, err := cbigquery.InferSchema(runRow{})
	if err != nil {
		return fmt.Errorf("infer run schema: %w", err)
	}
	return client.EnsureTable(ctx, table, schema, "finished_at")
}

// BigQueryRecorder streams run summaries into the analytics dataset.
type BigQueryRecorder struct {
	client tableInserter
	table  string
	logg   *logger.Logger
}

// NewBigQueryRecorder builds a recorder writing to table.
func NewBigQueryRecorder(client tableInserter, table string, logg *logger.Logger) (*BigQueryRecorder, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("bigquery table name required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &BigQueryRecorder{client: client, table: strings.TrimSpace(table), logg: logg}, nil
}

type runRow struct {
	JobID              string               `bigquery:"job_id"`
	PDFID              string               `bigquery:"pdf_id"`
	JobStatus          string               `bigquery:"job_status"`
	PDFStatus          cbigquery.NullString `bigquery:"pdf_status"`
	Attempts           int64                `bigquery:"attempts"`
	PagesTotal         int64                `bigquery:"pages_total"`
	PagesFailed        int64                `bigquery:"pages_failed"`
	QuestionsExtracted int64                `bigquery:"questions_extracted"`
	Error              cbigquery.NullString `bigquery:"error"`
	StartedAt          time.Time            `bigquery:"started_at"`
	FinishedAt         time.Time            `bigquery:"finished_at"`
	DurationMs         int64                `bigquery:"duration_ms"`
}

func buildRunRow(summary RunSummary) *runRow {
	return &runRow{
		JobID:              summary.JobID.String(),
		PDFID:              summary.PDFID.String(),
		JobStatus:          string(summary.JobStatus),
		PDFStatus:          nullString(string(summary.PDFStatus)),
		Attempts:           int64(summary.Attempts),
		PagesTotal:         int64(summary.Progress.PagesTotal),
		PagesFailed:        int64(summary.Progress.PagesFailed),
		QuestionsExtracted: int64(summary.Progress.QuestionsExtracted),
		Error:              nullString(summary.Error),
		StartedAt:          summary.StartedAt.UTC(),
		FinishedAt:         summary.FinishedAt.UTC(),
		DurationMs:         summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	}
}

// Record inserts the summary. Failures are logged and never affect the run.
func (r *BigQueryRecorder) Record(ctx context.Context, summary RunSummary) {
	if err := r.client.InsertRows(ctx, r.table, []any{buildRunRow(summary)}); err != nil {
		r.logg.Error(ctx, "ingest.run.record_failed", err)
	}
}

func nullString(value string) cbigquery.NullString {
	if value == "" {
		return cbigquery.NullString{}
	}
	return cbigquery.NullString{StringVal: value, Valid: true}
}
