package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-bot/internal/export"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/report"
)

// SinkName identifies the exporter in export jobs.
const SinkName = "bigquery"

// DefaultTable is used when no table is configured.
const DefaultTable = "ledger_exports"

// Putter is the streaming insert surface of a BigQuery table.
type Putter interface {
	Put(ctx context.Context, src interface{}) error
}

// Exporter streams snapshots into project.dataset.table.
type Exporter struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
	putter  Putter
}

// NewExporter opens a BigQuery client for project.
func NewExporter(ctx context.Context, project, dataset, table string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: bigquery client: %w", err)
	}
	if table == "" {
		table = DefaultTable
	}

	e := &Exporter{client: client, project: project, dataset: dataset, table: table}
	// Use fully qualified table name to avoid project ID issues
	e.putter = client.DatasetInProject(project, dataset).Table(table).Inserter()
	return e, nil
}

// NewExporterWithPutter creates an Exporter that only streams rows.
func NewExporterWithPutter(p Putter) *Exporter {
	return &Exporter{putter: p, table: DefaultTable}
}

// Name implements export.Sink.
func (e *Exporter) Name() string { return SinkName }

// TableRef is the fully qualified, backtick-quoted table name.
func (e *Exporter) TableRef() string {
	return fmt.Sprintf("`%s.%s.%s`", e.project, e.dataset, e.table)
}

// Export implements export.Sink.
func (e *Exporter) Export(ctx context.Context, snap report.Snapshot, exportID string) (jobs.SinkResult, error) {
	rows := ToRows(snap, exportID)
	res := jobs.SinkResult{Sink: SinkName, Location: e.table + "/" + exportID, Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	if err := e.putter.Put(ctx, savers(rows)); err != nil {
		return jobs.SinkResult{}, fmt.Errorf("Export: inserting rows: %w", err)
	}
	return res, nil
}

// EnsureTable creates the export table if it does not exist.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("EnsureTable: no bigquery client")
	}

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			export_id        STRING NOT NULL,
			transaction_id   STRING NOT NULL,
			position         INT64,
			transaction_date DATE,
			recorded_at      TIMESTAMP,
			kind             STRING,
			amount           INT64,
			note             STRING,
			account          STRING,
			exported_at      TIMESTAMP
		)
	`, e.TableRef())

	job, err := e.client.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("EnsureTable: job error: %w", err)
	}
	return nil
}

// ListExports returns the most recent exports, newest first.
func (e *Exporter) ListExports(ctx context.Context, limit int) ([]*ExportSummary, error) {
	if e.client == nil {
		return nil, fmt.Errorf("ListExports: no bigquery client")
	}
	if limit <= 0 {
		limit = 20
	}

	q := e.client.Query(fmt.Sprintf(`
		SELECT
			export_id,
			MIN(exported_at) AS exported_at,
			COUNT(*) AS rows,
			SUM(IF(kind = 'income', amount, 0)) AS income,
			SUM(IF(kind = 'expense', amount, 0)) AS expense
		FROM %s
		GROUP BY export_id
		ORDER BY exported_at DESC
		LIMIT @limit
	`, e.TableRef()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExports: query read: %w", err)
	}

	var out []*ExportSummary
	for {
		var s ExportSummary
		err := it.Next(&s)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExports: iter next: %w", err)
		}
		out = append(out, &s)
	}
	return out, nil
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

var _ export.Sink = (*Exporter)(nil)
