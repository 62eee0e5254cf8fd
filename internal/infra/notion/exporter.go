package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/export"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/report"
)

// SinkName identifies the exporter in export jobs.
const SinkName = "notion"

const queryPageSize = 100

// Exporter makes a Notion database hold exactly the current ledger: pages
// for deleted transactions are archived, missing ones are created.
type Exporter struct {
	svc        Service
	databaseID string
	logger     zerolog.Logger
}

// NewExporter creates an Exporter for databaseID.
func NewExporter(svc Service, databaseID string, logger zerolog.Logger) *Exporter {
	return &Exporter{svc: svc, databaseID: databaseID, logger: logger}
}

// Name implements export.Sink.
func (e *Exporter) Name() string { return SinkName }

// Export implements export.Sink. Rows counts pages created.
func (e *Exporter) Export(ctx context.Context, snap report.Snapshot, exportID string) (jobs.SinkResult, error) {
	log := e.logger.With().Str("export_id", exportID).Logger()

	pages, err := e.queryAll(ctx)
	if err != nil {
		return jobs.SinkResult{}, fmt.Errorf("Export: %w", err)
	}

	valid := make(map[string]bool, len(snap.Rows))
	for _, r := range snap.Rows {
		valid[r.ID] = true
	}

	existing := make(map[string]bool, len(pages))
	var archived int
	for _, page := range pages {
		id := transactionID(page)
		if id != "" && valid[id] && !existing[id] {
			existing[id] = true
			continue
		}
		// Stale, untagged or duplicate.
		if err := e.svc.ArchivePage(ctx, string(page.ID)); err != nil {
			return jobs.SinkResult{}, fmt.Errorf("Export: archiving %s: %w", page.ID, err)
		}
		archived++
	}

	var created int
	for _, r := range snap.Rows {
		if existing[r.ID] {
			continue
		}
		if _, err := e.svc.CreatePage(ctx, e.databaseID, RowProperties(r)); err != nil {
			return jobs.SinkResult{}, fmt.Errorf("Export: creating page for %s: %w", r.ID, err)
		}
		created++
	}

	log.Info().
		Int("archived", archived).
		Int("created", created).
		Int("unchanged", len(existing)).
		Msg("Notion mirror updated")

	return jobs.SinkResult{Sink: SinkName, Location: "notion:" + e.databaseID, Rows: created}, nil
}

func (e *Exporter) queryAll(ctx context.Context) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := e.svc.QueryDatabase(ctx, e.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAll: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

var _ export.Sink = (*Exporter)(nil)
