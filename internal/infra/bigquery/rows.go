// Package bigquery streams ledger exports into a BigQuery table and reads the
// export history back.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-bot/internal/report"
)

// ExportRow is one ledger entry in one export.
type ExportRow struct {
	ExportID        string     `bigquery:"export_id"`      // REQUIRED
	TransactionID   string     `bigquery:"transaction_id"` // REQUIRED
	Position        int64      `bigquery:"position"`
	TransactionDate civil.Date `bigquery:"transaction_date"`
	RecordedAt      time.Time  `bigquery:"recorded_at"`
	Kind            string     `bigquery:"kind"`
	Amount          int64      `bigquery:"amount"` // smallest currency unit, always positive
	Note            string     `bigquery:"note"`
	Account         string     `bigquery:"account"`
	ExportedAt      time.Time  `bigquery:"exported_at"`
}

// ExportSummary aggregates one export.
type ExportSummary struct {
	ExportID   string    `bigquery:"export_id"`
	ExportedAt time.Time `bigquery:"exported_at"`
	Rows       int64     `bigquery:"rows"`
	Income     int64     `bigquery:"income"`
	Expense    int64     `bigquery:"expense"`
}

// ToRows converts a snapshot into rows for exportID.
func ToRows(snap report.Snapshot, exportID string) []*ExportRow {
	rows := make([]*ExportRow, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		rows = append(rows, &ExportRow{
			ExportID:        exportID,
			TransactionID:   r.ID,
			Position:        int64(r.Position),
			TransactionDate: civil.DateOf(r.Date),
			RecordedAt:      r.Date,
			Kind:            string(r.Kind),
			Amount:          r.Amount,
			Note:            r.Note,
			Account:         r.Account,
			ExportedAt:      snap.TakenAt,
		})
	}
	return rows
}

// savers wraps rows with insert IDs so a retried export does not
// duplicate rows in the streaming buffer.
func savers(rows []*ExportRow) []*bigquery.StructSaver {
	out := make([]*bigquery.StructSaver, len(rows))
	for i, r := range rows {
		out[i] = &bigquery.StructSaver{
			Struct:   r,
			InsertID: r.ExportID + ":" + r.TransactionID,
		}
	}
	return out
}
