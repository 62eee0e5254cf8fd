package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dvloznov/finance-bot/internal/report"
)

// CSVHeader is the first line of every spreadsheet export.
var CSVHeader = []string{"position", "date", "kind", "amount", "note", "account"}

const csvDateFormat = "2006-01-02 15:04:05"

// WriteCSV writes the snapshot rows as CSV and returns the number of data rows.
func WriteCSV(w io.Writer, snap report.Snapshot) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, fmt.Errorf("WriteCSV: header: %w", err)
	}

	for _, r := range snap.Rows {
		record := []string{
			strconv.Itoa(r.Position),
			r.Date.Format(csvDateFormat),
			string(r.Kind),
			strconv.FormatInt(r.Amount, 10),
			r.Note,
			r.Account,
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("WriteCSV: row %d: %w", r.Position, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return len(snap.Rows), nil
}
