package bigquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/report"
)

type mockPutter struct {
	PutFunc func(ctx context.Context, src interface{}) error
}

func (m *mockPutter) Put(ctx context.Context, src interface{}) error {
	return m.PutFunc(ctx, src)
}

func snapshot() report.Snapshot {
	at := time.Date(2024, 2, 29, 23, 15, 0, 0, time.UTC)
	return report.NewSnapshot(nil, []domain.Transaction{
		{ID: "t1", Amount: 5_000, Kind: domain.KindExpense, Note: "bún", Timestamp: at, Account: "Ví"},
		{ID: "t2", Amount: 1_000_000, Kind: domain.KindIncome, Note: "lương", Timestamp: at.Add(time.Hour), Account: "Bank"},
	}, at.Add(2*time.Hour))
}

func TestToRows(t *testing.T) {
	rows := ToRows(snapshot(), "exp")
	require.Len(t, rows, 2)

	assert.Equal(t, "exp", rows[0].ExportID)
	assert.Equal(t, "t1", rows[0].TransactionID)
	assert.Equal(t, int64(1), rows[0].Position)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, rows[0].TransactionDate)
	assert.Equal(t, "expense", rows[0].Kind)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 1}, rows[1].TransactionDate)
	assert.Equal(t, "Bank", rows[1].Account)
	assert.True(t, rows[1].ExportedAt.Equal(rows[0].ExportedAt))
}

func TestExporter_Export(t *testing.T) {
	var got []*bigquery.StructSaver
	e := NewExporterWithPutter(&mockPutter{PutFunc: func(ctx context.Context, src interface{}) error {
		got = src.([]*bigquery.StructSaver)
		return nil
	}})

	res, err := e.Export(context.Background(), snapshot(), "exp")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, SinkName, res.Sink)

	require.Len(t, got, 2)
	assert.Equal(t, "exp:t1", got[0].InsertID)
	assert.Equal(t, "exp:t2", got[1].InsertID)
}

func TestExporter_ExportEmptySkipsInsert(t *testing.T) {
	e := NewExporterWithPutter(&mockPutter{PutFunc: func(ctx context.Context, src interface{}) error {
		t.Fatal("Put called for empty snapshot")
		return nil
	}})

	res, err := e.Export(context.Background(), report.Snapshot{}, "exp")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
}

func TestExporter_ExportError(t *testing.T) {
	e := NewExporterWithPutter(&mockPutter{PutFunc: func(ctx context.Context, src interface{}) error {
		return errors.New("quota exceeded")
	}})

	_, err := e.Export(context.Background(), snapshot(), "exp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestExporter_WithoutClient(t *testing.T) {
	e := NewExporterWithPutter(nil)
	assert.Error(t, e.EnsureTable(context.Background()))
	_, err := e.ListExports(context.Background(), 5)
	assert.Error(t, err)
	assert.NoError(t, e.Close())
}
