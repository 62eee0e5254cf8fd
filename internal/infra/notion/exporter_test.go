package notion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/report"
)

type mockService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePageFunc   func(ctx context.Context, pageID string) error
}

func (m *mockService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.CreatePageFunc(ctx, databaseID, properties)
}

func (m *mockService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, req)
}

func (m *mockService) ArchivePage(ctx context.Context, pageID string) error {
	return m.ArchivePageFunc(ctx, pageID)
}

func pageFor(pageID, txID string) notionapi.Page {
	props := notionapi.Properties{}
	if txID != "" {
		props[PropTransactionID] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: txID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func ledger() report.Snapshot {
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	return report.NewSnapshot(nil, []domain.Transaction{
		{ID: "keep", Amount: 10_000, Kind: domain.KindExpense, Note: "cafe", Timestamp: at, Account: "Ví"},
		{ID: "new", Amount: 500_000, Kind: domain.KindIncome, Note: "thưởng", Timestamp: at, Account: "Bank"},
	}, at)
}

func TestExporter_Mirror(t *testing.T) {
	var (
		cursors  []notionapi.Cursor
		archived []string
		created  []notionapi.Properties
	)
	svc := &mockService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			assert.Equal(t, "db", databaseID)
			cursors = append(cursors, req.StartCursor)
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{pageFor("p1", "keep"), pageFor("p2", "gone")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{pageFor("p3", ""), pageFor("p4", "keep")},
			}, nil
		},
		ArchivePageFunc: func(ctx context.Context, pageID string) error {
			archived = append(archived, pageID)
			return nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			created = append(created, properties)
			return &notionapi.Page{ID: "created"}, nil
		},
	}

	res, err := NewExporter(svc, "db", zerolog.Nop()).Export(context.Background(), ledger(), "exp")
	require.NoError(t, err)

	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
	assert.Equal(t, []string{"p2", "p3", "p4"}, archived)
	require.Len(t, created, 1)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, "notion:db", res.Location)

	amount := created[0][PropAmount].(notionapi.NumberProperty)
	assert.Equal(t, float64(500_000), amount.Number)
	account := created[0][PropAccount].(notionapi.SelectProperty)
	assert.Equal(t, "Bank", account.Select.Name)
}

func TestExporter_QueryError(t *testing.T) {
	svc := &mockService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("unauthorized")
		},
	}

	_, err := NewExporter(svc, "db", zerolog.Nop()).Export(context.Background(), ledger(), "exp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestRowProperties(t *testing.T) {
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	props := RowProperties(report.Row{Position: 3, ID: "x", Date: at, Kind: domain.KindExpense, Amount: 25_000, Note: "phở"})

	title := props[PropNote].(notionapi.TitleProperty)
	assert.Equal(t, "phở", title.Title[0].Text.Content)
	assert.Equal(t, float64(-25_000), props[PropAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, float64(3), props[PropPosition].(notionapi.NumberProperty).Number)
	assert.Equal(t, "expense", props[PropKind].(notionapi.SelectProperty).Select.Name)
	_, hasAccount := props[PropAccount]
	assert.False(t, hasAccount)

	page := notionapi.Page{Properties: notionapi.Properties{PropTransactionID: &notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: "x"}}},
	}}}
	assert.Equal(t, "x", transactionID(page))
}
