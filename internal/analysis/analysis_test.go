package analysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/analysis"
	mock_analysis "github.com/dvloznov/finance-bot/internal/analysis/mocks"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/report"
)

func sampleSnapshot() report.Snapshot {
	day := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{ID: "1", Amount: 10_000_000, Kind: domain.KindIncome, Note: "luong", Account: "Bank", Timestamp: day},
		{ID: "2", Amount: 45_000, Kind: domain.KindExpense, Note: "cafe", Account: "Ví", Timestamp: day.Add(time.Hour)},
		{ID: "3", Amount: 120_000, Kind: domain.KindExpense, Note: "an trua", Account: "Ví", Timestamp: day.AddDate(0, 0, 1)},
	}
	return report.NewSnapshot(nil, txs, day.AddDate(0, 0, 2))
}

func TestBuildPrompt(t *testing.T) {
	p := analysis.BuildPrompt(sampleSnapshot())

	for _, want := range []string{
		"Tổng thu: 10.000.000 ₫",
		"Tổng chi: 165.000 ₫",
		"2024-03-01:",
		"2024-03-02:",
		"- Chi: 45.000 ₫ - cafe (Ví)",
		"- Thu: 10.000.000 ₫ - luong (Bank)",
		"Tỷ lệ tiết kiệm: 98%",
	} {
		assert.Contains(t, p, want)
	}
	assert.Less(t, strings.Index(p, "2024-03-01:"), strings.Index(p, "2024-03-02:"))
}

func TestService_Analyze(t *testing.T) {
	tests := []struct {
		name     string
		snap     report.Snapshot
		setup    func(m *mock_analysis.MockGenerator)
		want     string
		wantErr  error
		anyError bool
	}{
		{
			name: "returns model text",
			snap: sampleSnapshot(),
			setup: func(m *mock_analysis.MockGenerator) {
				m.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("Chi tiêu hợp lý.", nil)
			},
			want: "Chi tiêu hợp lý.",
		},
		{
			name: "strips code fences",
			snap: sampleSnapshot(),
			setup: func(m *mock_analysis.MockGenerator) {
				m.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("```text\nỔn định.\n```", nil)
			},
			want: "Ổn định.",
		},
		{
			name:    "empty ledger never calls the model",
			snap:    report.NewSnapshot(nil, nil, time.Now()),
			setup:   func(m *mock_analysis.MockGenerator) {},
			wantErr: analysis.ErrNothingToAnalyze,
		},
		{
			name: "model failure",
			snap: sampleSnapshot(),
			setup: func(m *mock_analysis.MockGenerator) {
				m.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("quota exceeded"))
			},
			anyError: true,
		},
		{
			name: "blank answer",
			snap: sampleSnapshot(),
			setup: func(m *mock_analysis.MockGenerator) {
				m.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("  ", nil)
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			gen := mock_analysis.NewMockGenerator(ctrl)
			tt.setup(gen)

			svc := analysis.NewService(gen, zerolog.Nop())
			got, err := svc.Analyze(context.Background(), tt.snap)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyError:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
