// Package analysis asks a generative model to comment on the ledger.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/report"
)

//go:generate mockgen -destination=mocks/mock_generator.go -source=analysis.go

// ErrNothingToAnalyze is returned for an empty ledger.
var ErrNothingToAnalyze = errors.New("no transactions to analyze")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer turns a ledger snapshot into a written analysis.
type Analyzer interface {
	Analyze(ctx context.Context, snap report.Snapshot) (string, error)
}

// Service implements Analyzer on top of a Generator.
type Service struct {
	gen    Generator
	logger zerolog.Logger
}

// NewService creates a Service.
func NewService(gen Generator, logger zerolog.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// Analyze implements Analyzer.
func (s *Service) Analyze(ctx context.Context, snap report.Snapshot) (string, error) {
	if snap.Empty() {
		return "", ErrNothingToAnalyze
	}

	prompt := BuildPrompt(snap)
	s.logger.Debug().
		Int("transactions", len(snap.Rows)).
		Int("prompt_bytes", len(prompt)).
		Msg("Requesting analysis")

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("Analyze: generate: %w", err)
	}

	text = cleanModelText(text)
	if text == "" {
		return "", fmt.Errorf("Analyze: empty response from model")
	}
	return text, nil
}

// cleanModelText strips the Markdown code fences models sometimes wrap
// plain answers in.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return ""
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
