// Package export runs ledger snapshots through the configured sinks. It is
// the handler behind queued export jobs.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/money"
	"github.com/dvloznov/finance-bot/internal/report"
)

// ErrUnknownSink is returned when a job names a sink that is not configured.
var ErrUnknownSink = errors.New("unknown export sink")

// Sink writes a snapshot somewhere. exportID is stable across retries of
// the same job so sinks can overwrite or deduplicate.
type Sink interface {
	Name() string
	Export(ctx context.Context, snap report.Snapshot, exportID string) (jobs.SinkResult, error)
}

// Snapshotter provides the ledger view to export.
type Snapshotter interface {
	Snapshot(ctx context.Context) (report.Snapshot, error)
}

// Notifier tells a chat how its export went.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Service exports snapshots to sinks.
type Service struct {
	snaps    Snapshotter
	sinks    []Sink
	notifier Notifier
	logger   zerolog.Logger
}

// NewService creates a Service over the given sinks, in run order.
func NewService(snaps Snapshotter, logger zerolog.Logger, sinks ...Sink) *Service {
	return &Service{snaps: snaps, sinks: sinks, logger: logger}
}

// WithNotifier sets who is told about finished chat-initiated exports.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Sinks returns the configured sink names.
func (s *Service) Sinks() []string {
	names := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		names[i] = sink.Name()
	}
	return names
}

// Handle implements jobs.JobHandler. Sinks that already succeeded on an
// earlier attempt of the same job are skipped.
func (s *Service) Handle(ctx context.Context, job jobs.Job) error {
	ej, ok := job.(*jobs.ExportJob)
	if !ok {
		return fmt.Errorf("Handle: unsupported job type %q", job.GetType())
	}

	selected, err := s.selectSinks(ej.Sinks)
	if err != nil {
		// Retrying will not make the sink appear.
		ej.RetryCount = ej.MaxRetries
		s.notify(ctx, ej, fmt.Sprintf("❌ Xuất dữ liệu thất bại: %v", err))
		return fmt.Errorf("Handle: %w", err)
	}
	if len(selected) == 0 {
		return fmt.Errorf("Handle: %w: none configured", ErrUnknownSink)
	}

	snap, err := s.snaps.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("Handle: snapshot: %w", err)
	}

	done := make(map[string]bool, len(ej.Results))
	for _, r := range ej.Results {
		done[r.Sink] = true
	}

	log := s.logger.With().Str("job_id", ej.JobID).Logger()

	var errs []error
	for _, sink := range selected {
		if done[sink.Name()] {
			continue
		}
		res, err := sink.Export(ctx, snap, ej.JobID)
		if err != nil {
			log.Warn().Err(err).Str("sink", sink.Name()).Msg("Export sink failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		res.Sink = sink.Name()
		ej.Results = append(ej.Results, res)
		log.Info().
			Str("sink", res.Sink).
			Str("location", res.Location).
			Int("rows", res.Rows).
			Msg("Export sink finished")
	}

	if err := errors.Join(errs...); err != nil {
		if ej.RetryCount >= ej.MaxRetries {
			s.notify(ctx, ej, fmt.Sprintf("❌ Xuất dữ liệu thất bại: %v", err))
		}
		return fmt.Errorf("Handle: %w", err)
	}

	s.notify(ctx, ej, successMessage(snap, ej.Results))
	return nil
}

func (s *Service) selectSinks(names []string) ([]Sink, error) {
	if len(names) == 0 {
		return s.sinks, nil
	}
	var out []Sink
	for _, name := range names {
		var found Sink
		for _, sink := range s.sinks {
			if sink.Name() == name {
				found = sink
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSink, name)
		}
		out = append(out, found)
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, job *jobs.ExportJob, text string) {
	if s.notifier == nil || job.ChatID == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, job.ChatID, text); err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", job.ChatID).Msg("Failed to send export notification")
	}
}

func successMessage(snap report.Snapshot, results []jobs.SinkResult) string {
	msg := fmt.Sprintf("📤 Đã xuất %d giao dịch (thu %s, chi %s):",
		len(snap.Rows), money.Format(snap.Totals.Income), money.Format(snap.Totals.Expense))
	for _, r := range results {
		msg += "\n• " + r.Sink
		if r.Location != "" {
			msg += ": " + r.Location
		}
	}
	return msg
}

// FileSink writes CSV files into a local directory.
type FileSink struct {
	Dir string
}

// Name implements Sink.
func (f FileSink) Name() string { return "file" }

// Export implements Sink. The file is named after exportID.
func (f FileSink) Export(ctx context.Context, snap report.Snapshot, exportID string) (jobs.SinkResult, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return jobs.SinkResult{}, fmt.Errorf("FileSink: creating dir: %w", err)
	}

	path := filepath.Join(f.Dir, exportID+".csv")
	file, err := os.Create(path)
	if err != nil {
		return jobs.SinkResult{}, fmt.Errorf("FileSink: %w", err)
	}

	n, err := WriteCSV(file, snap)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return jobs.SinkResult{}, fmt.Errorf("FileSink: %w", err)
	}

	return jobs.SinkResult{Sink: f.Name(), Location: path, Rows: n}, nil
}
