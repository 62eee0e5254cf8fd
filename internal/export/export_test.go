package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/report"
)

var at = time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC)

func sampleSnapshot() report.Snapshot {
	return report.NewSnapshot(
		[]domain.Account{{Name: "Ví", Balance: 70_000}},
		[]domain.Transaction{
			{ID: "t1", Amount: 100_000, Kind: domain.KindIncome, Note: "lương", Timestamp: at, Account: "Ví"},
			{ID: "t2", Amount: 30_000, Kind: domain.KindExpense, Note: "cafe, bánh", Timestamp: at.Add(time.Hour), Account: "Ví"},
		},
		at.Add(2*time.Hour),
	)
}

type fakeSnapshotter struct {
	snap report.Snapshot
	err  error
}

func (f fakeSnapshotter) Snapshot(ctx context.Context) (report.Snapshot, error) {
	return f.snap, f.err
}

type fakeSink struct {
	name  string
	errs  []error
	calls int
	ids   []string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Export(ctx context.Context, snap report.Snapshot, exportID string) (jobs.SinkResult, error) {
	f.calls++
	f.ids = append(f.ids, exportID)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return jobs.SinkResult{}, err
		}
	}
	return jobs.SinkResult{Location: f.name + "://" + exportID, Rows: len(snap.Rows)}, nil
}

type recordingNotifier struct {
	chats []int64
	texts []string
}

func (n *recordingNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	n.chats = append(n.chats, chatID)
	n.texts = append(n.texts, text)
	return nil
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{"1", "2024-03-09 08:30:00", "income", "100000", "lương", "Ví"}, records[1])
	assert.Equal(t, "cafe, bánh", records[2][4])
}

func TestService_HandleAllSinks(t *testing.T) {
	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b"}
	notifier := &recordingNotifier{}
	svc := NewService(fakeSnapshotter{snap: sampleSnapshot()}, zerolog.Nop(), a, b).WithNotifier(notifier)

	job := &jobs.ExportJob{JobID: "job-1", ChatID: 9, MaxRetries: 3}
	require.NoError(t, svc.Handle(context.Background(), job))

	require.Len(t, job.Results, 2)
	assert.Equal(t, "a", job.Results[0].Sink)
	assert.Equal(t, "b://job-1", job.Results[1].Location)
	assert.Equal(t, 2, job.Results[1].Rows)
	assert.Equal(t, []string{"job-1"}, a.ids)

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, int64(9), notifier.chats[0])
	assert.Contains(t, notifier.texts[0], "b://job-1")
	assert.Equal(t, []string{"a", "b"}, svc.Sinks())
}

func TestService_RetrySkipsFinishedSinks(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b", errs: []error{errors.New("quota")}}
	notifier := &recordingNotifier{}
	svc := NewService(fakeSnapshotter{snap: sampleSnapshot()}, zerolog.Nop(), a, b).WithNotifier(notifier)

	job := &jobs.ExportJob{JobID: "job-2", ChatID: 9, MaxRetries: 3}
	err := svc.Handle(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	require.Len(t, job.Results, 1)
	assert.Empty(t, notifier.texts)

	job.RetryCount = 1
	require.NoError(t, svc.Handle(context.Background(), job))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)
	assert.Len(t, job.Results, 2)
	assert.Len(t, notifier.texts, 1)
}

func TestService_FinalFailureNotifies(t *testing.T) {
	a := &fakeSink{name: "a", errs: []error{errors.New("down")}}
	notifier := &recordingNotifier{}
	svc := NewService(fakeSnapshotter{snap: sampleSnapshot()}, zerolog.Nop(), a).WithNotifier(notifier)

	job := &jobs.ExportJob{JobID: "job-3", ChatID: 9, MaxRetries: 1, RetryCount: 1}
	require.Error(t, svc.Handle(context.Background(), job))
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "down")
}

func TestService_SelectedSinks(t *testing.T) {
	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b"}
	svc := NewService(fakeSnapshotter{snap: sampleSnapshot()}, zerolog.Nop(), a, b)

	job := &jobs.ExportJob{JobID: "j", Sinks: []string{"b"}, MaxRetries: 3}
	require.NoError(t, svc.Handle(context.Background(), job))
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)

	bad := &jobs.ExportJob{JobID: "k", Sinks: []string{"nope"}, MaxRetries: 3}
	err := svc.Handle(context.Background(), bad)
	assert.ErrorIs(t, err, ErrUnknownSink)
	assert.Equal(t, bad.MaxRetries, bad.RetryCount)
}

func TestService_SnapshotError(t *testing.T) {
	svc := NewService(fakeSnapshotter{err: domain.ErrStorageFailure}, zerolog.Nop(), &fakeSink{name: "a"})
	err := svc.Handle(context.Background(), &jobs.ExportJob{JobID: "j"})
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := FileSink{Dir: dir}

	res, err := sink.Export(context.Background(), sampleSnapshot(), "exp")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, filepath.Join(dir, "exp.csv"), res.Location)

	data, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	assert.Contains(t, string(data), "position,date,kind,amount,note,account")
}
