package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/report"
)

type memObject struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (m *memObject) Close() error {
	m.closed = true
	return m.closeErr
}

func TestUploader_Export(t *testing.T) {
	taken := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	snap := report.NewSnapshot(nil, []domain.Transaction{
		{ID: "a", Amount: 10_000, Kind: domain.KindExpense, Note: "cafe", Timestamp: taken, Account: "Ví"},
	}, taken)

	var (
		gotBucket, gotObject string
		obj                  = &memObject{}
	)
	u := NewUploaderWithWriter("ledger-exports", func(ctx context.Context, bucket, object string) io.WriteCloser {
		gotBucket, gotObject = bucket, object
		return obj
	})

	res, err := u.Export(context.Background(), snap, "exp-1")
	require.NoError(t, err)

	assert.Equal(t, "ledger-exports", gotBucket)
	assert.Equal(t, "exports/2024-06-02/exp-1.csv", gotObject)
	assert.Equal(t, "gs://ledger-exports/exports/2024-06-02/exp-1.csv", res.Location)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, SinkName, res.Sink)
	assert.True(t, obj.closed)
	assert.True(t, strings.HasPrefix(obj.String(), "position,date"))
}

func TestUploader_FinalizeError(t *testing.T) {
	obj := &memObject{closeErr: errors.New("precondition failed")}
	u := NewUploaderWithWriter("b", func(ctx context.Context, bucket, object string) io.WriteCloser {
		return obj
	})

	_, err := u.Export(context.Background(), report.Snapshot{}, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finalize upload")
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{uri: "gs://b/exports/2024-06-02/x.csv", bucket: "b", object: "exports/2024-06-02/x.csv"},
		{uri: "gs://b", wantErr: true},
		{uri: "s3://b/x", wantErr: true},
		{uri: "gs:///x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
			assert.Equal(t, tt.uri, URI(bucket, object))
		})
	}
}
