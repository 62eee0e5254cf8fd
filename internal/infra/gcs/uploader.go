// Package gcs uploads ledger exports to a Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/finance-bot/internal/export"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/report"
)

// SinkName identifies the uploader in export jobs.
const SinkName = "gcs"

const uploadTimeout = 2 * time.Minute

// WriterFunc opens a writer for bucket/object. Closing it finalises the upload.
type WriterFunc func(ctx context.Context, bucket, object string) io.WriteCloser

// Uploader writes CSV exports to exports/<date>/<export id>.csv.
type Uploader struct {
	bucket    string
	newWriter WriterFunc
	client    *storage.Client
}

// NewUploader creates an Uploader for bucket.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func NewUploader(ctx context.Context, bucket string) (*Uploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewUploader: create storage client: %w", err)
	}

	u := NewUploaderWithWriter(bucket, func(ctx context.Context, bucket, object string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = "text/csv; charset=utf-8"
		return w
	})
	u.client = client
	return u, nil
}

// NewUploaderWithWriter creates an Uploader over a custom object writer.
func NewUploaderWithWriter(bucket string, fn WriterFunc) *Uploader {
	return &Uploader{bucket: bucket, newWriter: fn}
}

// Name implements export.Sink.
func (u *Uploader) Name() string { return SinkName }

// ObjectName returns where an export taken at t is stored.
func ObjectName(t time.Time, exportID string) string {
	return path.Join("exports", t.Format("2006-01-02"), exportID+".csv")
}

// URI renders a gs:// location.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseURI splits gs://bucket/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Export implements export.Sink. Retries of the same export overwrite the object.
func (u *Uploader) Export(ctx context.Context, snap report.Snapshot, exportID string) (jobs.SinkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	object := ObjectName(snap.TakenAt, exportID)
	w := u.newWriter(ctx, u.bucket, object)

	n, err := export.WriteCSV(w, snap)
	if err != nil {
		_ = w.Close()
		return jobs.SinkResult{}, fmt.Errorf("Export: writing %s: %w", object, err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return jobs.SinkResult{}, fmt.Errorf("Export: finalize upload: %w", err)
	}

	return jobs.SinkResult{Sink: SinkName, Location: URI(u.bucket, object), Rows: n}, nil
}

// Download reads back an exported object, e.g. for ledgerctl.
func (u *Uploader) Download(ctx context.Context, uri string) ([]byte, error) {
	if u.client == nil {
		return nil, fmt.Errorf("Download: no storage client")
	}
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}

	rc, err := u.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Download: reading bytes: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}

var _ export.Sink = (*Uploader)(nil)
