package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// multipartThreshold switches the upload to the multipart manager for
// batches large enough to benefit from concurrent parts.
const multipartThreshold = 8 * 1024 * 1024

// Archiver serialises expired rows to JSONL and uploads them before the
// cleanup pass deletes them from the primary store. One object per batch,
// keyed by kind and upload time, so repeated cleanups never overwrite
// earlier archives.
type Archiver struct {
	writer *Writer
	now    func() time.Time
}

// NewArchiver creates an Archiver that uploads through the given writer.
func NewArchiver(w *Writer) *Archiver {
	return &Archiver{
		writer: w,
		now:    time.Now,
	}
}

// ArchiveOpportunities uploads a batch of expired opportunities.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, rows []domain.Opportunity) error {
	return archiveBatch(ctx, a, "opportunities", rows)
}

// ArchiveAlerts uploads a batch of read alerts.
func (a *Archiver) ArchiveAlerts(ctx context.Context, rows []domain.Alert) error {
	return archiveBatch(ctx, a, "alerts", rows)
}

// ArchiveHistory uploads a batch of old price history points.
func (a *Archiver) ArchiveHistory(ctx context.Context, rows []domain.TokenHistoryPoint) error {
	return archiveBatch(ctx, a, "history", rows)
}

func archiveBatch[T any](ctx context.Context, a *Archiver, kind string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	key := archiveKey(kind, a.now())
	if int64(len(buf)) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	return nil
}

// archiveKey builds the object key for an archive batch.
//
//	archive/opportunities/20260831T120000Z.jsonl
//	archive/alerts/20260831T120000Z.jsonl
//	archive/history/20260831T120000Z.jsonl
func archiveKey(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, at.UTC().Format("20060102T150405Z"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
