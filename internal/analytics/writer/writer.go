package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agromart/agromart-backend/internal/analytics/types"
	pkgbigquery "github.com/agromart/agromart-backend/pkg/bigquery"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type Config struct {
	NegotiationTable string
	// BatchSize above 1 buffers rows until the batch fills or Flush runs.
	BatchSize   int
	RetryPolicy RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams negotiation_events rows. Each row is sent with
// its event id as insert id, so a redelivered event is deduplicated by
// BigQuery on a best-effort basis. On partial failure only the failed
// rows are retried.
type BigQueryWriter struct {
	client tableInserter
	table  string
	batch  int
	retry  RetryPolicy

	mu     sync.Mutex
	buffer []types.NegotiationEventRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	table := strings.TrimSpace(cfg.NegotiationTable)
	if table == "" {
		return nil, errors.New("negotiation table is required")
	}
	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	retry.MaximumBackoff = max(retry.MaximumBackoff, retry.InitialBackoff)

	return &BigQueryWriter{
		client: client,
		table:  table,
		batch:  max(cfg.BatchSize, defaultBatchSize),
		retry:  retry,
	}, nil
}

func (w *BigQueryWriter) InsertNegotiationEvent(ctx context.Context, row types.NegotiationEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batch {
		return nil
	}
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// RunFlusher flushes on every tick until ctx ends, then flushes once more
// so buffered rows survive shutdown.
func (w *BigQueryWriter) RunFlusher(ctx context.Context, every time.Duration, onErr func(error)) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := w.Flush(context.WithoutCancel(ctx)); err != nil && onErr != nil {
				onErr(err)
			}
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

// flushLocked sends the buffer. Rows that fail permanently are dropped
// with the returned error; rows still failing transiently stay buffered
// for the next flush.
func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	remaining, err := w.insert(ctx, w.buffer)
	w.buffer = remaining
	return err
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []types.NegotiationEventRow) ([]types.NegotiationEventRow, error) {
	pending := rows
	backoff := w.retry.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, savers(pending))
		if err == nil {
			return nil, nil
		}

		failed, retry := classify(err, pending)
		if !retry {
			return nil, fmt.Errorf("insert %d rows into %s: %w", len(pending), w.table, err)
		}
		if attempt >= w.retry.MaxAttempts {
			return failed, fmt.Errorf("insert %d rows into %s after %d attempts: %w", len(failed), w.table, attempt, err)
		}
		pending = failed

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pending, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func savers(rows []types.NegotiationEventRow) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = &cbigquery.StructSaver{
			Struct:   &rows[i],
			Schema:   types.NegotiationEventSchema,
			InsertID: rows[i].EventID,
		}
	}
	return out
}

// classify returns the rows worth retrying and whether retrying makes
// sense at all. A per-row failure with a permanent reason poisons the batch.
func classify(err error, rows []types.NegotiationEventRow) ([]types.NegotiationEventRow, bool) {
	var perRow cbigquery.PutMultiError
	if errors.As(err, &perRow) && len(perRow) > 0 {
		failed := make([]types.NegotiationEventRow, 0, len(perRow))
		for _, rowErr := range perRow {
			if rowErr.RowIndex < 0 || rowErr.RowIndex >= len(rows) || !isRetryable(rowErr.Errors) {
				return nil, false
			}
			failed = append(failed, rows[rowErr.RowIndex])
		}
		return failed, true
	}
	return rows, isRetryable(err)
}

// Row-level reasons BigQuery documents as transient. "stopped" marks rows
// that were fine but rejected alongside a failing one.
var retryableReasons = map[string]bool{
	"backendError":      true,
	"internalError":     true,
	"rateLimitExceeded": true,
	"timeout":           true,
	"stopped":           true,
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isRetryable(inner) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.Error
	if errors.As(err, &rowErr) {
		return retryableReasons[rowErr.Reason]
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

// EncodeJSON converts an event payload into a JSON column value. Empty
// payloads become NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
