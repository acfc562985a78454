package core

import (
	"context"
	"fmt"
	"time"
)

// BatchWriter accumulates the records of one file and hands them to the
// store. With flushRows == 0 it writes once, when Flush is called.
type BatchWriter struct {
	store     Store
	family    Family
	flushRows int
	timeout   time.Duration

	pending []Record
	written int64
	flushes int
}

// NewBatchWriter creates a writer for one family. timeout bounds each write;
// zero means no deadline beyond the caller's.
func NewBatchWriter(store Store, family Family, flushRows int, timeout time.Duration) *BatchWriter {
	return &BatchWriter{
		store:     store,
		family:    family,
		flushRows: flushRows,
		timeout:   timeout,
	}
}

// Add queues records and flushes when the pending count reaches flushRows.
func (b *BatchWriter) Add(ctx context.Context, recs ...Record) error {
	b.pending = append(b.pending, recs...)
	if b.flushRows > 0 && len(b.pending) >= b.flushRows {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes all pending records in one store transaction.
// A write that has started is not interrupted by cancellation of ctx;
// only the timeout ends it early.
func (b *BatchWriter) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}

	writeCtx := context.WithoutCancel(ctx)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, b.timeout)
		defer cancel()
	}

	n, err := b.store.WriteBatch(writeCtx, b.family, b.pending)
	if err != nil {
		return fmt.Errorf("write %d %s records: %w", len(b.pending), b.family, err)
	}

	b.written += n
	b.flushes++
	b.pending = b.pending[:0]
	return nil
}

// Pending returns the number of queued records.
func (b *BatchWriter) Pending() int { return len(b.pending) }

// Written returns the number of records the store reported as inserted.
func (b *BatchWriter) Written() int64 { return b.written }

// Flushes returns the number of successful writes.
func (b *BatchWriter) Flushes() int { return b.flushes }
