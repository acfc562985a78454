package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sessionRecords(n int) []Record {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	recs := make([]Record, n)
	for i := range recs {
		recs[i] = ReceiveRecord{SessionFields: SessionFields{DateTime: ts, SessionID: "S", SequenceNumber: int32(i)}}
	}
	return recs
}

func TestBatchWriter_FlushOncePerFile(t *testing.T) {
	store := newMemStore()
	bw := NewBatchWriter(store, FamilyReceive, 0, time.Second)
	ctx := context.Background()

	for _, r := range sessionRecords(5) {
		if err := bw.Add(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if bw.Pending() != 5 || bw.Flushes() != 0 {
		t.Fatalf("before Flush: pending=%d flushes=%d", bw.Pending(), bw.Flushes())
	}

	if err := bw.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if bw.Pending() != 0 || bw.Flushes() != 1 || bw.Written() != 5 {
		t.Errorf("after Flush: pending=%d flushes=%d written=%d", bw.Pending(), bw.Flushes(), bw.Written())
	}

	// empty flush is a no-op
	if err := bw.Flush(ctx); err != nil || bw.Flushes() != 1 {
		t.Errorf("empty Flush: err=%v flushes=%d", err, bw.Flushes())
	}
}

func TestBatchWriter_FlushRows(t *testing.T) {
	store := newMemStore()
	bw := NewBatchWriter(store, FamilyReceive, 2, 0)
	ctx := context.Background()

	if err := bw.Add(ctx, sessionRecords(5)...); err != nil {
		t.Fatal(err)
	}
	if bw.Flushes() != 1 || bw.Pending() != 0 {
		t.Errorf("flushes=%d pending=%d, want 1 and 0", bw.Flushes(), bw.Pending())
	}
}

func TestBatchWriter_IgnoresCancelDuringWrite(t *testing.T) {
	store := newMemStore()
	bw := NewBatchWriter(store, FamilyReceive, 0, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bw.Add(ctx, sessionRecords(3)...)
	if err := bw.Flush(ctx); err != nil {
		t.Fatalf("Flush on cancelled ctx: %v", err)
	}
	if store.count(FamilyReceive) != 3 {
		t.Errorf("stored %d, want 3", store.count(FamilyReceive))
	}
}

func TestBatchWriter_WriteError(t *testing.T) {
	store := newMemStore()
	store.failFor[FamilySend] = errors.New("connection reset by peer")
	bw := NewBatchWriter(store, FamilySend, 0, 0)
	ctx := context.Background()

	bw.Add(ctx, SendRecord{SessionFields: SessionFields{SessionID: "S"}})
	err := bw.Flush(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if MapError(err).Code != "DB005" {
		t.Errorf("code = %s, want DB005", MapError(err).Code)
	}
	if bw.Pending() != 1 || bw.Written() != 0 {
		t.Errorf("pending=%d written=%d after failure", bw.Pending(), bw.Written())
	}
}
