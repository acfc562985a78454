package core

// scheduler.go runs the per-file pipeline under a fixed worker budget.
//
// Each worker owns one file end to end: open, header, decode, map, write.
// A failure in one file is recorded on its FileResult and never cancels
// siblings. Once ctx is cancelled no further paths are dispatched; files in
// flight stop decoding at the next check and writes already started run to
// commit or rollback.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
)

// ContextCheckInterval is how many lines are decoded between cancellation checks.
var ContextCheckInterval = 500

// SchedulerConfig holds the tunables of a run.
type SchedulerConfig struct {
	MaxConcurrent int
	FlushRows     int
	WriteTimeout  time.Duration
	Encoding      encoding.Encoding
	Logger        *slog.Logger
}

// Scheduler dispatches files to workers.
type Scheduler struct {
	store   Store
	cfg     SchedulerConfig
	limiter *Limiter
	sinks   []ProgressSink
	log     *slog.Logger
}

// NewScheduler creates a scheduler writing to store. Every sink receives one
// FileResult per dispatched path.
func NewScheduler(store Store, cfg SchedulerConfig, sinks ...ProgressSink) *Scheduler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:   store,
		cfg:     cfg,
		limiter: NewLimiter(cfg.MaxConcurrent),
		sinks:   sinks,
		log:     log,
	}
}

// Limiter exposes the worker budget for status reporting.
func (s *Scheduler) Limiter() *Limiter {
	return s.limiter
}

// Run consumes paths until the channel closes or ctx is cancelled, then
// waits for in-flight files. tally may be nil.
func (s *Scheduler) Run(ctx context.Context, paths <-chan string, tally *Tally) {
	var g errgroup.Group

dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case path, ok := <-paths:
			if !ok {
				break dispatch
			}
			if err := s.limiter.Acquire(ctx); err != nil {
				break dispatch
			}
			if tally != nil {
				tally.Seen()
			}

			g.Go(func() error {
				defer s.limiter.Release()
				res := s.ProcessFile(ctx, path)
				if tally != nil {
					tally.FileDone(res)
				}
				for _, sink := range s.sinks {
					sink.FileDone(res)
				}
				return nil
			})
		}
	}

	if ctx.Err() != nil && tally != nil {
		tally.MarkCancelled()
	}
	g.Wait()
}

// ProcessFile runs the full pipeline for one path and reports the outcome.
func (s *Scheduler) ProcessFile(ctx context.Context, path string) (res FileResult) {
	start := time.Now()
	res = FileResult{Path: path, Phase: PhasePending}
	log := s.log.With("path", path)

	reject := func(err error) FileResult {
		msg := MapError(err)
		res.Phase = PhaseRejected
		res.Code = msg.Code
		res.Reason = err.Error()
		if IsKnown(err) {
			log.Warn("file rejected", "code", msg.Code, "error", err)
		} else {
			log.Error("file rejected", "code", msg.Code, "error", err)
		}
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = reject(fmt.Errorf("panic: %v", r))
		}
		res.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		return reject(err)
	}

	lr, err := OpenLog(path, s.cfg.Encoding)
	if err != nil {
		return reject(fmt.Errorf("open: %w", err))
	}
	defer lr.Close()
	defer func() { res.BytesRead = lr.BytesRead() }()

	cr := NewLineReader(lr)
	schema, err := ReadHeader(cr, path)
	if err != nil {
		return reject(err)
	}
	res.Family, res.HasFamily = schema.Family, true
	res.Phase = PhaseHeaderParsed
	log = log.With("family", schema.Family.String())

	mapper := MapperFor(schema.Family)
	bw := NewBatchWriter(s.store, schema.Family, s.cfg.FlushRows, s.cfg.WriteTimeout)
	dec := NewDecoder(cr, schema)
	res.Phase = PhaseDecoding

	for n := 0; ; n++ {
		if n%ContextCheckInterval == 0 && ctx.Err() != nil {
			res.RowsWritten = bw.Written()
			return reject(ctx.Err())
		}

		row, err := dec.Next()
		if err == io.EOF {
			break
		}
		var le *LineError
		if errors.As(err, &le) {
			s.rejectLine(&res, log, le)
			continue
		}
		if err != nil {
			res.RowsWritten = bw.Written()
			return reject(err)
		}

		recs, err := mapper.Map(row)
		if err != nil {
			s.rejectLine(&res, log, &LineError{Line: row.Line, Err: err})
			continue
		}
		res.RowsParsed++
		res.RecordsMapped += len(recs)

		if err := bw.Add(ctx, recs...); err != nil {
			res.RowsWritten = bw.Written()
			return reject(err)
		}
	}
	res.Phase = PhaseMapped

	if err := bw.Flush(ctx); err != nil {
		res.RowsWritten = bw.Written()
		return reject(err)
	}
	res.RowsWritten = bw.Written()
	res.Phase = PhaseWritten

	log.Info("file ingested",
		"rows_parsed", res.RowsParsed,
		"rows_rejected", res.RowsRejected,
		"records", res.RecordsMapped,
		"inserted", res.RowsWritten,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	res.Phase = PhaseDone
	return res
}

func (s *Scheduler) rejectLine(res *FileResult, log *slog.Logger, le *LineError) {
	res.RowsRejected++
	if len(res.FailedRows) < MaxFailedRowsPerFile {
		res.FailedRows = append(res.FailedRows, FailedRow{Line: le.Line, Reason: le.Err.Error()})
	}
	if errors.Is(le.Err, ErrNoRecipients) {
		log.Warn("line dropped", "line", le.Line, "error", le.Err)
		return
	}
	log.Debug("line rejected", "line", le.Line, "error", le.Err)
}
