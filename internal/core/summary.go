package core

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// FamilyTotals aggregates file results of one family.
type FamilyTotals struct {
	Files         int   `json:"files"`
	RowsParsed    int   `json:"rows_parsed"`
	RowsRejected  int   `json:"rows_rejected"`
	RecordsMapped int   `json:"records_mapped"`
	RowsWritten   int64 `json:"rows_written"`
}

// Summary is the aggregate outcome of a run.
type Summary struct {
	RunID          string                  `json:"run_id"`
	FilesSeen      int                     `json:"files_seen"`
	FilesProcessed int                     `json:"files_processed"`
	FilesRejected  int                     `json:"files_rejected"`
	BytesRead      int64                   `json:"bytes_read"`
	Families       map[string]FamilyTotals `json:"families"`
	RejectedByCode map[string]int          `json:"rejected_by_code"`
	Cancelled      bool                    `json:"cancelled"`
	Duration       time.Duration           `json:"duration"`
}

// Tally accumulates FileResults into a Summary. Safe for concurrent use.
type Tally struct {
	mu      sync.Mutex
	started time.Time
	s       Summary
}

// NewTally starts a tally for a run.
func NewTally(runID string) *Tally {
	return &Tally{
		started: time.Now(),
		s: Summary{
			RunID:          runID,
			Families:       make(map[string]FamilyTotals),
			RejectedByCode: make(map[string]int),
		},
	}
}

// Seen counts a dispatched path.
func (t *Tally) Seen() {
	t.mu.Lock()
	t.s.FilesSeen++
	t.mu.Unlock()
}

// FileDone implements ProgressSink.
func (t *Tally) FileDone(r FileResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.BytesRead += r.BytesRead
	if r.Rejected() {
		t.s.FilesRejected++
		t.s.RejectedByCode[r.Code]++
	} else {
		t.s.FilesProcessed++
	}

	if !r.HasFamily {
		return
	}
	ft := t.s.Families[r.Family.String()]
	ft.Files++
	ft.RowsParsed += r.RowsParsed
	ft.RowsRejected += r.RowsRejected
	ft.RecordsMapped += r.RecordsMapped
	ft.RowsWritten += r.RowsWritten
	t.s.Families[r.Family.String()] = ft
}

// MarkCancelled records that the run stopped dispatching early.
func (t *Tally) MarkCancelled() {
	t.mu.Lock()
	t.s.Cancelled = true
	t.mu.Unlock()
}

// Snapshot returns a copy of the current summary.
func (t *Tally) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.s
	s.Duration = time.Since(t.started)
	s.Families = make(map[string]FamilyTotals, len(t.s.Families))
	for k, v := range t.s.Families {
		s.Families[k] = v
	}
	s.RejectedByCode = make(map[string]int, len(t.s.RejectedByCode))
	for k, v := range t.s.RejectedByCode {
		s.RejectedByCode[k] = v
	}
	return s
}

// FilesPerSecond returns the processing rate over the run duration.
func (s Summary) FilesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.FilesProcessed+s.FilesRejected) / s.Duration.Seconds()
}

// WriteTo prints a human-readable report.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var total int64
	p := func(format string, args ...any) {
		n, _ := fmt.Fprintf(w, format, args...)
		total += int64(n)
	}

	p("Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	p("Files: %s seen, %s processed, %s rejected (%.1f files/s, %s read)\n",
		humanize.Comma(int64(s.FilesSeen)),
		humanize.Comma(int64(s.FilesProcessed)),
		humanize.Comma(int64(s.FilesRejected)),
		s.FilesPerSecond(),
		humanize.Bytes(uint64(s.BytesRead)),
	)

	for _, f := range Families {
		ft, ok := s.Families[f.String()]
		if !ok {
			continue
		}
		p("  %-8s files=%s parsed=%s rejected=%s mapped=%s written=%s\n",
			f,
			humanize.Comma(int64(ft.Files)),
			humanize.Comma(int64(ft.RowsParsed)),
			humanize.Comma(int64(ft.RowsRejected)),
			humanize.Comma(int64(ft.RecordsMapped)),
			humanize.Comma(ft.RowsWritten),
		)
	}

	if len(s.RejectedByCode) > 0 {
		codes := make([]string, 0, len(s.RejectedByCode))
		for c := range s.RejectedByCode {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			p("  rejected %s: %d\n", c, s.RejectedByCode[c])
		}
	}
	if s.Cancelled {
		p("Run was cancelled before all files were dispatched\n")
	}
	return total, nil
}
