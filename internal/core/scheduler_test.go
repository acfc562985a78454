package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// memStore is an in-memory Store with key-set uniqueness per family.
type memStore struct {
	mu      sync.Mutex
	rows    map[Family]map[string]Record
	writes  int
	failFor map[Family]error
	delay   time.Duration

	inFlight, peak int
}

func newMemStore() *memStore {
	return &memStore{
		rows:    make(map[Family]map[string]Record),
		failFor: make(map[Family]error),
	}
}

func (m *memStore) EnsureSchema(context.Context) error { return nil }
func (m *memStore) Ping(context.Context) error         { return nil }
func (m *memStore) Close()                             {}

func (m *memStore) WriteBatch(ctx context.Context, f Family, recs []Record) (int64, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	if err := m.failFor[f]; err != nil {
		return 0, err
	}
	m.writes++
	if m.rows[f] == nil {
		m.rows[f] = make(map[string]Record)
	}
	var n int64
	for _, r := range recs {
		if _, ok := m.rows[f][r.Key()]; ok {
			continue
		}
		m.rows[f][r.Key()] = r
		n++
	}
	return n, nil
}

func (m *memStore) count(f Family) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[f])
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for f, rows := range m.rows {
		for k := range rows {
			out = append(out, f.String()+"|"+k)
		}
	}
	sort.Strings(out)
	return out
}

type collectSink struct {
	mu      sync.Mutex
	results map[string]FileResult
}

func (c *collectSink) FileDone(r FileResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = make(map[string]FileResult)
	}
	if _, dup := c.results[r.Path]; dup {
		panic("duplicate result for " + r.Path)
	}
	c.results[r.Path] = r
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func feed(paths ...string) <-chan string {
	ch := make(chan string, len(paths))
	for _, p := range paths {
		ch <- p
	}
	close(ch)
	return ch
}

const scenarioReceive = "#Log-type: SMTP Receive Protocol Log\n" +
	"#Fields: date-time,session-id,sequence-number,source-ip\n" +
	"2024-01-15T10:00:00.000Z,08DC1,0,10.0.0.1\n" +
	"2024-01-15T10:00:00.000Z,08DC1,1,10.0.0.1\n"

func TestScheduler_EndToEndReceive(t *testing.T) {
	store := newMemStore()
	path := writeFile(t, t.TempDir(), "RECV1.log", scenarioReceive)
	sched := NewScheduler(store, SchedulerConfig{MaxConcurrent: 2})

	first := sched.ProcessFile(context.Background(), path)
	if first.Phase != PhaseDone || first.RowsWritten != 2 {
		t.Fatalf("first run: %+v", first)
	}
	if got := store.count(FamilyReceive); got != 2 {
		t.Fatalf("rows after first run = %d, want 2", got)
	}

	second := sched.ProcessFile(context.Background(), path)
	if second.Phase != PhaseDone || second.RowsWritten != 0 {
		t.Errorf("second run: %+v", second)
	}
	if got := store.count(FamilyReceive); got != 2 {
		t.Errorf("rows after second run = %d, want 2", got)
	}
}

func fixtureDir(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 6; i++ {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("RECV%d.log", i),
			"#Log-type: SMTP Receive Protocol Log\n"+
				"#Fields: date-time,session-id,sequence-number,data\n"+
				fmt.Sprintf("2024-01-15T10:00:0%d.000Z,S%d,0,MAIL FROM:<a@x>\n", i, i)+
				fmt.Sprintf("2024-01-15T10:00:0%d.000Z,S%d,1,RCPT TO:<b@x>\n", i, i)+
				"2024-01-15T10:00:00.000Z,S,broken\n"))
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("MSGTRK%d.log", i),
			"#Log-type: Message Tracking Log\n"+
				"#Fields: date-time,internal-message-id,event-id,recipient-address,recipient-status\n"+
				fmt.Sprintf("2024-01-15T10:00:0%d.000Z,%d,DELIVER,a@x;b@x;c@x,250\n", i, i)+
				fmt.Sprintf("2024-01-15T10:00:0%d.000Z,%d,RECEIVE,a@x,\n", i, i)))
	}
	// shared with RECV0: same keys must not be inserted twice
	paths = append(paths, writeFile(t, dir, "RECV0-copy.log",
		"#Log-type: SMTP Receive Protocol Log\n"+
			"#Fields: session-id,date-time,sequence-number\n"+
			"S0,2024-01-15T10:00:00.000Z,0\n"))
	paths = append(paths, writeFile(t, dir, "PROXY1.log",
		"#Log-type: SMTP Proxy Log\n#Fields: date-time\n"))
	return paths
}

func TestScheduler_ConcurrencyIndependent(t *testing.T) {
	paths := fixtureDir(t)

	run := func(limit int) (*memStore, Summary) {
		store := newMemStore()
		store.delay = 2 * time.Millisecond
		tally := NewTally("test")
		NewScheduler(store, SchedulerConfig{MaxConcurrent: limit}).Run(context.Background(), feed(paths...), tally)
		return store, tally.Snapshot()
	}

	serial, sumSerial := run(1)
	parallel, sumParallel := run(8)

	if diff := cmp.Diff(serial.keys(), parallel.keys()); diff != "" {
		t.Errorf("stored keys differ between limits (-1 +8):\n%s", diff)
	}
	if serial.peak != 1 {
		t.Errorf("limit 1 observed %d concurrent writes", serial.peak)
	}
	if parallel.peak > 8 {
		t.Errorf("limit 8 observed %d concurrent writes", parallel.peak)
	}

	if got := serial.count(FamilyReceive); got != 12 {
		t.Errorf("receive rows = %d, want 12", got)
	}
	if got := serial.count(FamilyTracking); got != 24 {
		t.Errorf("tracking rows = %d, want 24", got)
	}

	for _, s := range []Summary{sumSerial, sumParallel} {
		if s.FilesSeen != len(paths) || s.FilesRejected != 1 || s.RejectedByCode["LOG001"] != 1 {
			t.Errorf("summary = %+v", s)
		}
		if rt := s.Families["receive"]; rt.RowsRejected != 6 {
			t.Errorf("receive rows rejected = %d, want 6", rt.RowsRejected)
		}
	}
}

func TestScheduler_Idempotent(t *testing.T) {
	paths := fixtureDir(t)
	store := newMemStore()
	sched := NewScheduler(store, SchedulerConfig{MaxConcurrent: 4})

	sched.Run(context.Background(), feed(paths...), nil)
	before := store.keys()

	tally := NewTally("again")
	sched.Run(context.Background(), feed(paths...), tally)

	if diff := cmp.Diff(before, store.keys()); diff != "" {
		t.Errorf("second run changed stored rows:\n%s", diff)
	}
	for fam, ft := range tally.Snapshot().Families {
		if ft.RowsWritten != 0 {
			t.Errorf("%s: second run inserted %d rows", fam, ft.RowsWritten)
		}
	}
}

func TestScheduler_WriteFailureIsolated(t *testing.T) {
	paths := fixtureDir(t)
	store := newMemStore()
	store.failFor[FamilyTracking] = errors.New("read tcp: connection reset by peer")

	sink := &collectSink{}
	NewScheduler(store, SchedulerConfig{MaxConcurrent: 3}, sink).Run(context.Background(), feed(paths...), nil)

	if len(sink.results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(sink.results), len(paths))
	}
	for path, r := range sink.results {
		switch {
		case r.HasFamily && r.Family == FamilyTracking:
			if r.Phase != PhaseRejected || r.Code != "DB005" {
				t.Errorf("%s: phase=%s code=%s", path, r.Phase, r.Code)
			}
		case r.HasFamily:
			if r.Phase != PhaseDone {
				t.Errorf("%s: phase=%s reason=%s", path, r.Phase, r.Reason)
			}
		}
	}
	if store.count(FamilyReceive) != 12 {
		t.Errorf("receive rows = %d, want 12", store.count(FamilyReceive))
	}
}

func TestScheduler_FlushRows(t *testing.T) {
	dir := t.TempDir()
	content := "#Log-type: SMTP Send Protocol Log\n#Fields: date-time,session-id,sequence-number\n"
	for i := 0; i < 25; i++ {
		content += fmt.Sprintf("2024-01-15T10:00:00Z,S,%d\n", i)
	}
	path := writeFile(t, dir, "SEND1.log", content)

	store := newMemStore()
	res := NewScheduler(store, SchedulerConfig{FlushRows: 10}).ProcessFile(context.Background(), path)
	if res.RowsWritten != 25 {
		t.Errorf("RowsWritten = %d, want 25", res.RowsWritten)
	}
	if store.writes != 3 {
		t.Errorf("writes = %d, want 3", store.writes)
	}
}

func TestScheduler_CancelledBeforeDispatch(t *testing.T) {
	paths := fixtureDir(t)
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tally := NewTally("cancelled")
	NewScheduler(store, SchedulerConfig{MaxConcurrent: 2}).Run(ctx, feed(paths...), tally)

	s := tally.Snapshot()
	if s.FilesSeen != 0 || !s.Cancelled {
		t.Errorf("summary = %+v", s)
	}
	if store.writes != 0 {
		t.Errorf("writes = %d after cancellation", store.writes)
	}
}

func TestScheduler_MissingFile(t *testing.T) {
	res := NewScheduler(newMemStore(), SchedulerConfig{}).ProcessFile(context.Background(),
		filepath.Join(t.TempDir(), "gone.log"))
	if res.Phase != PhaseRejected || res.Code != "FILE001" {
		t.Errorf("result = %+v", res)
	}
}
