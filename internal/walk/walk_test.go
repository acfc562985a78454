package walk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, r)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func collect(t *testing.T, ctx context.Context, root string, patterns []string) []string {
	t.Helper()
	ch, err := Paths(ctx, root, patterns)
	if err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	var got []string
	for p := range ch {
		rel, _ := filepath.Rel(root, p)
		got = append(got, filepath.ToSlash(rel))
	}
	return got
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher(nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"RECV2024031501-1.LOG", true},
		{"recv2024031501-1.log", true},
		{"SEND20240315-1.log", true},
		{"MSGTRK2024031501-1.LOG", true},
		{"MSGTRKMD2024031501-1.LOG", true},
		{"MSGTRK2024031501-1.log.gz", true},
		{"RECV2024031501-1.log.zst", true},
		{"connectivity.log", false},
		{"RECV2024031501-1.txt", false},
		{"notes.log.gz", false},
	}
	for _, tt := range tests {
		if got := m.Match(filepath.Join("logs", tt.name)); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPaths_Recursive(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"FrontEnd/ProtocolLog/SmtpReceive/RECV2024031501-1.LOG",
		"FrontEnd/ProtocolLog/SmtpSend/SEND2024031501-1.LOG",
		"MessageTracking/MSGTRK2024031501-1.LOG",
		"MessageTracking/readme.txt",
		"other.log",
	)

	got := collect(t, context.Background(), root, nil)
	want := []string{
		"FrontEnd/ProtocolLog/SmtpReceive/RECV2024031501-1.LOG",
		"FrontEnd/ProtocolLog/SmtpSend/SEND2024031501-1.LOG",
		"MessageTracking/MSGTRK2024031501-1.LOG",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
}

func TestPaths_CustomPatterns(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/MSGTRK1.log", "a/RECV1.log", "b/MSGTRK2.log.gz")

	got := collect(t, context.Background(), root, []string{"msgtrk*"})
	want := []string{"a/MSGTRK1.log", "b/MSGTRK2.log.gz"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
}

func TestPaths_Cancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "RECV1.log", "RECV2.log", "RECV3.log")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Paths(ctx, root, nil)
	if err != nil {
		t.Fatal(err)
	}
	<-ch
	cancel()

	// the walker must close the channel without further receives blocking forever
	for range ch {
	}
}

func TestPaths_MissingRoot(t *testing.T) {
	got := collect(t, context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	if len(got) != 0 {
		t.Errorf("got %v from missing root", got)
	}
}
