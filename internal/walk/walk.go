// Package walk finds candidate log files under a directory tree.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/fgbm/exchange-log-parser/internal/logging"
)

// DefaultPatterns match the file names the transport service writes.
// Matching is case-insensitive.
var DefaultPatterns = []string{
	"*RECV*.log", "*REC*.log", "*SEND*.log", "*SND*.log", "MSGTRK*.log",
	"*RECV*.log.gz", "*REC*.log.gz", "*SEND*.log.gz", "*SND*.log.gz", "MSGTRK*.log.gz",
	"*RECV*.log.zst", "*REC*.log.zst", "*SEND*.log.zst", "*SND*.log.zst", "MSGTRK*.log.zst",
}

// Matcher tests base names against a set of glob patterns.
type Matcher struct {
	patterns []string
}

// NewMatcher compiles patterns, falling back to DefaultPatterns when empty.
func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	m := &Matcher{patterns: make([]string, len(patterns))}
	for i, p := range patterns {
		p = strings.ToLower(p)
		if _, err := doublestar.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", patterns[i], err)
		}
		m.patterns[i] = p
	}
	return m, nil
}

// Match reports whether the base name of path matches any pattern.
func (m *Matcher) Match(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Paths walks root in lexical order and sends every regular file whose name
// matches. The channel is closed when the walk ends or ctx is cancelled.
func Paths(ctx context.Context, root string, patterns []string) (<-chan string, error) {
	m, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		log := logging.FromContext(ctx)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					log.Warn("skipping unreadable directory", "path", path, "error", err)
					return fs.SkipDir
				}
				log.Warn("skipping unreadable entry", "path", path, "error", err)
				if path == root {
					return err
				}
				return nil
			}
			if !d.Type().IsRegular() || !m.Match(path) {
				return nil
			}
			select {
			case out <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error("walk failed", "root", root, "error", err)
		}
	}()
	return out, nil
}
