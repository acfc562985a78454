package core

// streaming.go builds the byte-to-text reader chain for one log file:
//
//	file -> CountingReader -> gzip/zstd (by extension) -> BOM override -> code page decoder
//
// Nothing here buffers a whole file; memory is bounded by the reader buffers.

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the code page the server writes its logs in.
const DefaultEncoding = "windows-1251"

// ResolveEncoding maps a WHATWG/IANA encoding name to a decoder.
// An empty name selects DefaultEncoding.
func ResolveEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DefaultEncoding:
		return charmap.Windows1251, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// CountingReader tracks bytes read from the underlying reader.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// LogReader yields decoded UTF-8 text of one log file.
type LogReader struct {
	io.Reader
	counter *CountingReader
	closers []func() error
}

// BytesRead returns the number of on-disk bytes consumed so far.
func (r *LogReader) BytesRead() int64 {
	return r.counter.BytesRead
}

// Close releases the decompressor and the file, in reverse open order.
func (r *LogReader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenLog opens path and wraps it for decoding with enc.
func OpenLog(path string, enc encoding.Encoding) (*LogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	lr := &LogReader{closers: []func() error{f.Close}}
	if err := lr.wrap(f, path, enc); err != nil {
		lr.Close()
		return nil, err
	}
	return lr, nil
}

// NewLogReader wraps an already open stream. name selects decompression by extension.
func NewLogReader(r io.Reader, name string, enc encoding.Encoding) (*LogReader, error) {
	lr := &LogReader{}
	if err := lr.wrap(r, name, enc); err != nil {
		lr.Close()
		return nil, err
	}
	return lr, nil
}

func (lr *LogReader) wrap(r io.Reader, name string, enc encoding.Encoding) error {
	lr.counter = NewCountingReader(r)
	var src io.Reader = lr.counter

	switch lower := strings.ToLower(name); {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(src)
		if err != nil {
			return fmt.Errorf("%w: gzip: %v", ErrDecompress, err)
		}
		lr.closers = append(lr.closers, zr.Close)
		src = zr

	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(src)
		if err != nil {
			return fmt.Errorf("%w: zstd: %v", ErrDecompress, err)
		}
		lr.closers = append(lr.closers, func() error { zr.Close(); return nil })
		src = zr
	}

	if enc == nil {
		enc = charmap.Windows1251
	}
	lr.Reader = transform.NewReader(src, unicode.BOMOverride(enc.NewDecoder()))
	return nil
}
