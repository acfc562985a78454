package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Directive prefixes recognized in log headers.
const (
	DirectiveLogType = "#Log-type:"
	DirectiveFields  = "#Fields:"
)

// LineReader yields the physical lines of a decoded log. Every line is
// split on its own, so a stray quote never swallows the lines after it.
type LineReader struct {
	br   *bufio.Reader
	line int
}

// NewLineReader wraps r, which must already yield UTF-8 text.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// ReadLine returns the next line without its terminator and its 1-based
// number. It returns io.EOF once the input is exhausted.
func (r *LineReader) ReadLine() (string, int, error) {
	s, err := r.br.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", r.line, err
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), r.line, nil
}

// isDirective reports whether a line is a '#' header or comment line.
func isDirective(line string) bool {
	return strings.HasPrefix(line, "#")
}

// parseFields splits the value of a #Fields: directive.
func parseFields(line string) []string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, DirectiveFields))
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		fields = append(fields, strings.TrimSpace(p))
	}
	return fields
}

// checkRequired returns ErrMissingField naming every required field the
// schema does not declare.
func checkRequired(s *Schema) error {
	var missing []string
	for _, name := range RequiredFields(s.Family) {
		if _, ok := s.Index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// ReadHeader consumes leading directive lines until both #Log-type: and
// #Fields: have been seen and returns the resulting schema. A data line
// before either directive rejects the file.
func ReadHeader(lr *LineReader, path string) (*Schema, error) {
	var (
		family    Family
		hasFamily bool
		fields    []string
	)

	for {
		line, _, err := lr.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !isDirective(line) {
			break
		}

		switch {
		case strings.HasPrefix(line, DirectiveLogType):
			label := strings.TrimSpace(strings.TrimPrefix(line, DirectiveLogType))
			f, ok := FamilyFromLabel(label)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnsupportedLogType, label)
			}
			family, hasFamily = f, true

		case strings.HasPrefix(line, DirectiveFields):
			fields = parseFields(line)
		}

		if hasFamily && len(fields) > 0 {
			schema := NewSchema(path, family, fields)
			if err := checkRequired(schema); err != nil {
				return nil, err
			}
			return schema, nil
		}
	}

	if !hasFamily {
		return nil, ErrNoLogType
	}
	return nil, ErrNoFields
}
