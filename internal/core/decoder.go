package core

import (
	"fmt"
	"io"
	"strings"
)

// Decoder turns data lines into FieldRows keyed by the active #Fields: list.
type Decoder struct {
	lr     *LineReader
	schema *Schema
}

// NewDecoder continues reading lr after ReadHeader returned schema.
func NewDecoder(lr *LineReader, schema *Schema) *Decoder {
	return &Decoder{lr: lr, schema: schema}
}

// Schema returns the active schema. It changes when a later #Fields: appears.
func (d *Decoder) Schema() *Schema {
	return d.schema
}

// Next returns the next data line.
//
// It returns io.EOF at end of input and a *LineError for a line that cannot
// be decoded; the caller may continue after a *LineError. Any other error is
// file-level.
func (d *Decoder) Next() (FieldRow, error) {
	for {
		text, line, err := d.lr.ReadLine()
		if err == io.EOF {
			return FieldRow{}, io.EOF
		}
		if err != nil {
			return FieldRow{}, fmt.Errorf("read %s: %w", d.schema.Path, err)
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		if isDirective(text) {
			if err := d.directive(text); err != nil {
				return FieldRow{}, err
			}
			continue
		}

		rec, err := splitLine(text)
		if err != nil {
			return FieldRow{}, &LineError{Line: line, Err: err}
		}
		if len(rec) != len(d.schema.Fields) {
			return FieldRow{}, &LineError{
				Line: line,
				Err:  fmt.Errorf("%w: expected %d, got %d", ErrColumnCount, len(d.schema.Fields), len(rec)),
			}
		}

		values := make(map[string]string, len(rec))
		for i, v := range rec {
			values[d.schema.Fields[i]] = v
		}
		return FieldRow{Line: line, Values: values}, nil
	}
}

// directive applies a directive seen after the header. A repeated #Fields:
// replaces the active field list.
func (d *Decoder) directive(line string) error {
	if !strings.HasPrefix(line, DirectiveFields) {
		return nil
	}
	fields := parseFields(line)
	if len(fields) == 0 {
		return nil
	}
	next := NewSchema(d.schema.Path, d.schema.Family, fields)
	if err := checkRequired(next); err != nil {
		return err
	}
	d.schema = next
	return nil
}

// splitLine splits one data line on commas.
//
// A field that starts with a quote runs to the matching quote and may hold
// commas; a doubled quote inside it is a literal quote. Text after the
// closing quote is kept. A quote inside an unquoted field is literal. A
// quote still open at end of line is ErrUnterminatedQuote.
func splitLine(line string) ([]string, error) {
	var (
		fields []string
		b      strings.Builder
		i      int
	)
	for {
		b.Reset()
		if i < len(line) && line[i] == '"' {
			i++
			closed := false
			for i < len(line) {
				if line[i] == '"' {
					if i+1 < len(line) && line[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(line[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w in field %d", ErrUnterminatedQuote, len(fields)+1)
			}
		}
		for i < len(line) && line[i] != ',' {
			b.WriteByte(line[i])
			i++
		}
		fields = append(fields, b.String())
		if i >= len(line) {
			return fields, nil
		}
		i++
	}
}
