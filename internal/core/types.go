// Package core provides the ingestion pipeline for mail server transaction logs.
// It has no storage driver dependencies and works against the Store interface.
package core

import (
	"context"
	"fmt"
	"time"
)

// Family identifies one of the supported log formats.
type Family int

const (
	FamilyReceive Family = iota
	FamilySend
	FamilyTracking
)

// Families lists every supported family in table creation order.
var Families = []Family{FamilyReceive, FamilySend, FamilyTracking}

// String returns the short family name used in logs and summaries.
func (f Family) String() string {
	switch f {
	case FamilyReceive:
		return "receive"
	case FamilySend:
		return "send"
	case FamilyTracking:
		return "tracking"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Log-type directive labels written by the server.
const (
	LabelReceive  = "SMTP Receive Protocol Log"
	LabelSend     = "SMTP Send Protocol Log"
	LabelTracking = "Message Tracking Log"
)

// FamilyFromLabel maps a #Log-type label to its family.
func FamilyFromLabel(label string) (Family, bool) {
	switch label {
	case LabelReceive:
		return FamilyReceive, true
	case LabelSend:
		return FamilySend, true
	case LabelTracking:
		return FamilyTracking, true
	}
	return 0, false
}

// Store persists records. Implementations live in the storage package.
type Store interface {
	// EnsureSchema creates the family tables and their unique indexes if absent.
	EnsureSchema(ctx context.Context) error

	// WriteBatch inserts records of one family in a single transaction.
	// Records whose key already exists are skipped. Returns the number inserted.
	WriteBatch(ctx context.Context, family Family, records []Record) (int64, error)

	Ping(ctx context.Context) error
	Close()
}

// ColumnType is the logical type of a stored column.
type ColumnType int

const (
	ColText ColumnType = iota
	ColTimestamp
	ColInt
	ColBigInt
)

// ColumnSpec describes one stored column.
type ColumnSpec struct {
	Name    string     // Database column name
	Type    ColumnType // Logical type, mapped per dialect
	Key     bool       // Part of the composite unique key
	NotNull bool
	Size    int        // Character limit of a text key column; 0 means MaxKeyLen
}

// TableInfo contains naming information about a family table.
type TableInfo struct {
	Family Family
	Name   string // Unprefixed table name: "smtp_receive_logs"
	Label  string // Display name: "SMTP Receive"
}

// RowFunc converts a record to column values in the order of TableDefinition.Columns.
// Absent optional values are returned as nil.
type RowFunc func(rec Record) []any

// TableDefinition contains everything needed to store one family.
type TableDefinition struct {
	Info    TableInfo
	Columns []ColumnSpec
	Row     RowFunc
}

// ColumnNames returns the column names in storage order.
func (t TableDefinition) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyColumns returns the names of the unique key columns in storage order.
func (t TableDefinition) KeyColumns() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.Key {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Record is a normalized, storable log entry.
type Record interface {
	Family() Family

	// Key returns the composite unique key encoded as a comparable string.
	Key() string
}

// Schema is the per-file header state: the detected family and the
// declared field order.
type Schema struct {
	Path   string
	Family Family
	Fields []string
	Index  map[string]int
}

// NewSchema builds a Schema with a field name index.
func NewSchema(path string, family Family, fields []string) *Schema {
	s := &Schema{Path: path, Family: family}
	s.SetFields(fields)
	return s
}

// SetFields replaces the declared field list.
func (s *Schema) SetFields(fields []string) {
	s.Fields = fields
	s.Index = make(map[string]int, len(fields))
	for i, f := range fields {
		s.Index[f] = i
	}
}

// FieldRow is one decoded data line keyed by declared field name.
type FieldRow struct {
	Line   int
	Values map[string]string
}

// Get returns the value of a field, or "" if absent.
func (r FieldRow) Get(name string) string {
	return r.Values[name]
}

// FilePhase indicates the processing state of one file.
type FilePhase string

const (
	PhasePending      FilePhase = "pending"
	PhaseHeaderParsed FilePhase = "header_parsed"
	PhaseDecoding     FilePhase = "decoding"
	PhaseMapped       FilePhase = "mapped"
	PhaseWritten      FilePhase = "written"
	PhaseDone         FilePhase = "done"
	PhaseRejected     FilePhase = "rejected"
)

// FailedRow contains information about a line that was rejected.
type FailedRow struct {
	Line   int
	Reason string
}

// MaxFailedRowsPerFile caps how many rejected lines are kept per file result.
const MaxFailedRowsPerFile = 20

// FileResult is the completion event emitted once per input path.
type FileResult struct {
	Path          string
	Family        Family
	HasFamily     bool
	Phase         FilePhase
	RowsParsed    int
	RowsRejected  int
	RecordsMapped int
	RowsWritten   int64
	BytesRead     int64
	Code          string // Error code when Phase is PhaseRejected
	Reason        string
	FailedRows    []FailedRow
	Duration      time.Duration
}

// Rejected reports whether the file reached the rejected phase.
func (r FileResult) Rejected() bool {
	return r.Phase == PhaseRejected
}

// ProgressSink receives one FileResult per processed path.
// Implementations must be safe for concurrent use.
type ProgressSink interface {
	FileDone(FileResult)
}
