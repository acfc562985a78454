package core

// # Error Codes Reference
//
// Rejected files carry a stable code so operators can grep run output.
//
//	LOG001  - Log type absent or unsupported
//	LOG002  - No #Fields: directive before the first data line
//	LOG003  - A required field is not declared in #Fields:
//	FILE001 - File could not be opened or read
//	FILE002 - Compressed file could not be decompressed
//	DB004   - Connection refused
//	DB005   - Connection reset
//	DB006   - Timeout
//	DB007   - Deadlock
//	UPL004  - Run cancelled
//	UPL005  - Write deadline exceeded
//	ERR000  - Unknown error; check logs for the technical error
//
// Sentinel errors are matched with errors.Is first. Driver errors that
// carry no sentinel are matched case-insensitively by substring, first
// match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoLogType is returned when a data line precedes the #Log-type: directive.
	ErrNoLogType = errors.New("no #Log-type directive before data")

	// ErrUnsupportedLogType is returned for a #Log-type: label with no family.
	ErrUnsupportedLogType = errors.New("unsupported log type")

	// ErrNoFields is returned when a data line precedes the #Fields: directive.
	ErrNoFields = errors.New("no #Fields directive before data")

	// ErrMissingField is returned when #Fields: omits a field the family requires.
	ErrMissingField = errors.New("required field not declared")

	// ErrColumnCount is returned for a data line whose column count differs from #Fields:.
	ErrColumnCount = errors.New("column count mismatch")

	// ErrUnterminatedQuote is returned for a data line that ends inside a quoted field.
	ErrUnterminatedQuote = errors.New("unterminated quoted field")

	// ErrKeyTooLong is returned when a key value exceeds its column limit.
	ErrKeyTooLong = errors.New("key value too long")

	// ErrNoRecipients is returned for a tracking line with an empty recipient list.
	ErrNoRecipients = errors.New("no recipients")

	// ErrDecompress wraps failures of the gzip or zstd readers.
	ErrDecompress = errors.New("decompress")
)

// UserMessage provides operator-facing error information.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for reference
}

type sentinelCode struct {
	target error
	msg    UserMessage
}

var sentinelCodes = []sentinelCode{
	{ErrNoLogType, UserMessage{"Log type directive missing", "Check that the file is a transport log", "LOG001"}},
	{ErrUnsupportedLogType, UserMessage{"Log type not supported", "Only receive, send and message tracking logs are ingested", "LOG001"}},
	{ErrNoFields, UserMessage{"Fields directive missing", "Check that the file header is intact", "LOG002"}},
	{ErrMissingField, UserMessage{"Required field not declared", "Check the log schema version", "LOG003"}},
	{ErrDecompress, UserMessage{"Compressed file is damaged", "Recompress or re-export the file", "FILE002"}},
	{context.Canceled, UserMessage{"Run was cancelled", "Re-run to ingest the remaining files", "UPL004"}},
	{context.DeadlineExceeded, UserMessage{"Write timed out", "Raise INGEST_WRITE_TIMEOUT or lower INGEST_FLUSH_ROWS", "UPL005"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps driver error text (case-insensitive) to messages.
var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{"Unable to connect to database", "Check DB_HOST and DB_PORT", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Re-run; ingestion is idempotent", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Re-run; ingestion is idempotent", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Re-run; ingestion is idempotent", "DB007"}},
	{"no such file", UserMessage{"File could not be opened", "Check the path and permissions", "FILE001"}},
	{"permission denied", UserMessage{"File could not be opened", "Check the path and permissions", "FILE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.target) {
			return sc.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsKnown reports whether err maps to a specific code rather than ERR000.
func IsKnown(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// LineError is a line-level rejection with its source line number.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
