// Package core provides the ingestion pipeline for mail server transport logs.
//
// This package holds all domain logic independent of any database driver or
// transport. Storage backends implement [Store]; the command wires them in.
//
// # Architecture
//
// Each input path is processed end to end by one worker:
//
//	OpenLog -> ReadHeader -> Decoder.Next -> Mapper.Map -> BatchWriter -> Store.WriteBatch
//
//   - Streaming: [OpenLog] decompresses .gz and .zst inputs and decodes the
//     configured code page to UTF-8, honouring a byte order mark.
//   - Header: [ReadHeader] consumes the leading '#' directives and returns a
//     [Schema] with the family from #Log-type: and the field order from #Fields:.
//   - Decoding: [Decoder] yields one [FieldRow] per data line. A malformed line
//     yields a [LineError] and decoding continues.
//   - Mapping: [MapperFor] returns the family mapper. Tracking lines fan out to
//     one record per recipient.
//   - Scheduling: [Scheduler] bounds the files in flight with a [Limiter] and
//     reports one [FileResult] per path to its sinks and the run [Tally].
//
// # Table Registry
//
// Family tables are registered at init time by package tables using
// [Register]. Each [TableDefinition] lists the stored columns, which of them
// form the unique key, and how a [Record] becomes a row:
//
//	core.Register(TableDefinition{
//	    Info:    TableInfo{Family: FamilyReceive, Name: "smtp_receive_logs"},
//	    Columns: []ColumnSpec{{Name: "date_time", Type: ColTimestamp, Key: true}, ...},
//	    Row:     func(rec Record) []any { ... },
//	})
//
// # Error Handling
//
// File rejections carry a stable code from [MapError]:
//
//   - LOG001-LOG003: header problems (log type, fields directive)
//   - FILE001-FILE002: open and decompression failures
//   - DB004-DB007: database errors (connections, timeouts, deadlocks)
//   - UPL004-UPL005: cancellation and write deadline
package core
