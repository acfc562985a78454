package tables

import "github.com/fgbm/exchange-log-parser/internal/core"

func init() {
	registerSMTPReceive()
}

// sessionColumns are shared by the receive and send tables.
var sessionColumns = []core.ColumnSpec{
	{Name: "date_time", Type: core.ColTimestamp, Key: true, NotNull: true},
	{Name: "connector_id", Type: core.ColText},
	{Name: "session_id", Type: core.ColText, Key: true, NotNull: true, Size: core.MaxKeyLen},
	{Name: "sequence_number", Type: core.ColInt, Key: true, NotNull: true},
	{Name: "local_endpoint", Type: core.ColText},
	{Name: "remote_endpoint", Type: core.ColText},
	{Name: "event", Type: core.ColText},
	{Name: "data", Type: core.ColText},
	{Name: "context", Type: core.ColText},
}

func sessionValues(s core.SessionFields) []any {
	return []any{
		s.DateTime,
		nullText(s.ConnectorID),
		s.SessionID,
		s.SequenceNumber,
		nullText(s.LocalEndpoint),
		nullText(s.RemoteEndpoint),
		nullText(s.Event),
		nullText(s.Data),
		nullText(s.Context),
	}
}

func withColumns(base []core.ColumnSpec, extra ...core.ColumnSpec) []core.ColumnSpec {
	out := make([]core.ColumnSpec, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func registerSMTPReceive() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Family: core.FamilyReceive,
			Name:   "smtp_receive_logs",
			Label:  "SMTP Receive",
		},
		Columns: withColumns(sessionColumns,
			core.ColumnSpec{Name: "sender", Type: core.ColText},
			core.ColumnSpec{Name: "recipient", Type: core.ColText},
			core.ColumnSpec{Name: "message_id", Type: core.ColText},
			core.ColumnSpec{Name: "size", Type: core.ColBigInt},
		),
		Row: func(rec core.Record) []any {
			r := rec.(core.ReceiveRecord)
			return append(sessionValues(r.SessionFields),
				nullText(r.Sender),
				nullText(r.Recipient),
				nullText(r.MessageID),
				nullInt(r.Size),
			)
		},
	})
}
