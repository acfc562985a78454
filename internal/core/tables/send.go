package tables

import "github.com/fgbm/exchange-log-parser/internal/core"

func init() {
	registerSMTPSend()
}

func registerSMTPSend() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Family: core.FamilySend,
			Name:   "smtp_send_logs",
			Label:  "SMTP Send",
		},
		Columns: withColumns(sessionColumns,
			core.ColumnSpec{Name: "proxy_session_id", Type: core.ColText},
			core.ColumnSpec{Name: "sender", Type: core.ColText},
			core.ColumnSpec{Name: "recipient", Type: core.ColText},
			core.ColumnSpec{Name: "message_id", Type: core.ColText},
			core.ColumnSpec{Name: "record_id", Type: core.ColText},
		),
		Row: func(rec core.Record) []any {
			r := rec.(core.SendRecord)
			return append(sessionValues(r.SessionFields),
				nullText(r.ProxySessionID),
				nullText(r.Sender),
				nullText(r.Recipient),
				nullText(r.MessageID),
				nullText(r.RecordID),
			)
		},
	})
}
