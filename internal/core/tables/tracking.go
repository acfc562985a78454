package tables

import "github.com/fgbm/exchange-log-parser/internal/core"

func init() {
	registerMessageTracking()
}

func registerMessageTracking() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Family: core.FamilyTracking,
			Name:   "message_tracking_logs",
			Label:  "Message Tracking",
		},
		Columns: []core.ColumnSpec{
			{Name: "date_time", Type: core.ColTimestamp, Key: true, NotNull: true},
			{Name: "client_ip", Type: core.ColText},
			{Name: "client_hostname", Type: core.ColText},
			{Name: "server_ip", Type: core.ColText},
			{Name: "server_hostname", Type: core.ColText},
			{Name: "source_context", Type: core.ColText},
			{Name: "connector_id", Type: core.ColText},
			{Name: "source", Type: core.ColText},
			{Name: "event_id", Type: core.ColText, Key: true, NotNull: true, Size: core.MaxKeyLen},
			{Name: "internal_message_id", Type: core.ColText, Key: true, NotNull: true, Size: core.MaxKeyLen},
			{Name: "message_id", Type: core.ColText},
			{Name: "network_message_id", Type: core.ColText},
			{Name: "recipient_address", Type: core.ColText, Key: true, NotNull: true, Size: core.MaxAddressLen},
			{Name: "recipient_status", Type: core.ColText},
			{Name: "total_bytes", Type: core.ColBigInt},
			{Name: "recipient_count", Type: core.ColBigInt},
			{Name: "related_recipient_address", Type: core.ColText},
			{Name: "reference", Type: core.ColText},
			{Name: "message_subject", Type: core.ColText},
			{Name: "sender_address", Type: core.ColText},
			{Name: "return_path", Type: core.ColText},
			{Name: "message_info", Type: core.ColText},
			{Name: "directionality", Type: core.ColText},
			{Name: "tenant_id", Type: core.ColText},
			{Name: "original_client_ip", Type: core.ColText},
			{Name: "original_server_ip", Type: core.ColText},
			{Name: "custom_data", Type: core.ColText},
			{Name: "transport_traffic_type", Type: core.ColText},
			{Name: "log_id", Type: core.ColText},
			{Name: "schema_version", Type: core.ColText},
		},
		Row: func(rec core.Record) []any {
			r := rec.(core.TrackingRecord)
			return []any{
				r.DateTime,
				nullText(r.ClientIP),
				nullText(r.ClientHostname),
				nullText(r.ServerIP),
				nullText(r.ServerHostname),
				nullText(r.SourceContext),
				nullText(r.ConnectorID),
				nullText(r.Source),
				r.EventID,
				r.InternalMessageID,
				nullText(r.MessageID),
				nullText(r.NetworkMessageID),
				r.RecipientAddress,
				nullText(r.RecipientStatus),
				nullInt(r.TotalBytes),
				nullInt(r.RecipientCount),
				nullText(r.RelatedRecipientAddress),
				nullText(r.Reference),
				nullText(r.MessageSubject),
				nullText(r.SenderAddress),
				nullText(r.ReturnPath),
				nullText(r.MessageInfo),
				nullText(r.Directionality),
				nullText(r.TenantID),
				nullText(r.OriginalClientIP),
				nullText(r.OriginalServerIP),
				nullText(r.CustomData),
				nullText(r.TransportTrafficType),
				nullText(r.LogID),
				nullText(r.SchemaVersion),
			}
		},
	})
}
