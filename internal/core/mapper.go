package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout of the date-time field.
const TimestampLayout = time.RFC3339Nano

// Character limits of text key columns. A unique index key on SQL Server is
// capped at 1700 bytes, so keys are bounded and every backend rejects the
// same lines.
const (
	MaxKeyLen     = 255
	MaxAddressLen = 320 // 64 local part + '@' + 255 domain
)

// keyLen counts UTF-16 code units, the unit NVARCHAR limits are expressed in.
func keyLen(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func checkKey(name, v string, limit int) error {
	if n := keyLen(v); n > limit {
		return fmt.Errorf("%w: %s has %d characters, limit %d", ErrKeyTooLong, name, n, limit)
	}
	return nil
}

var requiredFields = map[Family][]string{
	FamilyReceive:  {"date-time", "session-id", "sequence-number"},
	FamilySend:     {"date-time", "session-id", "sequence-number"},
	FamilyTracking: {"date-time", "internal-message-id", "event-id", "recipient-address"},
}

// RequiredFields returns the header fields a family's #Fields: must declare.
func RequiredFields(f Family) []string {
	return requiredFields[f]
}

// Mapper converts a decoded line into zero or more records.
// An error rejects the line only.
type Mapper interface {
	Map(row FieldRow) ([]Record, error)
}

// MapperFor returns the mapper of a family.
func MapperFor(f Family) Mapper {
	switch f {
	case FamilyReceive:
		return receiveMapper{}
	case FamilySend:
		return sendMapper{}
	case FamilyTracking:
		return trackingMapper{}
	}
	panic(fmt.Sprintf("no mapper for %s", f))
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time %q: %w", s, err)
	}
	return t, nil
}

// parseOptionalInt returns nil for an empty value.
func parseOptionalInt(name, s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return &n, nil
}

func sessionFields(row FieldRow) (SessionFields, error) {
	ts, err := parseTimestamp(row.Get("date-time"))
	if err != nil {
		return SessionFields{}, err
	}

	if err := checkKey("session-id", row.Get("session-id"), MaxKeyLen); err != nil {
		return SessionFields{}, err
	}

	raw := strings.TrimSpace(row.Get("sequence-number"))
	seq, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return SessionFields{}, fmt.Errorf("invalid sequence-number %q: %w", raw, err)
	}

	return SessionFields{
		DateTime:       ts,
		ConnectorID:    row.Get("connector-id"),
		SessionID:      row.Get("session-id"),
		SequenceNumber: int32(seq),
		LocalEndpoint:  row.Get("local-endpoint"),
		RemoteEndpoint: row.Get("remote-endpoint"),
		Event:          row.Get("event"),
		Data:           row.Get("data"),
		Context:        row.Get("context"),
	}, nil
}

type receiveMapper struct{}

func (receiveMapper) Map(row FieldRow) ([]Record, error) {
	s, err := sessionFields(row)
	if err != nil {
		return nil, err
	}
	env := extractEnvelope(s.Data)
	return []Record{ReceiveRecord{
		SessionFields: s,
		Sender:        env.Sender,
		Recipient:     env.Recipient,
		MessageID:     env.MessageID,
		Size:          env.Size,
	}}, nil
}

type sendMapper struct{}

func (sendMapper) Map(row FieldRow) ([]Record, error) {
	s, err := sessionFields(row)
	if err != nil {
		return nil, err
	}
	env := extractEnvelope(s.Data)
	c := extractSendContext(s.Context)
	return []Record{SendRecord{
		SessionFields:  s,
		ProxySessionID: c.ProxySessionID,
		Sender:         env.Sender,
		Recipient:      env.Recipient,
		MessageID:      c.MessageID,
		RecordID:       c.RecordID,
	}}, nil
}

type trackingMapper struct{}

// Map emits one record per distinct recipient. When recipient-status lists
// exactly one entry per recipient, each record gets its own status.
func (trackingMapper) Map(row FieldRow) ([]Record, error) {
	ts, err := parseTimestamp(row.Get("date-time"))
	if err != nil {
		return nil, err
	}
	totalBytes, err := parseOptionalInt("total-bytes", row.Get("total-bytes"))
	if err != nil {
		return nil, err
	}
	recipientCount, err := parseOptionalInt("recipient-count", row.Get("recipient-count"))
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"event-id", "internal-message-id"} {
		if err := checkKey(name, row.Get(name), MaxKeyLen); err != nil {
			return nil, err
		}
	}

	base := TrackingRecord{
		DateTime:                ts,
		ClientIP:                row.Get("client-ip"),
		ClientHostname:          row.Get("client-hostname"),
		ServerIP:                row.Get("server-ip"),
		ServerHostname:          row.Get("server-hostname"),
		SourceContext:           row.Get("source-context"),
		ConnectorID:             row.Get("connector-id"),
		Source:                  row.Get("source"),
		EventID:                 row.Get("event-id"),
		InternalMessageID:       row.Get("internal-message-id"),
		MessageID:               row.Get("message-id"),
		NetworkMessageID:        row.Get("network-message-id"),
		RecipientStatus:         row.Get("recipient-status"),
		TotalBytes:              totalBytes,
		RecipientCount:          recipientCount,
		RelatedRecipientAddress: row.Get("related-recipient-address"),
		Reference:               row.Get("reference"),
		MessageSubject:          row.Get("message-subject"),
		SenderAddress:           row.Get("sender-address"),
		ReturnPath:              row.Get("return-path"),
		MessageInfo:             row.Get("message-info"),
		Directionality:          row.Get("directionality"),
		TenantID:                row.Get("tenant-id"),
		OriginalClientIP:        row.Get("original-client-ip"),
		OriginalServerIP:        row.Get("original-server-ip"),
		CustomData:              row.Get("custom-data"),
		TransportTrafficType:    row.Get("transport-traffic-type"),
		LogID:                   row.Get("log-id"),
		SchemaVersion:           row.Get("schema-version"),
	}

	addrs := splitList(row.Get("recipient-address"))
	statuses := splitList(base.RecipientStatus)
	aligned := len(addrs) > 1 && len(statuses) == len(addrs)

	records := make([]Record, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	for i, addr := range addrs {
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		if err := checkKey("recipient-address", addr, MaxAddressLen); err != nil {
			return nil, err
		}
		seen[addr] = struct{}{}

		rec := base
		rec.RecipientAddress = addr
		if aligned {
			rec.RecipientStatus = statuses[i]
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoRecipients
	}
	return records, nil
}
