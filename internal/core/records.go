package core

import (
	"strconv"
	"strings"
	"time"
)

// keySep separates composite key parts. It cannot appear in decoded log text.
const keySep = "\x1f"

// KeyTime formats a timestamp for key comparison. Instants that are equal
// produce equal strings regardless of the offset they were written with.
func KeyTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func joinKey(parts ...string) string {
	return strings.Join(parts, keySep)
}

// SessionFields are the columns shared by receive and send protocol logs.
type SessionFields struct {
	DateTime       time.Time
	ConnectorID    string
	SessionID      string
	SequenceNumber int32
	LocalEndpoint  string
	RemoteEndpoint string
	Event          string
	Data           string
	Context        string
}

// Key returns (date_time, session_id, sequence_number).
func (s SessionFields) Key() string {
	return joinKey(KeyTime(s.DateTime), s.SessionID, strconv.FormatInt(int64(s.SequenceNumber), 10))
}

// ReceiveRecord is one line of an SMTP receive protocol log.
type ReceiveRecord struct {
	SessionFields
	Sender    string
	Recipient string
	MessageID string
	Size      *int64
}

func (ReceiveRecord) Family() Family { return FamilyReceive }

// SendRecord is one line of an SMTP send protocol log.
type SendRecord struct {
	SessionFields
	ProxySessionID string
	Sender         string
	Recipient      string
	MessageID      string
	RecordID       string
}

func (SendRecord) Family() Family { return FamilySend }

// TrackingRecord is one (line, recipient) pair of a message tracking log.
type TrackingRecord struct {
	DateTime                time.Time
	ClientIP                string
	ClientHostname          string
	ServerIP                string
	ServerHostname          string
	SourceContext           string
	ConnectorID             string
	Source                  string
	EventID                 string
	InternalMessageID       string
	MessageID               string
	NetworkMessageID        string
	RecipientAddress        string
	RecipientStatus         string
	TotalBytes              *int64
	RecipientCount          *int64
	RelatedRecipientAddress string
	Reference               string
	MessageSubject          string
	SenderAddress           string
	ReturnPath              string
	MessageInfo             string
	Directionality          string
	TenantID                string
	OriginalClientIP        string
	OriginalServerIP        string
	CustomData              string
	TransportTrafficType    string
	LogID                   string
	SchemaVersion           string
}

func (TrackingRecord) Family() Family { return FamilyTracking }

// Key returns (date_time, internal_message_id, recipient_address, event_id).
func (r TrackingRecord) Key() string {
	return joinKey(KeyTime(r.DateTime), r.InternalMessageID, r.RecipientAddress, r.EventID)
}
