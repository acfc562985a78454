package core

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	mailFromRe      = regexp.MustCompile(`MAIL FROM:<([^>]+)>`)
	rcptToRe        = regexp.MustCompile(`RCPT TO:<([^>]+)>`)
	angleIDRe       = regexp.MustCompile(`<([^>]+)>`)
	sizeRe          = regexp.MustCompile(`SIZE=(\d+)`)
	proxySessionRe  = regexp.MustCompile(`session id (\w+)`)
	recordIDRe      = regexp.MustCompile(`RecordId (\d+)`)
	internetMsgIDRe = regexp.MustCompile(`InternetMessageId <([^>]+)>`)
)

// Context markers on send log lines.
const (
	proxyMarker      = "Proxying inbound session"
	sendRecordMarker = "sending message with RecordId"
)

func firstMatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// envelope holds addresses and ids found in the data column of a protocol line.
type envelope struct {
	Sender    string
	Recipient string
	MessageID string
	Size      *int64
}

// extractEnvelope pulls SMTP envelope values out of a data column.
// A line carries at most one of MAIL FROM or RCPT TO; the bare <id> match
// only applies when neither is present.
func extractEnvelope(data string) envelope {
	var e envelope
	if data == "" {
		return e
	}
	e.Sender = firstMatch(mailFromRe, data)
	e.Recipient = firstMatch(rcptToRe, data)
	if e.Sender == "" && e.Recipient == "" {
		e.MessageID = firstMatch(angleIDRe, data)
	}
	if s := firstMatch(sizeRe, data); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			e.Size = &n
		}
	}
	return e
}

// sendContext holds values found in the context column of a send line.
type sendContext struct {
	ProxySessionID string
	RecordID       string
	MessageID      string
}

func extractSendContext(ctx string) sendContext {
	var c sendContext
	if strings.Contains(ctx, proxyMarker) {
		c.ProxySessionID = firstMatch(proxySessionRe, ctx)
	}
	if strings.Contains(ctx, sendRecordMarker) {
		c.RecordID = firstMatch(recordIDRe, ctx)
		c.MessageID = firstMatch(internetMsgIDRe, ctx)
	}
	return c
}

// splitList splits a ';' separated list. Separators inside double quotes
// are literal. Entries are trimmed; empty entries are kept so positions
// line up with parallel lists.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var (
		out     []string
		b       strings.Builder
		inQuote bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ';' && !inQuote:
			out = append(out, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(out, strings.TrimSpace(b.String()))
}
