package tables

import (
	"testing"
	"time"

	"github.com/fgbm/exchange-log-parser/internal/core"
	"github.com/google/go-cmp/cmp"
)

func sampleRecord(f core.Family) core.Record {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s := core.SessionFields{DateTime: ts, SessionID: "S", SequenceNumber: 1}
	switch f {
	case core.FamilyReceive:
		return core.ReceiveRecord{SessionFields: s}
	case core.FamilySend:
		return core.SendRecord{SessionFields: s}
	default:
		return core.TrackingRecord{DateTime: ts, InternalMessageID: "1", EventID: "DELIVER", RecipientAddress: "a@x"}
	}
}

func TestRegisteredTables(t *testing.T) {
	if got := core.TableCount(); got != len(core.Families) {
		t.Fatalf("TableCount = %d, want %d", got, len(core.Families))
	}

	wantKeys := map[core.Family][]string{
		core.FamilyReceive:  {"date_time", "session_id", "sequence_number"},
		core.FamilySend:     {"date_time", "session_id", "sequence_number"},
		core.FamilyTracking: {"date_time", "event_id", "internal_message_id", "recipient_address"},
	}

	for _, f := range core.Families {
		t.Run(f.String(), func(t *testing.T) {
			def := core.MustGet(f)
			if diff := cmp.Diff(wantKeys[f], def.KeyColumns()); diff != "" {
				t.Errorf("key columns (-want +got):\n%s", diff)
			}
			row := def.Row(sampleRecord(f))
			if len(row) != len(def.Columns) {
				t.Fatalf("Row returned %d values for %d columns", len(row), len(def.Columns))
			}
			for i, c := range def.Columns {
				if c.Key && row[i] == nil {
					t.Errorf("key column %s is nil", c.Name)
				}
			}
		})
	}
}

func TestNullText(t *testing.T) {
	if nullText("") != nil {
		t.Error("empty string should be nil")
	}
	if nullText("x") != "x" {
		t.Error("non-empty string should pass through")
	}
	n := int64(5)
	if nullInt(&n) != int64(5) || nullInt(nil) != nil {
		t.Error("nullInt mismatch")
	}
}
