package formstate

import (
	"encoding/json"
	"testing"
)

func TestRecordJSONShape(t *testing.T) {
	record := NewRecord()
	record.Set("qty", String("3"))
	record.Set("agree", Number(1))
	record.Set("tags", Strings([]string{"a", "c"}))
	record.Set("gone", Absent())
	record.SetTimestamp(1700000000000)

	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"_fs_ts":1700000000000,"agree":1,"qty":"3","tags":"[\"a\",\"c\"]"}`
	if string(raw) != want {
		t.Fatalf("expected %s, got %s", want, raw)
	}

	parsed, err := ParseRecord(string(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts, ok := parsed.Timestamp(); !ok || ts != 1700000000000 {
		t.Fatalf("unexpected timestamp %d ok=%v", ts, ok)
	}
	if parsed.Has(TimestampKey) {
		t.Fatalf("timestamp must not be a field entry")
	}
	if got := parsed.Get("tags").Text(); got != `["a","c"]` {
		t.Fatalf("expected array text, got %q", got)
	}
	if got := parsed.Get("agree"); !got.Truthy() {
		t.Fatalf("expected truthy agree, got %#v", got)
	}
}

func TestParseRecordMalformedIsEmpty(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", "[1,2]"} {
		record, err := ParseRecord(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if record.Len() != 0 {
			t.Fatalf("expected empty record for %q, got %d entries", raw, record.Len())
		}
	}
}

func TestRecordFromMapDropsNestedValues(t *testing.T) {
	record, err := RecordFromMap(map[string]any{
		"qty":    "3",
		"nested": map[string]any{"a": 1},
		"_fs_ts": 12.0,
	})
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if record.Len() != 1 || record.Get("qty").Text() != "3" {
		t.Fatalf("unexpected record %+v", record.Map())
	}
	if ts, ok := record.Timestamp(); !ok || ts != 12 {
		t.Fatalf("unexpected timestamp %d ok=%v", ts, ok)
	}
}

func TestValueTruthyAndPositive(t *testing.T) {
	cases := []struct {
		value    Value
		truthy   bool
		positive bool
	}{
		{String(""), false, false},
		{String("0"), false, false},
		{String("1"), true, true},
		{String("on"), true, false},
		{Number(0), false, false},
		{Number(2), true, true},
		{Bool(true), true, true},
		{Absent(), false, false},
	}
	for _, tc := range cases {
		if got := tc.value.Truthy(); got != tc.truthy {
			t.Fatalf("%#v Truthy = %v, want %v", tc.value, got, tc.truthy)
		}
		if got := tc.value.Positive(); got != tc.positive {
			t.Fatalf("%#v Positive = %v, want %v", tc.value, got, tc.positive)
		}
	}
}
