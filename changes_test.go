package formstate

import "testing"

func TestTextChanged(t *testing.T) {
	cases := []struct {
		before, after string
		want          bool
	}{
		{"", "x", true},
		{"x", "y", true},
		{"x", "x", false},
		{"", "", false},
		{"x", "", true},
	}
	for _, tc := range cases {
		if got := textChanged(tc.before, tc.after); got != tc.want {
			t.Fatalf("textChanged(%q, %q) = %v, want %v", tc.before, tc.after, got, tc.want)
		}
	}
}

func TestSelectionChangedComparesSets(t *testing.T) {
	if selectionChanged([]string{"a", "c"}, []string{"c", "a"}) {
		t.Fatalf("expected order to be ignored")
	}
	if !selectionChanged([]string{"a"}, []string{"a", "c"}) {
		t.Fatalf("expected added option to count")
	}
	if selectionChanged(nil, []string{}) {
		t.Fatalf("expected empty selections to match")
	}
}

func TestChangeSetRestoration(t *testing.T) {
	record := NewRecord()
	changes := newChangeSet()
	if got := changes.restoration(record); got.Changed || got.Timestamp != 0 {
		t.Fatalf("expected no restoration, got %+v", got)
	}

	changes.mark(Field{ID: "f1", Name: "qty"})
	changes.mark(Field{ID: "f1", Name: "qty"})
	if len(changes.Fields()) != 1 {
		t.Fatalf("expected marks to dedupe, got %d", len(changes.Fields()))
	}
	if got := changes.restoration(record); !got.Changed || got.Timestamp != FallbackTimestamp {
		t.Fatalf("expected fallback timestamp, got %+v", got)
	}

	record.SetTimestamp(1700000000000)
	if got := changes.restoration(record); got.Timestamp != 1700000000000 {
		t.Fatalf("expected stored timestamp, got %+v", got)
	}
}
