package database

import (
	"errors"
	"testing"
	"time"
)

func TestInClause(t *testing.T) {
	tests := []struct {
		ids  []string
		want string
	}{
		{[]string{"a"}, "?"},
		{[]string{"a", "b", "c"}, "?,?,?"},
	}
	for _, tt := range tests {
		got, args := inClause(tt.ids)
		if got != tt.want {
			t.Errorf("inClause(%v) = %q, want %q", tt.ids, got, tt.want)
		}
		if len(args) != len(tt.ids) {
			t.Errorf("inClause(%v) args = %d, want %d", tt.ids, len(args), len(tt.ids))
		}
	}
}

func TestMillisRoundTrip(t *testing.T) {
	if toMillis(time.Time{}) != 0 {
		t.Error("zero time should store as 0")
	}
	if !fromMillis(0).IsZero() {
		t.Error("0 should load as zero time")
	}

	ts := time.Date(2024, 3, 1, 12, 30, 15, 123_456_789, time.FixedZone("X", 3600))
	got := fromMillis(toMillis(ts))
	if !got.Equal(ts.Truncate(time.Millisecond)) {
		t.Errorf("round trip = %v, want %v", got, ts.Truncate(time.Millisecond))
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

func TestRelationTable(t *testing.T) {
	tests := []struct {
		kind    RelationKind
		table   string
		column  string
		wantErr bool
	}{
		{RelationFolders, "item_folders", "folder_id", false},
		{RelationTags, "item_tags", "tag", false},
		{"bogus", "", "", true},
	}
	for _, tt := range tests {
		table, column, err := relationTable(tt.kind)
		if (err != nil) != tt.wantErr {
			t.Errorf("relationTable(%q) err = %v", tt.kind, err)
		}
		if table != tt.table || column != tt.column {
			t.Errorf("relationTable(%q) = %s.%s", tt.kind, table, column)
		}
	}
}

func TestNullable(t *testing.T) {
	var nilInt *int
	if nullable(nilInt) != nil {
		t.Error("nil pointer should become nil")
	}
	n := 7
	if nullable(&n) != 7 {
		t.Errorf("nullable(&7) = %v", nullable(&n))
	}
}

func TestRowError(t *testing.T) {
	base := errors.New("constraint failed")
	err := RowError{ID: "X1", Err: base}
	if !errors.Is(err, base) {
		t.Error("RowError should unwrap to its cause")
	}
	if err.Error() != "X1: constraint failed" {
		t.Errorf("Error() = %q", err.Error())
	}
}
