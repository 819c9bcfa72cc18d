package entity

import (
	"testing"
	"time"
)

func TestRestoreCodecs(t *testing.T) {
	cases := []struct {
		name  string
		field Field
		in    any
		want  any
	}{
		{"int from string", F(FieldInt), "5", 5},
		{"int from float", F(FieldInt), 5.0, 5},
		{"int unreadable", F(FieldInt), "five", nil},
		{"double", F(FieldDouble), "2.5", 2.5},
		{"bool token off", F(FieldBool), "off", false},
		{"bool token upper", F(FieldBool), "FALSE", false},
		{"bool other string", F(FieldBool), "yes", true},
		{"bool number", F(FieldBool), 0, false},
		{"default passes through", F(FieldDefault), []any{"a"}, []any{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.field.codec().restore(tc.field, tc.in)
			if !valuesEqual(got, tc.want) {
				t.Fatalf("restore(%#v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDateCodecs(t *testing.T) {
	stamp := Field{Type: FieldDate, Format: TimestampFormat}
	restored := stamp.codec().restore(stamp, "1700000000")
	want := time.Unix(1700000000, 0).UTC()
	if got, ok := restored.(time.Time); !ok || !got.Equal(want) {
		t.Fatalf("expected %v, got %#v", want, restored)
	}
	if stored := stamp.codec().store(stamp, want); stored != int64(1700000000) {
		t.Fatalf("expected unix seconds, got %#v", stored)
	}

	day := Field{Type: FieldDate, Format: time.DateOnly}
	parsed := day.codec().restore(day, "2024-03-09")
	if got := day.codec().store(day, parsed); got != "2024-03-09" {
		t.Fatalf("expected layout round trip, got %#v", got)
	}
	if got := day.codec().restore(day, "09/03/2024"); got != nil {
		t.Fatalf("expected nil for unparseable date, got %#v", got)
	}

	plain := F(FieldDate)
	if got := plain.codec().restore(plain, "2024-03-09T10:00:00Z"); got == nil {
		t.Fatalf("expected RFC3339 date to parse without a format")
	}
}

func TestStoreCodecs(t *testing.T) {
	if got := F(FieldBool).codec().store(F(FieldBool), true); got != "1" {
		t.Fatalf("expected \"1\", got %#v", got)
	}
	if got := F(FieldInt).codec().store(F(FieldInt), 12); got != "12" {
		t.Fatalf("expected \"12\", got %#v", got)
	}
	if got := F(FieldDouble).codec().store(F(FieldDouble), 0.25); got != "0.25" {
		t.Fatalf("expected \"0.25\", got %#v", got)
	}
	if got := F(FieldDefault).codec().store(F(FieldDefault), nil); got != nil {
		t.Fatalf("expected nil to stay nil, got %#v", got)
	}
}

func TestParseFieldType(t *testing.T) {
	cases := map[string]FieldType{
		"int":     FieldInt,
		"Integer": FieldInt,
		"boolean": FieldBool,
		"float":   FieldDouble,
		" date ":  FieldDate,
		"string":  FieldDefault,
	}
	for name, want := range cases {
		if got := ParseFieldType(name); got != want {
			t.Fatalf("ParseFieldType(%q) = %s, want %s", name, got, want)
		}
	}
	if got := (Field{Type: FieldDate, Format: TimestampFormat}).String(); got != "date(timestamp)" {
		t.Fatalf("unexpected field string %q", got)
	}
}
