package entity

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestKeyOfNormalizesNumericForms(t *testing.T) {
	cases := []struct {
		name string
		id   any
		want string
	}{
		{"int", 7, "7"},
		{"int64", int64(7), "7"},
		{"uint8", uint8(7), "7"},
		{"float", float64(7), "7"},
		{"fraction", 7.5, "7.5"},
		{"string", "7", "7"},
		{"json number", json.Number("7"), "7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := KeyOf(tc.id)
			if !ok || got != tc.want {
				t.Fatalf("KeyOf(%#v) = %q, %v; want %q", tc.id, got, ok, tc.want)
			}
		})
	}
	if _, ok := KeyOf(nil); ok {
		t.Fatalf("expected nil id to have no key")
	}
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, 0, 0.0, "", math.NaN(), json.Number("0"), []any(nil), map[string]any(nil)}
	for _, value := range falsy {
		if truthy(value) {
			t.Fatalf("expected %#v to be falsy", value)
		}
	}
	truthyValues := []any{true, 1, -1, 0.5, "0", "false", []any{}, map[string]any{}, struct{}{}}
	for _, value := range truthyValues {
		if !truthy(value) {
			t.Fatalf("expected %#v to be truthy", value)
		}
	}
}

func TestToIntParsesLeadingInteger(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{"5", 5, true},
		{" 12px", 12, true},
		{"-3.9", -3, true},
		{4.9, 4, true},
		{json.Number("42"), 42, true},
		{"abc", 0, false},
		{nil, 0, false},
		{math.Inf(1), 0, false},
		{time.Unix(60, 0), 60, true},
	}
	for _, tc := range cases {
		got, ok := toInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("toInt(%#v) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestToFloatParsesLeadingNumber(t *testing.T) {
	if f, ok := toFloat("3.25kg"); !ok || f != 3.25 {
		t.Fatalf("expected 3.25, got %v %v", f, ok)
	}
	if f, ok := toFloat(".5"); !ok || f != 0.5 {
		t.Fatalf("expected 0.5, got %v %v", f, ok)
	}
	if _, ok := toFloat("n/a"); ok {
		t.Fatalf("expected no float reading")
	}
}

func TestValuesEqualComparesTimesByInstant(t *testing.T) {
	utc := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("X", 3600))
	if !valuesEqual(utc, local) {
		t.Fatalf("expected equal instants to compare equal")
	}
	if valuesEqual(utc, "2024-01-01") {
		t.Fatalf("expected time and string to differ")
	}
	if !valuesEqual(map[string]any{"a": 1}, map[string]any{"a": 1}) {
		t.Fatalf("expected deep equality for maps")
	}
}
