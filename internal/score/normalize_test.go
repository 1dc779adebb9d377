package score

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
		ok   bool
	}{
		{"nil", nil, 0, false},
		{"empty string", "", 0, false},
		{"blank string", "   ", 0, false},
		{"float", 31.5, 31.5, true},
		{"int", 7, 7, true},
		{"int64", int64(-3), -3, true},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"clock", "2:05", 125, true},
		{"clock single second digit", "0:7", 7, true},
		{"clock long minutes", "120:00", 7200, true},
		{"numeric string", "42", 42, true},
		{"decorated string", "42 pts", 42, true},
		{"negative string", "-3", -3, true},
		{"decimal string", "12.5s", 12.5, true},
		{"inner minus dropped", "12-3", 123, true},
		{"no digits", "abc", 0, false},
		{"two points", "1.2.3", 0, false},
		{"only minus", "-", 0, false},
		{"json number", json.Number("17"), 17, true},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			if ok != tt.ok {
				t.Fatalf("Normalize(%#v) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("Normalize(%#v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeClockRoundTrip(t *testing.T) {
	for m := 0; m < 15; m++ {
		for s := 0; s < 60; s++ {
			raw := strconv.Itoa(m) + ":" + pad2(s)
			got, ok := Normalize(raw)
			if !ok || got != float64(m*60+s) {
				t.Fatalf("Normalize(%q) = %v, %v; want %d", raw, got, ok, m*60+s)
			}
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(125); got != "02:05" {
		t.Fatalf("expected 02:05, got %s", got)
	}
	if got := FormatClock(-1); got != "00:00" {
		t.Fatalf("expected 00:00, got %s", got)
	}
}
