package ingest

import (
	"testing"
	"time"

	"github.com/tinytelemetry/netpulse/internal/timestamp"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"55.2", 55.2},
		{" 7 ", 7},
		{"12,5", 12.5},
		{"1.234,5", 1234.5},
		{"1,234.5", 1234.5},
		{"-3.5", -3.5},
		{"55.2%", 55.2},
		{"12ms", 12},
		{"1e3", 1000},
		{"", 0},
		{"abc", 0},
		{"NaN", 0},
		{"Infinity", 0},
		{"1e400", 0},
	}

	for _, tt := range tests {
		if got := ParseNumber(tt.in); got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseInteger_Truncates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"87.9", 87},
		{"-2.7", -2},
		{"9,8", 9},
		{"100", 100},
		{"x", 0},
	}
	for _, tt := range tests {
		if got := ParseInteger(tt.in); got != tt.want {
			t.Errorf("ParseInteger(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCoerce_Fields(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	c := NewCoercer(timestamp.NewParserIn(loc))

	got := c.Coerce(NormalizedRow{
		FieldTimestamp:     "2024-01-10 14:32:05",
		FieldHostname:      " desk-01 ",
		FieldCPU:           "55,2",
		FieldLoadScore:     "3.9",
		FieldHealthScore:   "87.5",
		FieldDownload:      "",
		FieldCity:          "Recife",
		HopIPField(1):      "10.0.0.1",
		HopLatencyField(1): "12.3",
	})

	if !got.TimestampValid {
		t.Fatal("timestamp should be valid")
	}
	if !got.Sample.Timestamp.Equal(time.Date(2024, 1, 10, 14, 32, 5, 0, loc)) {
		t.Errorf("timestamp = %v", got.Sample.Timestamp)
	}
	s := got.Sample
	if s.Hostname != "desk-01" {
		t.Errorf("hostname = %q, want desk-01", s.Hostname)
	}
	if s.CPUPct != 55.2 {
		t.Errorf("cpu = %v, want 55.2", s.CPUPct)
	}
	if s.LoadScore != 3 || s.HealthScore != 87 {
		t.Errorf("integer fields = (%d, %d), want (3, 87)", s.LoadScore, s.HealthScore)
	}
	if s.DownloadMbps != 0 {
		t.Errorf("download = %v, want 0", s.DownloadMbps)
	}
	if s.City != "Recife" {
		t.Errorf("city = %q", s.City)
	}
	if s.Hops[0].Index != 1 || s.Hops[0].IP != "10.0.0.1" || s.Hops[0].LatencyMs != 12.3 {
		t.Errorf("hop 1 = %+v", s.Hops[0])
	}
	if last := s.Hops[len(s.Hops)-1]; last.Index != 30 || last.IP != "" || last.LatencyMs != 0 {
		t.Errorf("hop 30 = %+v, want empty slot with index 30", last)
	}
}

func TestCoerce_ScoreRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		load, health         string
		wantLoad, wantHealth int
	}{
		{"-2", "-5", 0, 0},
		{"4", "140", 4, 100},
		{"0", "100", 0, 100},
		{"", "", 0, 0},
	}
	c := NewCoercer(nil)
	for _, tt := range tests {
		s := c.Coerce(NormalizedRow{FieldLoadScore: tt.load, FieldHealthScore: tt.health}).Sample
		if s.LoadScore != tt.wantLoad || s.HealthScore != tt.wantHealth {
			t.Errorf("Coerce(load %q, health %q) = (%d, %d), want (%d, %d)",
				tt.load, tt.health, s.LoadScore, s.HealthScore, tt.wantLoad, tt.wantHealth)
		}
	}
}

func TestCoerce_MissingTimestampIsInvalid(t *testing.T) {
	t.Parallel()

	got := NewCoercer(nil).Coerce(NormalizedRow{FieldHostname: "desk-01"})
	if got.TimestampValid {
		t.Fatal("missing timestamp must be invalid")
	}
}

func TestCoerce_Pure(t *testing.T) {
	t.Parallel()

	c := NewCoercer(timestamp.NewParserIn(time.UTC))
	a := NormalizedRow{FieldTimestamp: "2024-01-10 14:32:05", FieldHostname: "a", FieldCPU: "1"}
	b := NormalizedRow{FieldTimestamp: "garbage", FieldHostname: "b", FieldCPU: "2"}

	first := c.Coerce(a)
	_ = c.Coerce(b)
	second := c.Coerce(a)
	if first != second {
		t.Fatalf("Coerce is not pure: %+v != %+v", first, second)
	}
}
