package timestamp

import (
	"testing"
	"time"
)

func TestParse_StrictWithOffset(t *testing.T) {
	p := NewParserIn(time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC3339 Z", "2024-01-15T10:30:45Z", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"RFC3339 offset", "2024-01-15T10:30:45-03:00", time.Date(2024, 1, 15, 13, 30, 45, 0, time.UTC)},
		{"RFC3339Nano", "2024-01-15T10:30:45.5Z", time.Date(2024, 1, 15, 10, 30, 45, 500000000, time.UTC)},
		{"space with offset", "2024-01-15 10:30:45-03:00", time.Date(2024, 1, 15, 13, 30, 45, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.input)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_WallClockIsLocal(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	p := NewParserIn(loc)

	got, ok := p.Parse("2024-01-10 14:32:05")
	if !ok {
		t.Fatal("wall clock timestamp not parsed")
	}
	want := time.Date(2024, 1, 10, 14, 32, 5, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
	if clock := got.In(loc).Format("15:04"); clock != "14:32" {
		t.Errorf("local clock = %s, want 14:32 (must not be shifted as UTC)", clock)
	}
}

func TestParse_WallClockFraction(t *testing.T) {
	p := NewParserIn(time.UTC)

	for _, input := range []string{"2024-01-15 10:30:45.123", "2024-01-15 10:30:45,123"} {
		got, ok := p.Parse(input)
		if !ok {
			t.Fatalf("Parse(%q) failed", input)
		}
		if got.Nanosecond() != 123000000 {
			t.Errorf("Parse(%q) nanos = %d, want 123000000", input, got.Nanosecond())
		}
	}
}

func TestParse_RejectsImpossibleDates(t *testing.T) {
	p := NewParserIn(time.UTC)

	for _, input := range []string{"2024-02-30 10:00:00", "2024-13-01 10:00:00", "2024-01-01 25:00:00"} {
		if ts, ok := p.Parse(input); ok {
			t.Errorf("Parse(%q) = %v, want invalid", input, ts)
		}
	}
}

func TestParse_Fallbacks(t *testing.T) {
	p := NewParserIn(time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024/01/15 10:30:45", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"15/01/2024 10:30:45", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"1705312245", time.Date(2024, 1, 15, 9, 50, 45, 0, time.UTC)},
		{"1705312245000", time.Date(2024, 1, 15, 9, 50, 45, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, ok := p.Parse(tt.input)
		if !ok {
			t.Errorf("Parse(%q) failed", tt.input)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse_TotalOverGarbage(t *testing.T) {
	p := NewParser()

	inputs := []string{
		"", "   ", "N/A", "not a date", "2024-", "::", "0000-00-00 00:00:00",
		"99999-01-01 00:00:00", "\x00\xff", "2024-01-10 14:32:05 trailing", "1e9",
	}
	for _, input := range inputs {
		ts, ok := p.Parse(input)
		if ok && !Valid(ts) {
			t.Errorf("Parse(%q) returned invalid instant %v with ok=true", input, ts)
		}
		if !ok && !ts.IsZero() {
			t.Errorf("Parse(%q) returned non-zero instant %v with ok=false", input, ts)
		}
	}
}

func TestValid(t *testing.T) {
	if Valid(time.Time{}) {
		t.Error("zero time should be invalid")
	}
	if !Valid(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("2024 should be valid")
	}
}
