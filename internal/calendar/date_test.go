package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Date
		wantErr bool
	}{
		{name: "valid", in: "2025-07-15", want: New(2025, time.July, 15)},
		{name: "leap day", in: "2024-02-29", want: New(2024, time.February, 29)},
		{name: "not a leap year", in: "2025-02-29", wantErr: true},
		{name: "single digit month", in: "2025-7-15", wantErr: true},
		{name: "timestamp suffix", in: "2025-07-15T00:00:00Z", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "yesterday!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("Parse(%q) location = %v, want UTC", tt.in, got.Location())
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, iso := range []string{"0999-01-01", "2025-01-01", "2025-12-31", "2024-02-29"} {
		if got := MustParse(iso).String(); got != iso {
			t.Errorf("round trip %q = %q", iso, got)
		}
	}
}

func TestFromTimeDropsClock(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got := FromTime(time.Date(2025, 3, 1, 1, 30, 0, 0, loc))
	if got.String() != "2025-02-28" {
		t.Errorf("FromTime = %s, want 2025-02-28", got)
	}
}

func TestYearBounds(t *testing.T) {
	if got := YearStart(2025).String(); got != "2025-01-01" {
		t.Errorf("YearStart = %s", got)
	}
	if got := YearEnd(2025).String(); got != "2025-12-31" {
		t.Errorf("YearEnd = %s", got)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2025-01-15", 1, "2025-02-15"},
		{"2025-01-31", 1, "2025-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2025-03-31", 1, "2025-04-30"},
		{"2025-11-30", 3, "2026-02-28"},
		{"2025-12-01", 1, "2026-01-01"},
		{"2025-01-01", -1, "2024-12-01"},
		{"2025-03-31", -1, "2025-02-28"},
		{"2025-07-15", -18, "2024-01-15"},
		{"2025-07-15", 0, "2025-07-15"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			got := MustParse(tt.from).AddMonths(tt.n)
			if got.String() != tt.want {
				t.Errorf("%s.AddMonths(%d) = %s, want %s", tt.from, tt.n, got, tt.want)
			}
		})
	}
}

func TestAddYears(t *testing.T) {
	if got := MustParse("2024-02-29").AddYears(1).String(); got != "2025-02-28" {
		t.Errorf("leap day + 1y = %s, want 2025-02-28", got)
	}
	if got := MustParse("2024-02-29").AddYears(4).String(); got != "2028-02-29" {
		t.Errorf("leap day + 4y = %s, want 2028-02-29", got)
	}
	if got := MustParse("2025-07-15").AddYears(-1).String(); got != "2024-07-15" {
		t.Errorf("2025-07-15 - 1y = %s", got)
	}
}

func TestAddDays(t *testing.T) {
	if got := MustParse("2025-03-01").AddDays(-1).String(); got != "2025-02-28" {
		t.Errorf("AddDays(-1) = %s", got)
	}
	if got := MustParse("2025-12-31").AddDays(1).String(); got != "2026-01-01" {
		t.Errorf("AddDays(1) = %s", got)
	}
}

func TestRangesIntersectYear(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		year       int
		want       bool
	}{
		{"inside", "2025-03-01", "2025-03-31", 2025, true},
		{"ends on jan 1", "2024-12-01", "2025-01-01", 2025, true},
		{"starts on dec 31", "2025-12-31", "2026-01-30", 2025, true},
		{"spans year", "2024-06-01", "2026-06-01", 2025, true},
		{"previous year", "2024-12-01", "2024-12-31", 2025, false},
		{"next year", "2025-12-01", "2025-12-31", 2026, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RangesIntersectYear(MustParse(tt.start), MustParse(tt.end), tt.year)
			if got != tt.want {
				t.Errorf("RangesIntersectYear(%s, %s, %d) = %v, want %v", tt.start, tt.end, tt.year, got, tt.want)
			}
		})
	}
}

func TestClampAndDaysBetween(t *testing.T) {
	lo, hi := YearStart(2025), YearEnd(2025)
	if got := Clamp(MustParse("2024-11-01"), lo, hi); !got.Equal(lo) {
		t.Errorf("Clamp low = %s", got)
	}
	if got := Clamp(MustParse("2026-02-01"), lo, hi); !got.Equal(hi) {
		t.Errorf("Clamp high = %s", got)
	}
	if got := DaysBetween(lo, hi); got != 364 {
		t.Errorf("DaysBetween = %d, want 364", got)
	}
}

func TestJSON(t *testing.T) {
	type payload struct {
		Opened Date `json:"opened"`
	}

	b, err := json.Marshal(payload{Opened: MustParse("2024-07-15")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"opened":"2024-07-15"}` {
		t.Errorf("marshal = %s", b)
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"opened":"2023-01-31"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Opened.String() != "2023-01-31" {
		t.Errorf("unmarshal = %s", p.Opened)
	}

	if err := json.Unmarshal([]byte(`{"opened":"31/01/2023"}`), &p); err == nil {
		t.Error("expected error for malformed date")
	}

	b, err = json.Marshal(payload{})
	if err != nil {
		t.Fatalf("marshal zero: %v", err)
	}
	if string(b) != `{"opened":""}` {
		t.Errorf("marshal zero = %s", b)
	}
	for _, in := range []string{`{"opened":""}`, `{"opened":null}`} {
		p = payload{Opened: MustParse("2023-01-31")}
		if err := json.Unmarshal([]byte(in), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if !p.Opened.IsZero() {
			t.Errorf("unmarshal %s = %s, want zero", in, p.Opened)
		}
	}
}

func TestToday(t *testing.T) {
	clock := FixedClock{CurrentTime: time.Date(2025, 6, 10, 23, 59, 0, 0, time.UTC)}
	if got := Today(clock).String(); got != "2025-06-10" {
		t.Errorf("Today = %s", got)
	}
}
