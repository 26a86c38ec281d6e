package google

import (
	"context"
	"testing"

	"perks/internal/calendar"
	"perks/internal/core"
	ports "perks/internal/sheets"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestNewFromEnv_MissingCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/sa.json")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected error for unreadable credentials file")
	}
}

func TestUpsertUsage_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	err := c.UpsertUsage(context.Background(), []ports.UsageRow{{UserID: "alex"}})
	if err == nil {
		t.Fatal("expected error when service is nil")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Credits", 2025, "2025 Credits"},
		{"", 2023, ""},
		{"Card Perks", 2022, "2022 Card Perks"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestBuildRowIndex(t *testing.T) {
	values := [][]interface{}{
		{"Key"},
		{"alex/amex_gold_uber_2025-01-01_2025-01-31"},
		{},
		{" sam/amex_gold_uber_2025-01-01_2025-01-31 "},
	}

	index := buildRowIndex(values)

	if len(index) != 2 {
		t.Fatalf("expected 2 keys, got %v", index)
	}
	if index["alex/amex_gold_uber_2025-01-01_2025-01-31"] != 2 {
		t.Errorf("alex row = %d, want 2", index["alex/amex_gold_uber_2025-01-01_2025-01-31"])
	}
	if index["sam/amex_gold_uber_2025-01-01_2025-01-31"] != 4 {
		t.Errorf("sam row = %d, want 4", index["sam/amex_gold_uber_2025-01-01_2025-01-31"])
	}
}

func TestPlanUpsert(t *testing.T) {
	row := func(user, id string, checked bool) ports.UsageRow {
		return ports.UsageRow{
			UserID:     user,
			InstanceID: id,
			Card:       "Amex Gold",
			Credit:     "Uber Credit",
			StartDate:  calendar.MustParse("2025-01-01"),
			EndDate:    calendar.MustParse("2025-01-31"),
			Amount:     core.Dollars(10),
			Checked:    checked,
			DateUsed:   calendar.MustParse("2025-01-09"),
			Note:       "eats",
		}
	}
	index := map[string]int{"alex/jan": 7}

	updates, appends := planUpsert("2025 Credits", index, []ports.UsageRow{
		row("alex", "jan", true),
		row("alex", "feb", false),
		row("alex", "feb", true),
	})

	if len(updates) != 1 || updates[0].Range != "2025 Credits!A7:J7" {
		t.Fatalf("unexpected updates: %+v", updates)
	}
	if len(appends) != 1 {
		t.Fatalf("expected duplicate appends to collapse, got %d", len(appends))
	}

	got := appends[0]
	if got[0] != "alex/feb" || got[4] != "2025-01-01" || got[6] != 10.0 || got[7] != true || got[8] != "2025-01-09" {
		t.Errorf("unexpected row values: %v", got)
	}
}

func TestRowValuesEmptyDateUsed(t *testing.T) {
	got := rowValues(ports.UsageRow{UserID: "sam", InstanceID: "x"})
	if got[8] != "" {
		t.Errorf("date used = %v, want empty", got[8])
	}
	if len(got) != len(headerRow()) {
		t.Errorf("row has %d columns, header has %d", len(got), len(headerRow()))
	}
}
