package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perks/internal/calendar"
)

func TestParseYearParam(t *testing.T) {
	today := calendar.MustParse("2025-03-10")

	tests := []struct {
		name    string
		query   url.Values
		want    int
		wantErr bool
	}{
		{name: "missing uses current year", query: url.Values{}, want: 2025},
		{name: "blank uses current year", query: url.Values{"year": {"  "}}, want: 2025},
		{name: "explicit year", query: url.Values{"year": {"2024"}}, want: 2024},
		{name: "surrounding spaces", query: url.Values{"year": {" 2026 "}}, want: 2026},
		{name: "not a number", query: url.Values{"year": {"abc"}}, wantErr: true},
		{name: "zero", query: url.Values{"year": {"0"}}, wantErr: true},
		{name: "five digits", query: url.Values{"year": {"10000"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseYearParam(tt.query, today)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReminderDays(t *testing.T) {
	got, err := ParseReminderDays(url.Values{}, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	got, err = ParseReminderDays(url.Values{"remind": {"0"}}, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	for _, bad := range []string{"-1", "91", "soon"} {
		_, err := ParseReminderDays(url.Values{"remind": {bad}}, 7)
		assert.Error(t, err, bad)
	}
}

func TestDecodeCreditEntry(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
		checked     bool
		note        string
		dateUsed    string
	}{
		{
			name:        "full entry",
			contentType: "application/json",
			body:        `{"checked":true,"note":"lunch","dateUsed":"2025-02-14"}`,
			checked:     true,
			note:        "lunch",
			dateUsed:    "2025-02-14",
		},
		{
			name:        "charset parameter",
			contentType: "application/json; charset=utf-8",
			body:        `{"checked":false}`,
		},
		{
			name: "no content type",
			body: `{"note":"  padded  "}`,
			note: "padded",
		},
		{
			name:        "empty date clears",
			contentType: "application/json",
			body:        `{"checked":true,"dateUsed":""}`,
			checked:     true,
		},
		{
			name:        "control characters stripped",
			contentType: "application/json",
			body:        `{"note":"a\u0000b\tc"}`,
			note:        "ab\tc",
		},
		{name: "form body", contentType: "text/plain", body: `{"checked":true}`, wantErr: true},
		{name: "truncated json", contentType: "application/json", body: `{"checked":`, wantErr: true},
		{name: "unknown field", contentType: "application/json", body: `{"id":"x"}`, wantErr: true},
		{name: "wrong type", contentType: "application/json", body: `{"checked":"yes"}`, wantErr: true},
		{name: "bad date", contentType: "application/json", body: `{"dateUsed":"2025-02-30"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			entry, err := DecodeCreditEntry(req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errInvalidBody))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.checked, entry.Checked)
			assert.Equal(t, tt.note, entry.Note)
			if tt.dateUsed == "" {
				assert.True(t, entry.DateUsed.IsZero())
			} else {
				assert.Equal(t, tt.dateUsed, entry.DateUsed.String())
			}
		})
	}
}

func TestDecodeCreditEntryBodyLimit(t *testing.T) {
	body := `{"note":"` + strings.Repeat("x", maxEntryBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	_, err := DecodeCreditEntry(req)
	assert.ErrorIs(t, err, errInvalidBody)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", sanitizeInput("  hello\x00 "))
	assert.Equal(t, "line1\nline2", sanitizeInput("line1\nline2"))
	assert.Equal(t, "", sanitizeInput("\x01\x02"))
}
