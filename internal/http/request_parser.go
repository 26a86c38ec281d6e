// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the year query parameter shared by every read endpoint and the JSON body of
// credit entry writes.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"perks/internal/calendar"
	"perks/internal/core"
)

const (
	minYear = 1
	maxYear = 9999

	// Upper bound on a credit entry body. A maximal note plus the other
	// fields stays well below it.
	maxEntryBodyBytes = 8 << 10

	maxReminderDays = 90
)

var errInvalidBody = errors.New("invalid request body")

// ParseYearParam reads the year query parameter, defaulting to the year of
// today. Values that are not a four-digit calendar year are rejected.
func ParseYearParam(query url.Values, today calendar.Date) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return today.Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", v)
	}
	if year < minYear || year > maxYear {
		return 0, fmt.Errorf("year %d out of range", year)
	}
	return year, nil
}

// ParseReminderDays reads the remind query parameter of calendar feeds.
func ParseReminderDays(query url.Values, fallback int) (int, error) {
	v := strings.TrimSpace(query.Get("remind"))
	if v == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 0 || days > maxReminderDays {
		return 0, fmt.Errorf("invalid remind %q: must be between 0 and %d days", v, maxReminderDays)
	}
	return days, nil
}

// creditEntryRequest is the body of PUT /api/users/{user}/credits/{id}.
// dateUsed is optional; an empty string clears it.
type creditEntryRequest struct {
	Checked  bool   `json:"checked"`
	Note     string `json:"note"`
	DateUsed string `json:"dateUsed"`
}

// DecodeCreditEntry reads a JSON credit entry from the request body.
func DecodeCreditEntry(r *http.Request) (core.CreditEntry, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return core.CreditEntry{}, fmt.Errorf("%w: content type must be application/json", errInvalidBody)
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxEntryBodyBytes))
	dec.DisallowUnknownFields()

	var req creditEntryRequest
	if err := dec.Decode(&req); err != nil {
		return core.CreditEntry{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	entry := core.CreditEntry{
		Checked: req.Checked,
		Note:    sanitizeInput(req.Note),
	}
	if v := strings.TrimSpace(req.DateUsed); v != "" {
		d, err := calendar.Parse(v)
		if err != nil {
			return core.CreditEntry{}, fmt.Errorf("%w: dateUsed must be YYYY-MM-DD", errInvalidBody)
		}
		entry.DateUsed = d
	}
	return entry, nil
}
