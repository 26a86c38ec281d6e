package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"perks/internal/log"
	ports "perks/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// base name without year (e.g. "Credits"); the year of each row is prefixed
	usageBase string
	logger    *log.Logger
}

var _ ports.UsageExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS; otherwise a user token saved by
// "perksctl sheets login" (GOOGLE_OAUTH_CLIENT_FILE plus GOOGLE_OAUTH_TOKEN_FILE).
// Optional: GOOGLE_SHEET_NAME (default "Credits").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	base := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if base == "" {
		base = "Credits"
	}

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		usageBase:     base,
		logger:        logger,
	}, nil
}

// newSheetsService prefers service account credentials over a user token.
func newSheetsService(ctx context.Context, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		ts, err := userTokenSource(ctx)
		if err != nil {
			return nil, err
		}
		if ts == nil {
			return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_CLIENT_FILE)")
		}
		logger.InfoContext(ctx, "Creating Google Sheets service with user token",
			"token_file", TokenFile())
		service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	}

	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// UpsertUsage writes rows into "<year> <base>" sheets, one sheet per start
// year. Rows already present (matched on column A) are overwritten in place;
// the rest are appended.
func (c *Client) UpsertUsage(ctx context.Context, rows []ports.UsageRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return nil
	}

	byYear := map[int][]ports.UsageRow{}
	for _, r := range rows {
		y := r.StartDate.Year()
		byYear[y] = append(byYear[y], r)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		if err := c.upsertSheet(ctx, yearPrefixedName(c.usageBase, y), byYear[y]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertSheet(ctx context.Context, sheet string, rows []ports.UsageRow) error {
	keyRange := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, keyRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read keys of %s: %w", sheet, err)
	}

	index := buildRowIndex(resp.Values)
	updates, appends := planUpsert(sheet, index, rows)

	if len(updates) > 0 {
		_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data:             updates,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update rows in %s: %w", sheet, err)
		}
	}

	if len(appends) > 0 {
		vr := &gsheet.ValueRange{Values: appends}
		if len(resp.Values) == 0 {
			vr.Values = append([][]any{headerRow()}, appends...)
		}
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:J", sheet), vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append rows to %s: %w", sheet, err)
		}
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "Usage rows exported",
			"sheet", sheet,
			"updated", len(updates),
			"appended", len(appends))
	}
	return nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
