package google

import (
	"fmt"
	"strings"

	ports "perks/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

// rowKey identifies a usage row in column A.
func rowKey(r ports.UsageRow) string {
	return r.UserID + "/" + r.InstanceID
}

func headerRow() []any {
	return []any{"Key", "User", "Card", "Credit", "Start", "End", "Amount", "Used", "Date used", "Note"}
}

func rowValues(r ports.UsageRow) []any {
	dateUsed := ""
	if !r.DateUsed.IsZero() {
		dateUsed = r.DateUsed.String()
	}
	return []any{
		rowKey(r),
		r.UserID,
		r.Card,
		r.Credit,
		r.StartDate.String(),
		r.EndDate.String(),
		r.Amount.Dollars(),
		r.Checked,
		dateUsed,
		r.Note,
	}
}

// buildRowIndex maps the keys of column A to 1-based sheet row numbers. The
// header and blank cells are skipped; the last occurrence of a key wins.
func buildRowIndex(values [][]interface{}) map[string]int {
	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		key := strings.TrimSpace(fmt.Sprint(row[0]))
		if key == "" || (i == 0 && key == "Key") {
			continue
		}
		index[key] = i + 1
	}
	return index
}

// planUpsert splits rows into in-place updates and appended rows. Duplicate
// rows in the input collapse to the last one.
func planUpsert(sheet string, index map[string]int, rows []ports.UsageRow) ([]*gsheet.ValueRange, [][]any) {
	var (
		updates  []*gsheet.ValueRange
		appends  [][]any
		appended = map[string]int{}
	)
	for _, r := range rows {
		key := rowKey(r)
		if n, ok := index[key]; ok {
			updates = append(updates, &gsheet.ValueRange{
				Range:  fmt.Sprintf("%s!A%d:J%d", sheet, n, n),
				Values: [][]any{rowValues(r)},
			})
			continue
		}
		if i, ok := appended[key]; ok {
			appends[i] = rowValues(r)
			continue
		}
		appended[key] = len(appends)
		appends = append(appends, rowValues(r))
	}
	return updates, appends
}
