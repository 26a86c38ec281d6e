package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"perks/internal/calendar"
	"perks/internal/catalog"
	"perks/internal/core"
	"perks/internal/services"
)

func init() {
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("active", false, "only list credits whose period contains today")
}

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "List the credit periods of a user's cards for a year",
	Args:  cobra.NoArgs,
	RunE:  withSession(runExpand),
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show credits with their usage status and the per-card summary",
	Args:  cobra.NoArgs,
	RunE:  withSession(runShow),
}

type instanceRow struct {
	ID        string        `json:"id"`
	Card      string        `json:"card"`
	Credit    string        `json:"credit"`
	Cadence   core.Cadence  `json:"cadence"`
	Amount    string        `json:"amount"`
	StartDate calendar.Date `json:"startDate"`
	EndDate   calendar.Date `json:"endDate"`
	Status    core.Status   `json:"status,omitempty"`
	DateUsed  calendar.Date `json:"dateUsed"`
	Note      string        `json:"note,omitempty"`
}

func newInstanceRow(inst core.CreditInstance, cat *catalog.Catalog) instanceRow {
	return instanceRow{
		ID:        inst.ID,
		Card:      cat.CardName(inst.CardID),
		Credit:    cat.CreditName(inst.CreditID),
		Cadence:   inst.Cadence,
		Amount:    inst.Amount.String(),
		StartDate: inst.StartDate,
		EndDate:   inst.EndDate,
	}
}

func runExpand(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
	userID, err := s.user()
	if err != nil {
		return err
	}
	year := s.year()

	instances, err := s.tracker.Instances(ctx, userID, year)
	if err != nil {
		return err
	}

	cat := s.tracker.Catalog()
	rows := make([]instanceRow, len(instances))
	for i, inst := range instances {
		rows[i] = newInstanceRow(inst, cat)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, rows)
	}

	fmt.Fprintf(out, "%s, %d: %d credit periods\n\n", userID, year, len(rows))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CARD\tCREDIT\tCADENCE\tAMOUNT\tSTART\tEND\tID")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Card, r.Credit, r.Cadence, r.Amount, r.StartDate, r.EndDate, r.ID)
	}
	return tw.Flush()
}

type showOutput struct {
	User    string        `json:"user"`
	Year    int           `json:"year"`
	Today   calendar.Date `json:"today"`
	Credits []instanceRow `json:"credits"`
	Summary []summaryRow  `json:"summary"`
}

type summaryRow struct {
	Card      string `json:"card"`
	Active    int    `json:"active"`
	Used      int    `json:"used"`
	Total     string `json:"total"`
	Remaining string `json:"remaining"`
}

func runShow(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
	userID, err := s.user()
	if err != nil {
		return err
	}
	year := s.year()
	activeOnly, _ := cmd.Flags().GetBool("active")

	tracked, err := s.tracker.Track(ctx, userID, year)
	if err != nil {
		return err
	}

	cat := s.tracker.Catalog()
	today := s.tracker.Today()
	result := showOutput{User: userID, Year: year, Today: today}
	for _, tc := range tracked {
		if activeOnly && !tc.Contains(today) {
			continue
		}
		row := newInstanceRow(tc.CreditInstance, cat)
		row.Status = tc.Status
		row.DateUsed = tc.Entry.DateUsed
		row.Note = tc.Entry.Note
		result.Credits = append(result.Credits, row)
	}
	for _, sum := range services.SummarizeActive(tracked, cat, today) {
		result.Summary = append(result.Summary, summaryRow{
			Card:      sum.CardName,
			Active:    sum.Active,
			Used:      sum.Used,
			Total:     sum.Total.String(),
			Remaining: sum.Remaining.String(),
		})
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, result)
	}

	fmt.Fprintf(out, "%s, %d (today %s)\n\n", userID, year, today)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCARD\tCREDIT\tAMOUNT\tSTART\tEND\tUSED ON\tNOTE")
	for _, r := range result.Credits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			statusMark(r.Status), r.Card, r.Credit, r.Amount, r.StartDate, r.EndDate, r.DateUsed, r.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CARD\tACTIVE\tUSED\tTOTAL\tREMAINING")
	for _, r := range result.Summary {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.Card, r.Active, r.Used, r.Total, r.Remaining)
	}
	return tw.Flush()
}

func statusMark(s core.Status) string {
	switch s {
	case core.StatusUsed:
		return "[x] used"
	case core.StatusActive:
		return "[ ] active"
	default:
		return "    inactive"
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
