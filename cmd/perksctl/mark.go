package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"perks/internal/calendar"
	"perks/internal/core"
	"perks/internal/state"
)

const flushTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(markCmd)

	markCmd.Flags().Bool("unset", false, "mark the credit as not used")
	markCmd.Flags().String("note", "", "note to store with the entry")
	markCmd.Flags().String("date", "", "date the credit was used, YYYY-MM-DD (default: today when marking used)")
}

var markCmd = &cobra.Command{
	Use:   "mark INSTANCE_ID",
	Short: "Record that a credit period was used",
	Long: `Record usage of one credit period. INSTANCE_ID is the ID printed by
"perksctl expand" or "perksctl show", e.g. amex_gold_uber_2025-03-01_2025-03-31.
The whole entry is replaced: omitted flags clear the note and date.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(runMark),
}

func runMark(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
	userID, err := s.user()
	if err != nil {
		return err
	}
	instanceID := strings.TrimSpace(args[0])

	unset, _ := cmd.Flags().GetBool("unset")
	note, _ := cmd.Flags().GetString("note")
	dateFlag, _ := cmd.Flags().GetString("date")

	entry := core.CreditEntry{Checked: !unset, Note: strings.TrimSpace(note)}
	switch {
	case dateFlag != "":
		d, err := calendar.Parse(dateFlag)
		if err != nil {
			return err
		}
		entry.DateUsed = d
	case entry.Checked:
		entry.DateUsed = s.tracker.Today()
	}

	inst, err := s.tracker.FindInstance(ctx, userID, instanceID)
	if err != nil {
		return err
	}

	store := state.NewStore(s.tracker, s.backend.Backend, state.WithLogger(s.logger))
	if err := store.SetUser(ctx, userID); err != nil {
		return err
	}
	if err := store.SetYear(ctx, inst.StartDate.Year()); err != nil {
		return err
	}
	if err := store.SaveCreditEntry(ctx, instanceID, entry); err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := store.Flush(flushCtx); err != nil {
		return fmt.Errorf("waiting for write: %w", err)
	}
	if err := store.Err(); err != nil {
		return err
	}

	if s.cfg.DataBackend == "memory" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: memory backend, the entry is not persisted")
	}

	status := core.StatusOf(inst, entry, s.tracker.Today())
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n",
		s.tracker.Catalog().CreditName(inst.CreditID), inst.StartDate, status)
	return nil
}
