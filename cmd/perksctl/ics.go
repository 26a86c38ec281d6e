package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"perks/internal/ical"
)

func init() {
	rootCmd.AddCommand(icsCmd)

	icsCmd.Flags().StringP("output", "o", "", "write the feed to this file instead of stdout")
	icsCmd.Flags().Int("remind", -1, "alarm this many days before unused credits end (default: REMINDER_WINDOW_DAYS)")
}

var icsCmd = &cobra.Command{
	Use:   "ics",
	Short: "Export a user's credits for a year as an iCalendar feed",
	Args:  cobra.NoArgs,
	RunE:  withSession(runICS),
}

func runICS(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
	userID, err := s.user()
	if err != nil {
		return err
	}
	year := s.year()

	remind, _ := cmd.Flags().GetInt("remind")
	if remind < 0 {
		remind = s.cfg.ReminderWindowDays
	}

	tracked, err := s.tracker.Track(ctx, userID, year)
	if err != nil {
		return err
	}

	feed, err := ical.Encode(tracked, s.tracker.Catalog(), ical.Options{
		Name:         fmt.Sprintf("Credits %s %d", userID, year),
		ReminderDays: remind,
		Now:          time.Now(),
	})
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		_, err := cmd.OutOrStdout().Write(feed)
		return err
	}
	if err := os.WriteFile(path, feed, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d events to %s\n", len(tracked), path)
	return nil
}
