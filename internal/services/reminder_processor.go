package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"perks/internal/calendar"
	"perks/internal/core"
	"perks/internal/log"
	"perks/internal/metrics"
	"perks/internal/sheets"
)

// ExpiringCredit is one line of a reminder digest.
type ExpiringCredit struct {
	InstanceID string
	Card       string
	Credit     string
	Amount     core.Money
	EndDate    calendar.Date
	DaysLeft   int
}

// Notifier delivers a reminder digest to a user.
type Notifier interface {
	NotifyExpiring(ctx context.Context, userID string, credits []ExpiringCredit) error
}

// ReminderProcessor reminds users of unused credits whose period is about to
// end. Each instance is reminded at most once.
type ReminderProcessor struct {
	tracker    *TrackerService
	reminders  sheets.ReminderLog
	notifier   Notifier
	windowDays int
	logger     *log.Logger
}

func NewReminderProcessor(tracker *TrackerService, reminders sheets.ReminderLog, notifier Notifier, windowDays int) *ReminderProcessor {
	return &ReminderProcessor{
		tracker:    tracker,
		reminders:  reminders,
		notifier:   notifier,
		windowDays: windowDays,
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentReminder),
	}
}

// ProcessDueReminders sends one digest per user with pending reminders and
// returns the number of reminded instances. A failure for one user does not
// stop the others; their errors are joined.
func (p *ReminderProcessor) ProcessDueReminders(ctx context.Context, now time.Time) (int, error) {
	if p.tracker == nil || p.reminders == nil || p.notifier == nil {
		return 0, errors.New("reminder processor not properly initialized")
	}

	today := calendar.FromTime(now)
	users := p.tracker.Catalog().UserOrder

	p.logger.InfoContext(ctx, "Processing reminders",
		"users", len(users),
		"processing_date", today.String(),
		"window_days", p.windowDays)

	counts := make([]int, len(users))
	errs := make([]error, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, userID := range users {
		g.Go(func() error {
			counts[i], errs[i] = p.remindUser(gctx, userID, today)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}

	p.logger.InfoContext(ctx, "Reminder processing complete",
		"reminded", total,
		"users", len(users))
	return total, errors.Join(errs...)
}

func (p *ReminderProcessor) remindUser(ctx context.Context, userID string, today calendar.Date) (int, error) {
	due, err := p.DueCredits(ctx, userID, today)
	if err != nil {
		return 0, fmt.Errorf("user %s: %w", userID, err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var pending []ExpiringCredit
	for _, c := range due {
		done, err := p.reminders.WasReminded(ctx, userID, c.InstanceID)
		if err != nil {
			return 0, fmt.Errorf("user %s: %w", userID, err)
		}
		if !done {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	err = p.notifier.NotifyExpiring(ctx, userID, pending)
	metrics.RemindersSent.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("notify %s: %w", userID, err)
	}

	for _, c := range pending {
		if err := p.reminders.MarkReminded(ctx, userID, c.InstanceID); err != nil {
			// the digest went out; a repeat next run is the worst case
			p.logger.ErrorContext(ctx, "Failed to record reminder",
				log.FieldUserID, userID,
				log.FieldInstanceID, c.InstanceID,
				log.FieldError, err)
		}
	}

	p.logger.InfoContext(ctx, "Reminder sent",
		log.FieldUserID, userID,
		log.FieldCount, len(pending))
	return len(pending), nil
}

// DueCredits returns the unused credits of userID that are active on today and
// end within the reminder window, soonest first. Last year is expanded too so
// that periods started then are still found.
func (p *ReminderProcessor) DueCredits(ctx context.Context, userID string, today calendar.Date) ([]ExpiringCredit, error) {
	seen := map[string]bool{}
	var due []ExpiringCredit

	for _, year := range []int{today.Year() - 1, today.Year()} {
		tracked, err := p.tracker.Track(ctx, userID, year)
		if err != nil {
			return nil, err
		}
		for _, tc := range tracked {
			if seen[tc.ID] || !p.isDue(tc, today) {
				continue
			}
			seen[tc.ID] = true
			due = append(due, ExpiringCredit{
				InstanceID: tc.ID,
				Card:       p.tracker.Catalog().CardName(tc.CardID),
				Credit:     p.tracker.Catalog().CreditName(tc.CreditID),
				Amount:     tc.Amount,
				EndDate:    tc.EndDate,
				DaysLeft:   calendar.DaysBetween(today, tc.EndDate),
			})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].EndDate.Before(due[j].EndDate)
	})
	return due, nil
}

func (p *ReminderProcessor) isDue(tc core.TrackedCredit, today calendar.Date) bool {
	if tc.Entry.Checked || !tc.Contains(today) {
		return false
	}
	return calendar.DaysBetween(today, tc.EndDate) <= p.windowDays
}
