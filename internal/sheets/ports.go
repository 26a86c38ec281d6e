package sheets

import (
	"context"

	"perks/internal/calendar"
	"perks/internal/core"
)

// Ports for outbound adapters.
type (
	// StateFetcher loads the persisted usage state of a user.
	StateFetcher interface {
		FetchUserState(ctx context.Context, userID string) (core.UserState, error)
	}

	// StateWriter persists the full entry of one credit instance.
	StateWriter interface {
		UpdateCreditState(ctx context.Context, userID, instanceID string, entry core.CreditEntry) error
	}

	// ReminderLog remembers which instances a user was already reminded about.
	ReminderLog interface {
		WasReminded(ctx context.Context, userID, instanceID string) (bool, error)
		MarkReminded(ctx context.Context, userID, instanceID string) error
	}

	// UsageExporter mirrors usage rows to an external sheet.
	UsageExporter interface {
		UpsertUsage(ctx context.Context, rows []UsageRow) error
	}
)

// UsageRow is the flattened view of one tracked credit as exported to a sheet.
type UsageRow struct {
	UserID     string
	InstanceID string
	Card       string
	Credit     string
	StartDate  calendar.Date
	EndDate    calendar.Date
	Amount     core.Money
	Checked    bool
	DateUsed   calendar.Date
	Note       string
}
