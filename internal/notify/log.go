package notify

import (
	"context"

	"perks/internal/log"
	"perks/internal/services"
)

// LogNotifier writes digests to the log. Used when no SMTP server is
// configured.
type LogNotifier struct {
	logger *log.Logger
}

var _ services.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotify)}
}

func (n *LogNotifier) NotifyExpiring(ctx context.Context, userID string, credits []services.ExpiringCredit) error {
	for _, c := range credits {
		n.logger.InfoContext(ctx, "Credit expiring",
			log.FieldUserID, userID,
			log.FieldInstanceID, c.InstanceID,
			log.FieldAmountCents, c.Amount.Cents,
			"ends", c.EndDate.String(),
			"days_left", c.DaysLeft)
	}
	return nil
}
