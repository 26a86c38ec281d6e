package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"perks/internal/cache"
	"perks/internal/calendar"
	"perks/internal/catalog"
	"perks/internal/core"
	"perks/internal/log"
	"perks/internal/metrics"
	"perks/internal/sheets"
)

// StateStore reads and writes persisted credit entries.
type StateStore interface {
	sheets.StateFetcher
	sheets.StateWriter
}

// TrackerService joins expanded credit instances with the persisted usage
// state of a user. It is the entry point of the HTTP API, the CLI and the
// workers.
type TrackerService struct {
	catalog  *catalog.Catalog
	expander *Expander
	store    StateStore
	cache    cache.Cache[[]core.CreditInstance]
	clock    calendar.Clock
	locks    KeyedMutex
	logger   *log.Logger
}

// TrackerOption configures a TrackerService.
type TrackerOption func(*TrackerService)

// WithInstanceCache caches expansions per user and year.
func WithInstanceCache(c cache.Cache[[]core.CreditInstance]) TrackerOption {
	return func(t *TrackerService) { t.cache = c }
}

// WithClock overrides the clock used for "today".
func WithClock(c calendar.Clock) TrackerOption {
	return func(t *TrackerService) { t.clock = c }
}

// WithTrackerLogger sets the logger.
func WithTrackerLogger(l *log.Logger) TrackerOption {
	return func(t *TrackerService) { t.logger = l }
}

func NewTrackerService(cat *catalog.Catalog, expander *Expander, store StateStore, opts ...TrackerOption) *TrackerService {
	t := &TrackerService{
		catalog:  cat,
		expander: expander,
		store:    store,
		clock:    calendar.SystemClock{},
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent(log.ComponentExpansion)
	return t
}

func (t *TrackerService) Catalog() *catalog.Catalog { return t.catalog }

// Today returns the current calendar date of the service clock.
func (t *TrackerService) Today() calendar.Date { return calendar.Today(t.clock) }

// Instances expands the cards of userID for year.
func (t *TrackerService) Instances(ctx context.Context, userID string, year int) ([]core.CreditInstance, error) {
	user, err := t.catalog.User(userID)
	if err != nil {
		return nil, err
	}

	expand := func() ([]core.CreditInstance, error) {
		started := time.Now()
		instances, err := t.expander.Expand(user, year)
		metrics.ObserveExpansion(started, len(instances), err)
		return instances, err
	}

	var instances []core.CreditInstance
	if t.cache == nil {
		instances, err = expand()
	} else {
		var hit bool
		instances, hit, err = t.cache.GetOrLoad(fmt.Sprintf("%s/%d", userID, year), expand)
		if err == nil {
			metrics.CacheLookups.WithLabelValues(cacheOutcome(hit)).Inc()
			// callers may modify the slice they get
			instances = append([]core.CreditInstance(nil), instances...)
		}
	}
	if err != nil {
		t.logger.ErrorContext(ctx, "Expansion failed",
			log.NewFields().
				WithUser(userID, year).
				WithOperation(log.OpExpand).
				WithError(err).
				ToSlice()...)
		return nil, err
	}

	t.logger.DebugContext(ctx, "Credits expanded",
		log.FieldUserID, userID,
		log.FieldYear, year,
		log.FieldCount, len(instances))
	return instances, nil
}

func cacheOutcome(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// Track returns the instances of year joined with their entries and classified
// against today.
func (t *TrackerService) Track(ctx context.Context, userID string, year int) ([]core.TrackedCredit, error) {
	instances, err := t.Instances(ctx, userID, year)
	if err != nil {
		return nil, err
	}

	state, err := t.store.FetchUserState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch state of %s: %w", userID, err)
	}

	return Join(instances, state, t.Today()), nil
}

// Join pairs each instance with its entry in state.
func Join(instances []core.CreditInstance, state core.UserState, today calendar.Date) []core.TrackedCredit {
	out := make([]core.TrackedCredit, len(instances))
	for i, inst := range instances {
		entry := state.Entry(inst.ID)
		out[i] = core.TrackedCredit{
			CreditInstance: inst,
			Entry:          entry,
			Status:         core.StatusOf(inst, entry, today),
		}
	}
	return out
}

// Summary returns the card tiles of year for the credits active today.
func (t *TrackerService) Summary(ctx context.Context, userID string, year int) ([]core.CardSummary, error) {
	tracked, err := t.Track(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	return SummarizeActive(tracked, t.catalog, t.Today()), nil
}

// FindInstance resolves an instance ID of userID. The instance must be one
// the user's portfolio actually produces.
func (t *TrackerService) FindInstance(ctx context.Context, userID, instanceID string) (core.CreditInstance, error) {
	_, start, _, err := core.ParseInstanceID(instanceID)
	if err != nil {
		return core.CreditInstance{}, err
	}

	instances, err := t.Instances(ctx, userID, start.Year())
	if err != nil {
		return core.CreditInstance{}, err
	}
	for _, inst := range instances {
		if inst.ID == instanceID {
			return inst, nil
		}
	}
	return core.CreditInstance{}, fmt.Errorf("%w: %s", core.ErrUnknownInstance, instanceID)
}

// SaveEntry validates and persists the entry of one instance. Writes for the
// same user and instance are serialized.
func (t *TrackerService) SaveEntry(ctx context.Context, userID, instanceID string, entry core.CreditEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if _, err := t.FindInstance(ctx, userID, instanceID); err != nil {
		return err
	}

	unlock := t.locks.Lock(userID + "/" + instanceID)
	defer unlock()

	if err := t.store.UpdateCreditState(ctx, userID, instanceID, entry); err != nil {
		t.logger.ErrorContext(ctx, "Failed to save credit entry",
			log.NewFields().
				WithUser(userID, 0).
				WithInstance(instanceID, entry.Checked).
				WithOperation(log.OpUpdate).
				WithError(err).
				ToSlice()...)
		return fmt.Errorf("save entry: %w", err)
	}

	t.logger.InfoContext(ctx, "Credit entry saved",
		log.NewFields().
			WithUser(userID, 0).
			WithInstance(instanceID, entry.Checked).
			ToSlice()...)
	return nil
}

// UsageRow flattens one tracked instance for export.
func (t *TrackerService) UsageRow(userID string, inst core.CreditInstance, entry core.CreditEntry) sheets.UsageRow {
	return sheets.UsageRow{
		UserID:     userID,
		InstanceID: inst.ID,
		Card:       t.catalog.CardName(inst.CardID),
		Credit:     t.catalog.CreditName(inst.CreditID),
		StartDate:  inst.StartDate,
		EndDate:    inst.EndDate,
		Amount:     inst.Amount,
		Checked:    entry.Checked,
		DateUsed:   entry.DateUsed,
		Note:       entry.Note,
	}
}

// UsageRows returns one export row per instance of year.
func (t *TrackerService) UsageRows(ctx context.Context, userID string, year int) ([]sheets.UsageRow, error) {
	tracked, err := t.Track(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	rows := make([]sheets.UsageRow, len(tracked))
	for i, tc := range tracked {
		rows[i] = t.UsageRow(userID, tc.CreditInstance, tc.Entry)
	}
	return rows, nil
}

// IsNotFound reports whether err means an unknown user or instance.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrUnknownUser) ||
		errors.Is(err, core.ErrUnknownInstance) ||
		errors.Is(err, core.ErrInvalidInstanceID)
}
