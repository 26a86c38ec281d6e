// Package state holds the working session of one viewer: the selected user
// and year, the expanded instances of that year and the persisted usage
// entries. Changes are pushed to subscribers as snapshots.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"perks/internal/calendar"
	"perks/internal/core"
	"perks/internal/log"
	"perks/internal/services"
)

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	UserID      string
	Year        int
	Instances   []core.CreditInstance
	CreditState core.CreditState
}

// Tracked joins the snapshot's instances with their entries.
func (s Snapshot) Tracked(today calendar.Date) []core.TrackedCredit {
	return services.Join(s.Instances, core.UserState{CreditState: s.CreditState}, today)
}

// Listener receives a snapshot after every change.
type Listener func(Snapshot)

// Store is safe for concurrent use. Listeners run on the goroutine that made
// the change and must not call back into the store synchronously.
type Store struct {
	tracker *services.TrackerService
	backend services.StateStore
	logger  *log.Logger

	mu        sync.Mutex
	userID    string
	year      int
	instances []core.CreditInstance
	entries   core.CreditState
	// mutation counter per user and instance, used to detect superseded writes
	revisions map[string]uint64
	listeners map[int]Listener
	nextID    int
	// last pending write per instance; each write waits for its predecessor
	tails map[string]chan struct{}

	inflight sync.WaitGroup
	errMu    sync.Mutex
	lastErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store. Call Init before use.
func NewStore(tracker *services.TrackerService, backend services.StateStore, opts ...Option) *Store {
	s := &Store{
		tracker:   tracker,
		backend:   backend,
		logger:    log.Discard(),
		entries:   core.CreditState{},
		revisions: map[string]uint64{},
		listeners: map[int]Listener{},
		tails:     map[string]chan struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentState)
	return s
}

// Init selects the default user and the current year and loads both.
func (s *Store) Init(ctx context.Context) error {
	userID := s.tracker.Catalog().DefaultUser()
	if userID == "" {
		return fmt.Errorf("%w: catalog has no users", core.ErrUnknownUser)
	}
	return s.load(ctx, userID, s.tracker.Today().Year())
}

// SetUser switches to userID, keeping the selected year.
func (s *Store) SetUser(ctx context.Context, userID string) error {
	if _, err := s.tracker.Catalog().User(userID); err != nil {
		return err
	}
	s.mu.Lock()
	year := s.year
	s.mu.Unlock()
	if year == 0 {
		year = s.tracker.Today().Year()
	}
	return s.load(ctx, userID, year)
}

// SetYear re-expands the current user's cards for year. The persisted
// entries are not reloaded since they are keyed by instance, not by year.
func (s *Store) SetYear(ctx context.Context, year int) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		return errors.New("state store not initialized")
	}

	instances, err := s.tracker.Instances(ctx, userID, year)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.userID != userID {
		s.mu.Unlock()
		return nil
	}
	s.year = year
	s.instances = instances
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store) load(ctx context.Context, userID string, year int) error {
	instances, err := s.tracker.Instances(ctx, userID, year)
	if err != nil {
		return err
	}

	entries := core.CreditState{}
	state, err := s.backend.FetchUserState(ctx, userID)
	if err != nil {
		// the session stays usable with an empty state
		s.logger.ErrorContext(ctx, "Failed to load credit state",
			log.NewFields().
				WithUser(userID, year).
				WithOperation(log.OpRead).
				WithError(err).
				ToSlice()...)
	} else if state.CreditState != nil {
		entries = state.CreditState.Clone()
	}

	s.mu.Lock()
	s.userID = userID
	s.year = year
	s.instances = instances
	s.entries = entries
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		UserID:      s.userID,
		Year:        s.year,
		Instances:   append([]core.CreditInstance(nil), s.instances...),
		CreditState: s.entries.Clone(),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// SaveCreditEntry applies entry immediately and persists it in the
// background. If the write fails the entry is restored to the value it had
// when SaveCreditEntry was called, unless a later call for the same instance
// has replaced it in the meantime. Writes for one instance reach the backend
// in call order.
func (s *Store) SaveCreditEntry(ctx context.Context, instanceID string, entry core.CreditEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	userID := s.userID
	if userID == "" {
		s.mu.Unlock()
		return errors.New("state store not initialized")
	}
	key := userID + "/" + instanceID
	previous, existed := s.entries[instanceID]
	s.revisions[key]++
	revision := s.revisions[key]
	s.apply(instanceID, entry)
	snap := s.snapshotLocked()

	prev := s.tails[key]
	mine := make(chan struct{})
	s.tails[key] = mine
	s.inflight.Add(1)
	s.mu.Unlock()

	s.notify(snap)

	go func() {
		defer s.inflight.Done()
		defer s.release(key, mine)
		if prev != nil {
			<-prev
		}

		writeCtx := context.WithoutCancel(ctx)
		if err := s.backend.UpdateCreditState(writeCtx, userID, instanceID, entry); err != nil {
			s.rollback(writeCtx, userID, instanceID, revision, previous, existed, entry, err)
		}
	}()
	return nil
}

func (s *Store) release(key string, mine chan struct{}) {
	s.mu.Lock()
	if s.tails[key] == mine {
		delete(s.tails, key)
	}
	s.mu.Unlock()
	close(mine)
}

func (s *Store) apply(instanceID string, entry core.CreditEntry) {
	if entry.IsEmpty() {
		delete(s.entries, instanceID)
		return
	}
	s.entries[instanceID] = entry
}

func (s *Store) rollback(ctx context.Context, userID, instanceID string, revision uint64, previous core.CreditEntry, existed bool, attempted core.CreditEntry, cause error) {
	s.setErr(fmt.Errorf("save %s: %w", instanceID, cause))

	s.mu.Lock()
	superseded := s.userID != userID || s.revisions[userID+"/"+instanceID] != revision
	if !superseded {
		if existed {
			s.entries[instanceID] = previous
		} else {
			delete(s.entries, instanceID)
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.ErrorContext(ctx, "Failed to persist credit entry",
		log.NewFields().
			WithUser(userID, 0).
			WithInstance(instanceID, attempted.Checked).
			WithOperation(log.OpRollback).
			WithError(cause).
			ToSlice()...)

	if !superseded {
		s.notify(snap)
	}
}

func (s *Store) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// Err returns the last background write error, if any.
func (s *Store) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Flush waits until every background write has finished or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
