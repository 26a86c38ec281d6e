// Package memory is an in-process backend used for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"perks/internal/core"
	"perks/internal/sheets"
)

type Store struct {
	mu       sync.Mutex
	states   map[string]core.CreditState
	reminded map[string]map[string]bool
	exported map[string]sheets.UsageRow
}

// New returns an empty store.
func New() *Store {
	return &Store{
		states:   map[string]core.CreditState{},
		reminded: map[string]map[string]bool{},
		exported: map[string]sheets.UsageRow{},
	}
}

// NewFromFiles seeds the store from base/state.json when present. The file
// maps user IDs to {"creditState": {...}} documents.
func NewFromFiles(base string) (*Store, error) {
	s := New()

	data, err := os.ReadFile(filepath.Join(base, "state.json"))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed state: %w", err)
	}

	var seed map[string]core.UserState
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed state: %w", err)
	}
	for userID, st := range seed {
		s.states[userID] = st.CreditState.Clone()
	}
	return s, nil
}

// FetchUserState returns a copy of the user's entries.
func (s *Store) FetchUserState(_ context.Context, userID string) (core.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.UserState{CreditState: s.states[userID].Clone()}, nil
}

// UpdateCreditState replaces the entry. Empty entries are removed.
func (s *Store) UpdateCreditState(_ context.Context, userID, instanceID string, entry core.CreditEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		st = core.CreditState{}
		s.states[userID] = st
	}
	if entry.IsEmpty() {
		delete(st, instanceID)
		return nil
	}
	st[instanceID] = entry
	return nil
}

func (s *Store) WasReminded(_ context.Context, userID, instanceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminded[userID][instanceID], nil
}

func (s *Store) MarkReminded(_ context.Context, userID, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reminded[userID] == nil {
		s.reminded[userID] = map[string]bool{}
	}
	s.reminded[userID][instanceID] = true
	return nil
}

// UpsertUsage keeps the last exported version of each row.
func (s *Store) UpsertUsage(_ context.Context, rows []sheets.UsageRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.exported[r.UserID+"/"+r.InstanceID] = r
	}
	return nil
}

// Exported returns the exported rows ordered by user and instance.
func (s *Store) Exported() []sheets.UsageRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sheets.UsageRow, 0, len(s.exported))
	for _, r := range s.exported {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].InstanceID < out[j].InstanceID
	})
	return out
}
