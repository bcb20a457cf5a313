package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/docsync/agent/internal/docsync"
)

// ScheduleStore provides an in-memory implementation for development/testing.
type ScheduleStore struct {
	mu      sync.RWMutex
	entries map[string]docsync.ScheduleEntry
	order   []string
}

// NewScheduleStore constructs a ScheduleStore.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{entries: make(map[string]docsync.ScheduleEntry)}
}

// CreateSchedule stores a schedule entry.
func (s *ScheduleStore) CreateSchedule(_ context.Context, entry docsync.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return errors.New("schedule already exists")
	}
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	return nil
}

// ListEnabled returns the enabled entries in creation order.
func (s *ScheduleStore) ListEnabled(_ context.Context) ([]docsync.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docsync.ScheduleEntry
	for _, id := range s.order {
		if entry, ok := s.entries[id]; ok && entry.Enabled {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListSchedules returns all entries in creation order.
func (s *ScheduleStore) ListSchedules(_ context.Context) ([]docsync.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docsync.ScheduleEntry
	for _, id := range s.order {
		if entry, ok := s.entries[id]; ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// DeleteSchedule removes an entry.
func (s *ScheduleStore) DeleteSchedule(_ context.Context, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[scheduleID]; !ok {
		return docsync.ErrNotFound
	}
	delete(s.entries, scheduleID)
	return nil
}

// MarkRun records the last fire time and the computed next fire time.
func (s *ScheduleStore) MarkRun(_ context.Context, scheduleID string, lastRun time.Time, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[scheduleID]
	if !ok {
		return docsync.ErrNotFound
	}
	entry.LastRun = pointerTime(lastRun)
	entry.NextRun = nextRun
	s.entries[scheduleID] = entry
	return nil
}
