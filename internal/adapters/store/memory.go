// Package store implements the meeting lookup the hub validates against.
package store

import (
	"context"
	"sync"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
)

// MemoryStore keeps meetings in a map. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	meetings map[domain.MeetingID]domain.Meeting
}

func NewMemoryStore(seed ...domain.Meeting) *MemoryStore {
	s := &MemoryStore{meetings: make(map[domain.MeetingID]domain.Meeting)}
	for _, m := range seed {
		s.meetings[m.ID] = m
	}
	return s
}

func (s *MemoryStore) GetMeeting(_ context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, core.ErrMeetingNotFound
	}
	return &m, nil
}

func (s *MemoryStore) Put(m domain.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[m.ID] = m
}

func (s *MemoryStore) SetHostJoined(id domain.MeetingID, joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meetings[id]; ok {
		m.HasJoinedHost = joined
		s.meetings[id] = m
	}
}

func (s *MemoryStore) SetStatus(id domain.MeetingID, st domain.MeetingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meetings[id]; ok {
		m.Status = st
		s.meetings[id] = m
	}
}
