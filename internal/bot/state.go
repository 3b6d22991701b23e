package bot

import (
	"sync"
	"time"
)

// uiState is per-user presentation state that does not belong in the wizard:
// which month the calendar shows, whether the next plain message is a login
// token or a note, and the slot message to repaint on live updates.
type uiState struct {
	AwaitingLogin bool
	AwaitingNotes bool
	CalYear       int
	CalMonth      time.Month
	SlotMsgID     int
}

type uiStore struct {
	mu sync.Mutex
	m  map[int64]*uiState
}

func newUIStore() *uiStore {
	return &uiStore{m: make(map[int64]*uiState)}
}

func (s *uiStore) get(userID int64) *uiState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &uiState{}
		s.m[userID] = st
	}
	return st
}

func (s *uiStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
