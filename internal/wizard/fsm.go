// Package wizard implements the appointment booking flow as a small state
// machine: pick a service, pick a vehicle, pick a slot, confirm, submit.
// The backend stays authoritative for slot availability; everything held
// here is a draft plus caches that are cheap to throw away.
package wizard

import (
	"sync"
	"time"

	"pitstop/internal/shopapi"
)

// State is the current step of a booking session.
type State string

const (
	StateSelectService State = "select_service"
	StateSelectVehicle State = "select_vehicle"
	StateSelectSlot    State = "select_slot"
	StateConfirm       State = "confirm"
	StateSubmitting    State = "submitting"
	StateSuccess       State = "success"
	StateFailed        State = "failed"
)

// transitions lists the allowed edges, including backward navigation and the
// recovery edges out of a failed submission.
var transitions = map[State][]State{
	StateSelectService: {StateSelectVehicle},
	StateSelectVehicle: {StateSelectSlot, StateSelectService},
	StateSelectSlot:    {StateConfirm, StateSelectVehicle},
	StateConfirm:       {StateSubmitting, StateSelectSlot},
	StateSubmitting:    {StateSuccess, StateConfirm, StateSelectSlot, StateFailed},
	StateSuccess:       {},
	StateFailed:        {},
}

// CanTransition checks if moving between two states is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Draft holds the selections collected so far.
type Draft struct {
	ServiceCode string
	Vehicle     *shopapi.Vehicle
	Date        string // YYYY-MM-DD
	Slot        *shopapi.Slot
	Notes       string
}

// Session is one customer's booking attempt. All fields are guarded by mu;
// use the Wizard methods or View to touch them.
type Session struct {
	UserID int64
	ChatID int64

	mu    sync.Mutex
	state State
	draft Draft

	// Vehicle list cached for the duration of the wizard session.
	vehicles       []shopapi.Vehicle
	vehiclesLoaded bool

	// Slot cache, tagged with the selection context it was fetched for.
	// Replaced wholesale on every fetch; never merged.
	slots        []shopapi.Slot
	slotsDate    string
	slotsService string
	fetchSeq     uint64

	// Reason for the next slot fetch, consumed by the fetch that follows a
	// service change so it is reported distinctly from a plain step entry.
	pendingTrigger string

	form *vehicleForm

	lastError string
	result    *shopapi.Appointment

	StartedAt time.Time
	UpdatedAt time.Time
}

// NewSession starts a session at service selection.
func NewSession(userID int64) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		state:     StateSelectService,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsExpired checks if the session has gone stale.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// setState moves the session if the edge is allowed. Callers hold mu.
func (s *Session) setState(to State) bool {
	if !CanTransition(s.state, to) {
		return false
	}
	s.state = to
	s.UpdatedAt = time.Now()
	return true
}

// View is a race-free snapshot of a session for rendering.
type View struct {
	State      State
	Draft      Draft
	Vehicles   []shopapi.Vehicle
	Slots      []shopapi.Slot
	LastError  string
	Result     *shopapi.Appointment
	FormActive bool
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		State:      s.state,
		Draft:      s.draft,
		Vehicles:   append([]shopapi.Vehicle(nil), s.vehicles...),
		Slots:      append([]shopapi.Slot(nil), s.slots...),
		LastError:  s.lastError,
		Result:     s.result,
		FormActive: s.form != nil,
	}
}

// SessionStore keeps at most one active session per user.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	timeout  time.Duration
}

// NewSessionStore creates a store with the given idle timeout.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns the user's session or nil.
func (ss *SessionStore) Get(userID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[userID]
}

// GetOrCreate returns a live session, replacing an expired one.
func (ss *SessionStore) GetOrCreate(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if s, ok := ss.sessions[userID]; ok && !s.IsExpired(ss.timeout) {
		return s
	}
	s := NewSession(userID)
	ss.sessions[userID] = s
	return s
}

// Reset discards any existing session and starts fresh.
func (ss *SessionStore) Reset(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s := NewSession(userID)
	ss.sessions[userID] = s
	return s
}

// Delete removes a session, e.g. after success or navigating away.
func (ss *SessionStore) Delete(userID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Active returns the sessions currently in slot selection, for fan-out of
// slot-change events.
func (ss *SessionStore) Active() []*Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]*Session, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		out = append(out, s)
	}
	return out
}

// Cleanup evicts expired sessions and reports how many were removed.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	removed := 0
	for id, s := range ss.sessions {
		if s.IsExpired(ss.timeout) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}
