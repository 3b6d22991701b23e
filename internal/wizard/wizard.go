package wizard

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"pitstop/internal/catalog"
	"pitstop/internal/metrics"
	"pitstop/internal/shopapi"
)

// API is the slice of the backend the wizard needs. The concrete client is
// already bound to the acting customer's credential.
type API interface {
	ListVehicles(ctx context.Context) ([]shopapi.Vehicle, error)
	CreateVehicle(ctx context.Context, in shopapi.VehicleInput) (*shopapi.Vehicle, error)
	ListSlots(ctx context.Context, date, serviceType string) ([]shopapi.Slot, error)
	CreateAppointment(ctx context.Context, req shopapi.AppointmentRequest) (*shopapi.Appointment, error)
}

// Slot refresh triggers, recorded in metrics.
const (
	TriggerEnter   = "enter"
	TriggerDate    = "date_change"
	TriggerService = "service_change"
	TriggerLive    = "live_event"
	TriggerManual  = "manual_retry"
)

// ErrTransition is returned for step changes the state machine does not allow.
type ErrTransition struct {
	From, To State
}

func (e *ErrTransition) Error() string {
	return fmt.Sprintf("transition %s -> %s not allowed", e.From, e.To)
}

// Wizard drives sessions through the booking flow. It is stateless apart
// from its collaborators, so a single instance serves every session.
type Wizard struct {
	api API
	now func() time.Time
}

// New creates a wizard over a customer-bound API client.
func New(api API) *Wizard {
	return &Wizard{api: api, now: time.Now}
}

// NewWithClock injects a clock, for tests.
func NewWithClock(api API, now func() time.Time) *Wizard {
	return &Wizard{api: api, now: now}
}

// ChooseService records the service type and advances to vehicle selection.
// Changing the service invalidates any previously fetched slots, since
// availability depends on it. The vehicle list is fetched on first entry and
// reused for the rest of the session.
func (w *Wizard) ChooseService(ctx context.Context, s *Session, code string) error {
	if _, ok := catalog.ByCode(code); !ok {
		return &ValidationError{Field: "service", Message: "unknown service type"}
	}

	s.mu.Lock()
	if s.state != StateSelectService && s.state != StateSelectVehicle {
		from := s.state
		s.mu.Unlock()
		return &ErrTransition{From: from, To: StateSelectVehicle}
	}
	if s.draft.ServiceCode != code {
		if s.draft.ServiceCode != "" {
			s.pendingTrigger = TriggerService
		}
		s.draft.ServiceCode = code
		s.invalidateSlots()
	}
	if s.state == StateSelectService {
		s.setState(StateSelectVehicle)
	}
	needLoad := !s.vehiclesLoaded
	s.mu.Unlock()

	if needLoad {
		return w.ReloadVehicles(ctx, s)
	}
	return nil
}

// ReloadVehicles fetches the customer's vehicles. A failure leaves the step
// usable; the caller offers a manual retry.
func (w *Wizard) ReloadVehicles(ctx context.Context, s *Session) error {
	vehicles, err := w.api.ListVehicles(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = shopapi.UserMessage(err)
		metrics.IncBackendError(errKind(err))
		return fmt.Errorf("load vehicles: %w", err)
	}
	s.vehicles = vehicles
	s.vehiclesLoaded = true
	s.lastError = ""
	return nil
}

// ChooseVehicle records the vehicle and advances to slot selection, fetching
// slots for the current date (today, unless a date survives in the draft).
func (w *Wizard) ChooseVehicle(ctx context.Context, s *Session, vehicleID int64) error {
	s.mu.Lock()
	if s.state != StateSelectVehicle {
		from := s.state
		s.mu.Unlock()
		return &ErrTransition{From: from, To: StateSelectSlot}
	}
	var picked *shopapi.Vehicle
	for i := range s.vehicles {
		if s.vehicles[i].ID == vehicleID {
			picked = &s.vehicles[i]
			break
		}
	}
	if picked == nil {
		s.mu.Unlock()
		return &ValidationError{Field: "vehicle", Message: "select a vehicle from the list"}
	}
	s.draft.Vehicle = picked
	s.setState(StateSelectSlot)
	if s.draft.Date == "" {
		s.draft.Date = w.now().Format("2006-01-02")
	}
	trigger := TriggerEnter
	if s.pendingTrigger != "" {
		trigger = s.pendingTrigger
		s.pendingTrigger = ""
	}
	s.mu.Unlock()

	return w.refreshSlots(ctx, s, trigger)
}

// SetDate switches the displayed day. Dates strictly in the past are
// rejected; today stays selectable. A changed date drops the slot selection
// and triggers exactly one fresh fetch.
func (w *Wizard) SetDate(ctx context.Context, s *Session, date string) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return &ValidationError{Field: "date", Message: "invalid date"}
	}
	today := w.now().Format("2006-01-02")
	if day.Format("2006-01-02") < today {
		return &ValidationError{Field: "date", Message: "date is in the past"}
	}

	s.mu.Lock()
	if s.state != StateSelectSlot {
		from := s.state
		s.mu.Unlock()
		return &ErrTransition{From: from, To: StateSelectSlot}
	}
	if s.draft.Date == date {
		s.mu.Unlock()
		return nil
	}
	s.draft.Date = date
	s.draft.Slot = nil
	s.invalidateSlots()
	s.mu.Unlock()

	return w.refreshSlots(ctx, s, TriggerDate)
}

// RetrySlots re-fetches the slot list after a failed fetch.
func (w *Wizard) RetrySlots(ctx context.Context, s *Session) error {
	if s.State() != StateSelectSlot {
		return &ErrTransition{From: s.State(), To: StateSelectSlot}
	}
	return w.refreshSlots(ctx, s, TriggerManual)
}

// HandleSlotChange reacts to a shop-wide slot availability event. Only a
// session sitting in slot selection for the affected date refetches;
// everything else ignores the event without a network call.
func (w *Wizard) HandleSlotChange(ctx context.Context, s *Session, date string) error {
	s.mu.Lock()
	relevant := s.state == StateSelectSlot && s.draft.Date == date
	s.mu.Unlock()
	if !relevant {
		return nil
	}
	return w.refreshSlots(ctx, s, TriggerLive)
}

// refreshSlots replaces the slot cache wholesale. The session lock is not
// held across the network call; a sequence number tags the request so a slow
// response for an older selection context is discarded instead of applied.
func (w *Wizard) refreshSlots(ctx context.Context, s *Session, trigger string) error {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	date, service := s.draft.Date, s.draft.ServiceCode
	s.mu.Unlock()

	metrics.IncSlotRefresh(trigger)
	slots, err := w.api.ListSlots(ctx, date, service)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if seq == s.fetchSeq {
			s.lastError = shopapi.UserMessage(err)
		}
		metrics.IncBackendError(errKind(err))
		return fmt.Errorf("load slots: %w", err)
	}
	if seq != s.fetchSeq || date != s.draft.Date || service != s.draft.ServiceCode {
		metrics.IncStaleSlotDrop()
		return nil
	}
	s.slots = slots
	s.slotsDate = date
	s.slotsService = service
	s.lastError = ""
	return nil
}

// ChooseSlot records a slot picked from the freshly fetched list and
// advances to confirmation.
func (w *Wizard) ChooseSlot(s *Session, slotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSelectSlot {
		return &ErrTransition{From: s.state, To: StateConfirm}
	}
	if s.slotsDate != s.draft.Date || s.slotsService != s.draft.ServiceCode {
		return &ValidationError{Field: "slot", Message: "slot list is out of date, pick again"}
	}
	for i := range s.slots {
		if s.slots[i].ID == slotID {
			slot := s.slots[i]
			s.draft.Slot = &slot
			s.setState(StateConfirm)
			return nil
		}
	}
	return &ValidationError{Field: "slot", Message: "that slot is no longer available"}
}

// SetNotes attaches the optional free-text note.
func (w *Wizard) SetNotes(s *Session, notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLen {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", MaxNotesLen)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfirm {
		return &ErrTransition{From: s.state, To: StateConfirm}
	}
	s.draft.Notes = notes
	s.UpdatedAt = time.Now()
	return nil
}

// Back steps to the immediately preceding state. Selections survive, with
// one exception: leaving slot selection for the vehicle step clears the
// chosen slot, because the context that produced it may change.
func (w *Wizard) Back(ctx context.Context, s *Session) error {
	s.mu.Lock()
	switch s.state {
	case StateSelectVehicle:
		s.setState(StateSelectService)
		s.mu.Unlock()
		return nil
	case StateSelectSlot:
		s.draft.Slot = nil
		s.invalidateSlots()
		s.setState(StateSelectVehicle)
		s.mu.Unlock()
		return nil
	case StateConfirm:
		s.setState(StateSelectSlot)
		s.mu.Unlock()
		// The list may have drifted while the user sat on the confirm
		// screen; show fresh inventory without touching the selection.
		return w.refreshSlots(ctx, s, TriggerEnter)
	default:
		from := s.state
		s.mu.Unlock()
		return &ErrTransition{From: from, To: from}
	}
}

// Submit issues the booking request. Failures are non-destructive: the
// session returns to Confirm (or to slot selection on a conflict) with every
// selection intact and the backend's message surfaced.
func (w *Wizard) Submit(ctx context.Context, s *Session) (*shopapi.Appointment, error) {
	s.mu.Lock()
	if s.state != StateConfirm {
		from := s.state
		s.mu.Unlock()
		return nil, &ErrTransition{From: from, To: StateSubmitting}
	}
	if s.draft.ServiceCode == "" || s.draft.Vehicle == nil || s.draft.Slot == nil {
		s.mu.Unlock()
		return nil, &ValidationError{Field: "booking", Message: "service, vehicle and slot must all be selected"}
	}
	if utf8.RuneCountInString(s.draft.Notes) > MaxNotesLen {
		s.mu.Unlock()
		return nil, &ValidationError{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", MaxNotesLen)}
	}

	req := shopapi.AppointmentRequest{
		VehicleID:   s.draft.Vehicle.ID,
		SlotID:      s.draft.Slot.ID,
		ServiceType: s.draft.ServiceCode,
	}
	if s.draft.Notes != "" {
		notes := s.draft.Notes
		req.Notes = &notes
	}
	s.setState(StateSubmitting)
	s.mu.Unlock()

	created, err := w.api.CreateAppointment(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.lastError = shopapi.UserMessage(err)
		metrics.IncBackendError(errKind(err))
		switch {
		case shopapi.IsConflict(err):
			// The slot was consumed between fetch and submit. Return to
			// slot selection rather than step one.
			conflictMsg := s.lastError
			s.draft.Slot = nil
			s.invalidateSlots()
			s.setState(StateSelectSlot)
			s.mu.Unlock()
			metrics.IncBookingOutcome("conflict")
			// A successful refetch clears lastError; the conflict message
			// must survive it so the user learns why they are back here.
			_ = w.refreshSlots(ctx, s, TriggerEnter)
			s.mu.Lock()
			s.lastError = conflictMsg
			s.mu.Unlock()
			return nil, fmt.Errorf("create appointment: %w", err)
		case shopapi.IsAuthorization(err):
			s.setState(StateFailed)
			s.mu.Unlock()
			metrics.IncBookingOutcome("unauthorized")
			return nil, fmt.Errorf("create appointment: %w", err)
		default:
			s.setState(StateConfirm)
			s.mu.Unlock()
			metrics.IncBookingOutcome("error")
			return nil, fmt.Errorf("create appointment: %w", err)
		}
	}
	s.result = created
	s.lastError = ""
	s.setState(StateSuccess)
	s.mu.Unlock()
	metrics.IncBookingOutcome("success")
	return created, nil
}

// invalidateSlots drops the cached slot list. Callers hold mu. Bumping the
// sequence also orphans any fetch still in flight.
func (s *Session) invalidateSlots() {
	s.slots = nil
	s.slotsDate = ""
	s.slotsService = ""
	s.fetchSeq++
}

func errKind(err error) string {
	switch {
	case shopapi.IsAuthorization(err):
		return string(shopapi.KindAuthorization)
	case shopapi.IsConflict(err):
		return string(shopapi.KindConflict)
	case shopapi.IsValidation(err):
		return string(shopapi.KindValidation)
	default:
		return string(shopapi.KindUnavailable)
	}
}
