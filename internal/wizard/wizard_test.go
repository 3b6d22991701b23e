package wizard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitstop/internal/shopapi"
)

// fakeAPI records every call so tests can assert on fetch counts and exact
// submission payloads.
type fakeAPI struct {
	mu sync.Mutex

	vehicles    []shopapi.Vehicle
	vehiclesErr error

	slots     []shopapi.Slot
	slotsErr  error
	slotCalls []string // "date|service" per ListSlots call
	slotsHook func(date, service string) ([]shopapi.Slot, error)

	createdVehicles []shopapi.VehicleInput
	createVehErr    error

	appointments []shopapi.AppointmentRequest
	createErr    error
	createResp   *shopapi.Appointment
}

func (f *fakeAPI) ListVehicles(context.Context) ([]shopapi.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vehiclesErr != nil {
		return nil, f.vehiclesErr
	}
	return f.vehicles, nil
}

func (f *fakeAPI) CreateVehicle(_ context.Context, in shopapi.VehicleInput) (*shopapi.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createVehErr != nil {
		return nil, f.createVehErr
	}
	f.createdVehicles = append(f.createdVehicles, in)
	return &shopapi.Vehicle{
		ID: int64(100 + len(f.createdVehicles)), Make: in.Make, Model: in.Model,
		Year: in.Year, VIN: in.VIN, Plate: in.Plate, Color: in.Color,
	}, nil
}

func (f *fakeAPI) ListSlots(_ context.Context, date, serviceType string) ([]shopapi.Slot, error) {
	f.mu.Lock()
	f.slotCalls = append(f.slotCalls, date+"|"+serviceType)
	hook := f.slotsHook
	slots, err := f.slots, f.slotsErr
	f.mu.Unlock()
	if hook != nil {
		return hook(date, serviceType)
	}
	return slots, err
}

func (f *fakeAPI) CreateAppointment(_ context.Context, req shopapi.AppointmentRequest) (*shopapi.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments = append(f.appointments, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &shopapi.Appointment{ID: 1, VehicleID: req.VehicleID, SlotID: req.SlotID,
		ServiceType: req.ServiceType, Status: shopapi.StatusPending}, nil
}

func (f *fakeAPI) slotCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slotCalls)
}

func fixedClock(date string) func() time.Time {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

var testSlots = []shopapi.Slot{
	{ID: 11, Date: "2025-06-10", Start: "09:00", End: "10:00"},
	{ID: 12, Date: "2025-06-10", Start: "10:00", End: "11:00"},
}

// advanceToConfirm walks a fresh session to the confirm step.
func advanceToConfirm(t *testing.T, wiz *Wizard, api *fakeAPI) *Session {
	t.Helper()
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))
	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))
	require.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-10"))
	require.NoError(t, wiz.ChooseSlot(s, 11))
	require.Equal(t, StateConfirm, s.State())
	return s
}

func newTestWizard(api *fakeAPI) *Wizard {
	return NewWithClock(api, fixedClock("2025-06-01"))
}

func defaultAPI() *fakeAPI {
	return &fakeAPI{
		vehicles: []shopapi.Vehicle{{ID: 7, Make: "Toyota", Model: "Corolla", Year: 2020}},
		slots:    testSlots,
	}
}

func TestHappyPathSubmission(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	created, err := wiz.Submit(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, StateSuccess, s.State())

	require.Len(t, api.appointments, 1)
	req := api.appointments[0]
	assert.Equal(t, int64(7), req.VehicleID)
	assert.Equal(t, int64(11), req.SlotID)
	assert.Equal(t, "oil_change", req.ServiceType)
	assert.Nil(t, req.Notes, "empty notes must serialize as null, not empty string")
}

func TestSubmitWithNotes(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	require.NoError(t, wiz.SetNotes(s, "squeaking from the front left"))
	_, err := wiz.Submit(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, api.appointments, 1)
	require.NotNil(t, api.appointments[0].Notes)
	assert.Equal(t, "squeaking from the front left", *api.appointments[0].Notes)
}

func TestNotesTooLongRejectedBeforeNetwork(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	long := strings.Repeat("x", MaxNotesLen+1)
	err := wiz.SetNotes(s, long)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "notes", vErr.Field)
	assert.Empty(t, api.appointments, "no request may be issued for an invalid note")

	// A note at exactly the limit is fine.
	assert.NoError(t, wiz.SetNotes(s, strings.Repeat("x", MaxNotesLen)))
}

func TestUnknownServiceRejected(t *testing.T) {
	wiz := newTestWizard(defaultAPI())
	s := NewSession(42)

	err := wiz.ChooseService(context.Background(), s, "flux_capacitor")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, StateSelectService, s.State())
}

func TestDateChangeFetchesExactlyOnce(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))
	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))

	before := api.slotCallCount()
	require.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-10"))
	assert.Equal(t, before+1, api.slotCallCount(), "one date change, one fetch")

	// Re-selecting the displayed date is a no-op.
	require.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-10"))
	assert.Equal(t, before+1, api.slotCallCount())
}

func TestPastDateRejected(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))
	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))

	var vErr *ValidationError
	require.ErrorAs(t, wiz.SetDate(context.Background(), s, "2025-05-31"), &vErr)

	// Today is not "in the past".
	assert.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-01"))
}

func TestLiveEventOnlyRefetchesMatchingDate(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))
	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))
	require.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-10"))

	before := api.slotCallCount()
	require.NoError(t, wiz.HandleSlotChange(context.Background(), s, "2025-06-11"))
	assert.Equal(t, before, api.slotCallCount(), "event for another date must not fetch")

	require.NoError(t, wiz.HandleSlotChange(context.Background(), s, "2025-06-10"))
	assert.Equal(t, before+1, api.slotCallCount())

	// Sessions past slot selection ignore events entirely.
	require.NoError(t, wiz.ChooseSlot(s, 11))
	require.NoError(t, wiz.HandleSlotChange(context.Background(), s, "2025-06-10"))
	assert.Equal(t, before+1, api.slotCallCount())
}

func TestStaleSlotResponseDiscarded(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))
	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))

	slotsB := []shopapi.Slot{{ID: 31, Date: "2025-06-12", Start: "14:00", End: "15:00"}}

	// While the fetch for June 10 is in flight, the user switches to
	// June 12. The response for June 10 arrives afterwards and must be
	// thrown away.
	fired := false
	api.slotsHook = func(date, service string) ([]shopapi.Slot, error) {
		if date == "2025-06-10" && !fired {
			fired = true
			api.mu.Lock()
			api.slotsHook = nil
			api.slots = slotsB
			api.mu.Unlock()
			require.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-12"))
			return testSlots, nil
		}
		return slotsB, nil
	}

	_ = wiz.SetDate(context.Background(), s, "2025-06-10")

	view := s.View()
	assert.Equal(t, "2025-06-12", view.Draft.Date)
	require.Len(t, view.Slots, 1)
	assert.Equal(t, int64(31), view.Slots[0].ID, "slow response for the old date must not overwrite the fresh list")
}

func TestChooseSlotRequiresFreshList(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))
	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))
	require.NoError(t, wiz.SetDate(context.Background(), s, "2025-06-10"))

	var vErr *ValidationError
	require.ErrorAs(t, wiz.ChooseSlot(s, 999), &vErr, "unknown slot id")

	require.NoError(t, wiz.ChooseSlot(s, 12))
	assert.Equal(t, StateConfirm, s.State())
	assert.Equal(t, int64(12), s.View().Draft.Slot.ID)
}

func TestBackNavigation(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	// Confirm -> slot selection: the selection survives, the list refreshes.
	before := api.slotCallCount()
	require.NoError(t, wiz.Back(context.Background(), s))
	assert.Equal(t, StateSelectSlot, s.State())
	assert.NotNil(t, s.View().Draft.Slot)
	assert.Equal(t, before+1, api.slotCallCount())

	// Slot -> vehicle: the slot is dropped, service and vehicle survive.
	require.NoError(t, wiz.Back(context.Background(), s))
	view := s.View()
	assert.Equal(t, StateSelectVehicle, s.State())
	assert.Nil(t, view.Draft.Slot)
	assert.Equal(t, "oil_change", view.Draft.ServiceCode)
	require.NotNil(t, view.Draft.Vehicle)
	assert.Equal(t, int64(7), view.Draft.Vehicle.ID)

	// Vehicle -> service: everything still survives.
	require.NoError(t, wiz.Back(context.Background(), s))
	assert.Equal(t, StateSelectService, s.State())
	assert.Equal(t, "oil_change", s.View().Draft.ServiceCode)

	var trErr *ErrTransition
	require.ErrorAs(t, wiz.Back(context.Background(), s), &trErr)
}

func TestServiceChangeInvalidatesSlots(t *testing.T) {
	api := defaultAPI()
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	require.NoError(t, wiz.Back(context.Background(), s)) // confirm -> slot
	require.NoError(t, wiz.Back(context.Background(), s)) // slot -> vehicle
	require.NoError(t, wiz.Back(context.Background(), s)) // vehicle -> service

	require.NoError(t, wiz.ChooseService(context.Background(), s, "brake_service"))
	assert.Equal(t, TriggerService, s.pendingTrigger, "service change marks the next fetch")

	require.NoError(t, wiz.ChooseVehicle(context.Background(), s, 7))
	assert.Empty(t, s.pendingTrigger, "the fetch consumes the service-change mark")

	last := api.slotCalls[len(api.slotCalls)-1]
	assert.True(t, strings.HasSuffix(last, "|brake_service"),
		"slots must be fetched for the new service, got %q", last)
}

func TestSubmitConflictReturnsToSlotSelection(t *testing.T) {
	api := defaultAPI()
	api.createErr = &shopapi.Error{Kind: shopapi.KindConflict, Status: 409, Message: "slot already booked"}
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)
	before := api.slotCallCount()

	_, err := wiz.Submit(context.Background(), s)
	require.Error(t, err)

	view := s.View()
	assert.Equal(t, StateSelectSlot, s.State(), "conflict returns to slot selection, not step one")
	assert.Nil(t, view.Draft.Slot)
	assert.Equal(t, "oil_change", view.Draft.ServiceCode)
	assert.NotNil(t, view.Draft.Vehicle)
	assert.Equal(t, "slot already booked", view.LastError)
	assert.Equal(t, before+1, api.slotCallCount(), "fresh inventory after a conflict")
}

func TestSubmitAuthorizationFailureIsFatal(t *testing.T) {
	api := defaultAPI()
	api.createErr = &shopapi.Error{Kind: shopapi.KindAuthorization, Status: 401}
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	_, err := wiz.Submit(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State())
}

func TestSubmitFailureKeepsSelections(t *testing.T) {
	api := defaultAPI()
	api.createErr = &shopapi.Error{Kind: shopapi.KindUnavailable, Status: 502}
	wiz := newTestWizard(api)
	s := advanceToConfirm(t, wiz, api)

	_, err := wiz.Submit(context.Background(), s)
	require.Error(t, err)

	view := s.View()
	assert.Equal(t, StateConfirm, s.State())
	assert.NotNil(t, view.Draft.Slot)
	assert.NotNil(t, view.Draft.Vehicle)
	assert.NotEmpty(t, view.LastError)

	// The backend recovers; the same session submits successfully.
	api.mu.Lock()
	api.createErr = nil
	api.mu.Unlock()
	_, err = wiz.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, s.State())
}

func TestSlotFetchFailureKeepsStepUsable(t *testing.T) {
	api := defaultAPI()
	api.slotsErr = &shopapi.Error{Kind: shopapi.KindUnavailable, Status: 503}
	wiz := newTestWizard(api)
	s := NewSession(42)
	require.NoError(t, wiz.ChooseService(context.Background(), s, "oil_change"))

	err := wiz.ChooseVehicle(context.Background(), s, 7)
	require.Error(t, err)
	assert.Equal(t, StateSelectSlot, s.State(), "a failed fetch must not bounce the user off the step")
	assert.NotEmpty(t, s.View().LastError)

	api.mu.Lock()
	api.slotsErr = nil
	api.mu.Unlock()
	require.NoError(t, wiz.RetrySlots(context.Background(), s))
	assert.Empty(t, s.View().LastError)
	assert.Len(t, s.View().Slots, 2)
}
