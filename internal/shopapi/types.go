package shopapi

// Vehicle is a customer's vehicle as returned by the backend.
type Vehicle struct {
	ID    int64  `json:"id"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	VIN   string `json:"vin,omitempty"`
	Plate string `json:"license_plate,omitempty"`
	Color string `json:"color,omitempty"`
}

// VehicleInput is the payload for creating a vehicle.
type VehicleInput struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	VIN   string `json:"vin,omitempty"`
	Plate string `json:"license_plate,omitempty"`
	Color string `json:"color,omitempty"`
}

// Slot is one bookable interval on a calendar day. Slots are consumable
// inventory owned by the backend; the client only ever caches them.
type Slot struct {
	ID    int64  `json:"id"`
	Date  string `json:"date"`       // YYYY-MM-DD
	Start string `json:"start_time"` // HH:MM
	End   string `json:"end_time"`   // HH:MM
}

// Appointment statuses as defined by the backend.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Appointment is a booked (or historical) service visit.
type Appointment struct {
	ID          int64  `json:"id"`
	VehicleID   int64  `json:"vehicle_id"`
	SlotID      int64  `json:"slot_id"`
	ServiceType string `json:"service_type"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	Start       string `json:"start_time"`
	End         string `json:"end_time"`
}

// AppointmentRequest is the booking submission payload. Notes is a pointer so
// an empty note is serialized as null rather than "".
type AppointmentRequest struct {
	VehicleID   int64   `json:"vehicle_id"`
	SlotID      int64   `json:"slot_id"`
	ServiceType string  `json:"service_type"`
	Notes       *string `json:"notes"`
}

// Customer identifies the authenticated customer.
type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
