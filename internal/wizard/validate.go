package wizard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pitstop/internal/shopapi"
)

// Client-side limits. The backend re-validates everything; these exist so
// the user hears about a bad field before a round trip.
const (
	MaxNotesLen = 500
	MaxVINLen   = 17
	MaxPlateLen = 20
	MinYear     = 1900
)

// ValidationError is a client-detected input rejection. It never needs the
// network to recover from.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateVehicle checks a vehicle form before it is sent to the backend.
// currentYear bounds the model year at current_year + 1.
func ValidateVehicle(in shopapi.VehicleInput, currentYear int) error {
	if strings.TrimSpace(in.Make) == "" {
		return &ValidationError{Field: "make", Message: "make is required"}
	}
	if strings.TrimSpace(in.Model) == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if in.Year < MinYear || in.Year > currentYear+1 {
		return &ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("year must be between %d and %d", MinYear, currentYear+1),
		}
	}
	if utf8.RuneCountInString(in.VIN) > MaxVINLen {
		return &ValidationError{Field: "vin", Message: fmt.Sprintf("VIN must be at most %d characters", MaxVINLen)}
	}
	if utf8.RuneCountInString(in.Plate) > MaxPlateLen {
		return &ValidationError{Field: "license_plate", Message: fmt.Sprintf("license plate must be at most %d characters", MaxPlateLen)}
	}
	return nil
}
