package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pitstop/internal/metrics"
	"pitstop/internal/shopapi"
)

// The inline add-vehicle sub-flow collects one field per message while the
// session stays in vehicle selection. Optional fields accept "-" to skip.

type formStep string

const (
	formMake  formStep = "make"
	formModel formStep = "model"
	formYear  formStep = "year"
	formVIN   formStep = "vin"
	formPlate formStep = "plate"
	formColor formStep = "color"
)

const skipInput = "-"

type vehicleForm struct {
	step  formStep
	input shopapi.VehicleInput
}

// formPrompts in asking order.
var formPrompts = map[formStep]string{
	formMake:  "Vehicle make (e.g. Toyota):",
	formModel: "Vehicle model (e.g. Corolla):",
	formYear:  "Model year:",
	formVIN:   "VIN (or \"-\" to skip):",
	formPlate: "License plate (or \"-\" to skip):",
	formColor: "Color (or \"-\" to skip):",
}

// BeginAddVehicle starts the inline form. Only valid while selecting a
// vehicle, typically when the list came back empty.
func (w *Wizard) BeginAddVehicle(s *Session) (prompt string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSelectVehicle {
		return "", &ErrTransition{From: s.state, To: StateSelectVehicle}
	}
	s.form = &vehicleForm{step: formMake}
	return formPrompts[formMake], nil
}

// CancelAddVehicle abandons the form without leaving the step.
func (w *Wizard) CancelAddVehicle(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = nil
}

// FormActive reports whether the session is inside the add-vehicle form.
func (w *Wizard) FormActive(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form != nil
}

// HandleFormInput consumes one answer. It returns the next prompt until the
// form completes; on the last field it submits the vehicle to the backend,
// adds it to the session's list and returns the created record. Validation
// problems come back as *ValidationError with the form still open on the
// same field.
func (w *Wizard) HandleFormInput(ctx context.Context, s *Session, input string) (prompt string, created *shopapi.Vehicle, err error) {
	input = strings.TrimSpace(input)

	s.mu.Lock()
	if s.form == nil {
		s.mu.Unlock()
		return "", nil, fmt.Errorf("no vehicle form in progress")
	}
	form := s.form

	switch form.step {
	case formMake:
		if input == "" {
			s.mu.Unlock()
			return formPrompts[formMake], nil, &ValidationError{Field: "make", Message: "make is required"}
		}
		form.input.Make = input
		form.step = formModel
	case formModel:
		if input == "" {
			s.mu.Unlock()
			return formPrompts[formModel], nil, &ValidationError{Field: "model", Message: "model is required"}
		}
		form.input.Model = input
		form.step = formYear
	case formYear:
		year, convErr := strconv.Atoi(input)
		if convErr != nil {
			s.mu.Unlock()
			return formPrompts[formYear], nil, &ValidationError{Field: "year", Message: "enter the year as a number"}
		}
		currentYear := w.now().Year()
		if year < MinYear || year > currentYear+1 {
			s.mu.Unlock()
			return formPrompts[formYear], nil, &ValidationError{
				Field:   "year",
				Message: fmt.Sprintf("year must be between %d and %d", MinYear, currentYear+1),
			}
		}
		form.input.Year = year
		form.step = formVIN
	case formVIN:
		if input != skipInput {
			if len(input) > MaxVINLen {
				s.mu.Unlock()
				return formPrompts[formVIN], nil, &ValidationError{Field: "vin", Message: fmt.Sprintf("VIN must be at most %d characters", MaxVINLen)}
			}
			form.input.VIN = input
		}
		form.step = formPlate
	case formPlate:
		if input != skipInput {
			if len(input) > MaxPlateLen {
				s.mu.Unlock()
				return formPrompts[formPlate], nil, &ValidationError{Field: "license_plate", Message: fmt.Sprintf("license plate must be at most %d characters", MaxPlateLen)}
			}
			form.input.Plate = input
		}
		form.step = formColor
	case formColor:
		if input != skipInput {
			form.input.Color = input
		}
		return w.submitForm(ctx, s, form)
	}

	next := formPrompts[form.step]
	s.mu.Unlock()
	return next, nil, nil
}

// submitForm is entered with mu held and releases it around the API call.
func (w *Wizard) submitForm(ctx context.Context, s *Session, form *vehicleForm) (string, *shopapi.Vehicle, error) {
	in := form.input
	s.mu.Unlock()

	if err := ValidateVehicle(in, w.now().Year()); err != nil {
		return "", nil, err
	}
	vehicle, err := w.api.CreateVehicle(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = shopapi.UserMessage(err)
		metrics.IncBackendError(errKind(err))
		return "", nil, fmt.Errorf("create vehicle: %w", err)
	}
	s.form = nil
	s.vehicles = append(s.vehicles, *vehicle)
	s.lastError = ""
	return "", vehicle, nil
}
