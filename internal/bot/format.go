package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pitstop/internal/catalog"
	"pitstop/internal/shopapi"
	"pitstop/internal/wizard"
)

func formatConfirmCard(view wizard.View) string {
	var sb strings.Builder
	sb.WriteString("📋 Please review your booking:\n\n")
	sb.WriteString("Service: " + serviceLabel(view.Draft.ServiceCode) + "\n")
	if v := view.Draft.Vehicle; v != nil {
		sb.WriteString("Vehicle: " + vehicleLabel(*v) + "\n")
	}
	if slot := view.Draft.Slot; slot != nil {
		sb.WriteString(fmt.Sprintf("When: %s, %s–%s\n", slot.Date, slot.Start, slot.End))
	}
	if view.Draft.Notes != "" {
		sb.WriteString(fmt.Sprintf("Note (%d/%d): %s\n",
			utf8.RuneCountInString(view.Draft.Notes), wizard.MaxNotesLen, view.Draft.Notes))
	}
	return sb.String()
}

func formatSuccess(appt *shopapi.Appointment) string {
	if appt == nil {
		return "✅ Your appointment is booked."
	}
	return fmt.Sprintf("✅ Booked! %s on %s at %s. Confirmation #%d.\n\nWe'll message you when the status changes. /my shows your appointments.",
		serviceLabel(appt.ServiceType), appt.Date, appt.Start, appt.ID)
}

func formatAppointmentLine(a shopapi.Appointment) string {
	return fmt.Sprintf("%s–%s · %s · %s", a.Start, a.End, serviceLabel(a.ServiceType), statusLabel(a.Status))
}

func serviceLabel(code string) string {
	if st, ok := catalog.ByCode(code); ok {
		return st.Label
	}
	return code
}

func statusLabel(status string) string {
	switch status {
	case shopapi.StatusPending:
		return "⏳ pending"
	case shopapi.StatusConfirmed:
		return "✔️ confirmed"
	case shopapi.StatusInProgress:
		return "🔧 in progress"
	case shopapi.StatusCompleted:
		return "✅ completed"
	case shopapi.StatusCancelled:
		return "✖️ cancelled"
	default:
		return status
	}
}
