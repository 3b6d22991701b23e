// Package catalog holds the fixed list of service types offered by the shop.
package catalog

import "time"

// ServiceType describes one bookable kind of work.
type ServiceType struct {
	Code     string
	Label    string
	Duration time.Duration
}

// The catalog is compiled in; the backend validates codes on submission.
var serviceTypes = []ServiceType{
	{Code: "oil_change", Label: "Oil Change", Duration: 30 * time.Minute},
	{Code: "tire_rotation", Label: "Tire Rotation", Duration: 45 * time.Minute},
	{Code: "brake_service", Label: "Brake Service", Duration: 90 * time.Minute},
	{Code: "engine_diagnostic", Label: "Engine Diagnostic", Duration: 60 * time.Minute},
	{Code: "wheel_alignment", Label: "Wheel Alignment", Duration: 60 * time.Minute},
	{Code: "battery_replacement", Label: "Battery Replacement", Duration: 30 * time.Minute},
	{Code: "ac_service", Label: "A/C Service", Duration: 90 * time.Minute},
	{Code: "transmission_service", Label: "Transmission Service", Duration: 120 * time.Minute},
	{Code: "general_inspection", Label: "General Inspection", Duration: 60 * time.Minute},
}

// All returns the service types in display order.
func All() []ServiceType {
	out := make([]ServiceType, len(serviceTypes))
	copy(out, serviceTypes)
	return out
}

// ByCode looks up a service type by its code.
func ByCode(code string) (ServiceType, bool) {
	for _, st := range serviceTypes {
		if st.Code == code {
			return st, true
		}
	}
	return ServiceType{}, false
}
