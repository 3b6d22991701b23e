package wizard

import (
	"strings"
	"testing"

	"pitstop/internal/shopapi"
)

func TestValidateVehicle(t *testing.T) {
	valid := shopapi.VehicleInput{Make: "Toyota", Model: "Corolla", Year: 2020}

	tests := []struct {
		name      string
		mutate    func(*shopapi.VehicleInput)
		wantField string
	}{
		{"valid", func(*shopapi.VehicleInput) {}, ""},
		{"missing make", func(in *shopapi.VehicleInput) { in.Make = " " }, "make"},
		{"missing model", func(in *shopapi.VehicleInput) { in.Model = "" }, "model"},
		{"year too old", func(in *shopapi.VehicleInput) { in.Year = 1899 }, "year"},
		{"year too new", func(in *shopapi.VehicleInput) { in.Year = 2027 }, "year"},
		{"next model year ok", func(in *shopapi.VehicleInput) { in.Year = 2026 }, ""},
		{"vin too long", func(in *shopapi.VehicleInput) { in.VIN = strings.Repeat("A", MaxVINLen+1) }, "vin"},
		{"vin at limit ok", func(in *shopapi.VehicleInput) { in.VIN = strings.Repeat("A", MaxVINLen) }, ""},
		{"plate too long", func(in *shopapi.VehicleInput) { in.Plate = strings.Repeat("A", MaxPlateLen+1) }, "license_plate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := ValidateVehicle(in, 2025)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			vErr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, vErr.Field)
			}
		})
	}
}
