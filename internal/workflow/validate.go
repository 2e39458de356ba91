package workflow

import (
	"fmt"
	"strings"

	"github.com/vbonduro/inspectflow/internal/domain"
)

const (
	vinLength    = 17
	minModelYear = 1886
	maxModelYear = 2100
	maxConcerns  = 50
)

func validateVehicle(v domain.VehicleRef) (domain.VehicleRef, error) {
	v.VIN = strings.ToUpper(strings.TrimSpace(v.VIN))
	v.Make = strings.TrimSpace(v.Make)
	v.Model = strings.TrimSpace(v.Model)
	v.LicensePlate = strings.ToUpper(strings.TrimSpace(v.LicensePlate))

	if v.VIN != "" {
		if len(v.VIN) != vinLength {
			return v, domain.Invalid("vehicle.vin", fmt.Sprintf("must be %d characters", vinLength))
		}
		for _, r := range v.VIN {
			if r == 'I' || r == 'O' || r == 'Q' || !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return v, domain.Invalid("vehicle.vin", fmt.Sprintf("invalid character %q", r))
			}
		}
	}
	if v.Year != 0 && (v.Year < minModelYear || v.Year > maxModelYear) {
		return v, domain.Invalid("vehicle.year", fmt.Sprintf("must be between %d and %d", minModelYear, maxModelYear))
	}
	if v.Mileage < 0 {
		return v, domain.Invalid("vehicle.mileage", "must not be negative")
	}
	if v.VIN == "" && v.LicensePlate == "" && v.Make == "" {
		return v, domain.Invalid("vehicle", "needs a VIN, license plate or make")
	}
	return v, nil
}

func validateConcerns(in []domain.Concern) ([]domain.Concern, error) {
	if len(in) > maxConcerns {
		return nil, domain.Invalid("concerns", fmt.Sprintf("at most %d allowed", maxConcerns))
	}
	out := make([]domain.Concern, 0, len(in))
	for n, c := range in {
		c.Description = strings.TrimSpace(c.Description)
		c.Category = strings.TrimSpace(c.Category)
		if c.Description == "" {
			return nil, domain.Invalid(fmt.Sprintf("concerns[%d].description", n), "must not be empty")
		}
		out = append(out, c)
	}
	return out, nil
}
