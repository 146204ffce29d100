package models

import (
	"fmt"

	"panoguess/pkg/geo"
)

// Region is a catalog entry: the answer shown to the player and the area
// searched for imagery.
type Region struct {
	Code string          `json:"code"`
	Name string          `json:"name"`
	BBox geo.BoundingBox `json:"bbox"`
}

// Validate checks the catalog invariants for a single region.
func (r Region) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("%w: region with empty code", ErrConfiguration)
	}
	if !r.BBox.Valid() {
		return fmt.Errorf("%w: region %s has invalid bbox %s", ErrConfiguration, r.Code, r.BBox)
	}
	return nil
}
