package models

import "fmt"

// MaxComparisonCars caps how many vehicles a single comparison may carry.
const MaxComparisonCars = 3

// Comparison is an ordered list of up to MaxComparisonCars vehicles.
type Comparison struct {
	Cars []Car `json:"cars"`
}

// NewComparison builds a comparison payload. Passing more than
// MaxComparisonCars vehicles is a caller contract violation and fails fast.
func NewComparison(cars []Car) (Comparison, error) {
	if len(cars) > MaxComparisonCars {
		return Comparison{}, fmt.Errorf("comparison allows at most %d cars, got %d", MaxComparisonCars, len(cars))
	}
	return Comparison{Cars: cars}, nil
}
