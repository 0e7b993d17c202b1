package property

import (
	"cmp"
	"fmt"
)

// Positive rejects values that are zero or negative.
func Positive[T cmp.Ordered]() Validator[T] {
	var zero T
	return func(v T) error {
		if v <= zero {
			return fmt.Errorf("must be positive, got %v", v)
		}
		return nil
	}
}

// AtLeast rejects values below lowest.
func AtLeast[T cmp.Ordered](lowest T) Validator[T] {
	return func(v T) error {
		if v < lowest {
			return fmt.Errorf("must be at least %v, got %v", lowest, v)
		}
		return nil
	}
}
