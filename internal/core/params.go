package core

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultBackgroundRadius = 100.0
	DefaultBlurSigma        = 1.0
	DefaultProminence       = 50.0

	MaxBackgroundRadius = 10000.0
	MaxBlurSigma        = 50.0
)

// ProcessingParameters are fixed for a run and applied to every channel of
// every image.
type ProcessingParameters struct {
	BackgroundRadius float64
	BlurSigma        float64
	Prominence       float64
}

// DefaultParameters returns the stock detection settings.
func DefaultParameters() ProcessingParameters {
	return ProcessingParameters{
		BackgroundRadius: DefaultBackgroundRadius,
		BlurSigma:        DefaultBlurSigma,
		Prominence:       DefaultProminence,
	}
}

// Validate checks the parameter ranges.
func (p ProcessingParameters) Validate() error {
	if math.IsNaN(p.BackgroundRadius) || p.BackgroundRadius <= 0 || p.BackgroundRadius > MaxBackgroundRadius {
		return fmt.Errorf("background radius must be greater than 0 and at most %g", MaxBackgroundRadius)
	}
	if math.IsNaN(p.BlurSigma) || p.BlurSigma < 0 || p.BlurSigma > MaxBlurSigma {
		return fmt.Errorf("blur sigma must be between 0 and %g", MaxBlurSigma)
	}
	if math.IsNaN(p.Prominence) || p.Prominence < 0 {
		return errors.New("prominence must not be negative")
	}
	return nil
}
