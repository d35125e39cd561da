// Background subtraction with a rolling-ball approximation
package algorithms

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"spotroi/internal/core"
)

// RollingBackground estimates the background as a grey-level opening with a
// disk of the rolling radius and subtracts it. Large radii are computed on a
// shrunken copy and scaled back, the way ImageJ does.
type RollingBackground struct{}

// NewRollingBackground creates a new background subtraction algorithm
func NewRollingBackground() *RollingBackground {
	return &RollingBackground{}
}

func (r *RollingBackground) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}
	if input.Channels() != 1 {
		return gocv.NewMat(), fmt.Errorf("background subtraction needs a single channel, got %d", input.Channels())
	}

	radius := floatParam(params, "radius", 100.0)

	src := gocv.NewMat()
	defer src.Close()
	input.ConvertTo(&src, gocv.MatTypeCV32F)

	background, err := estimateBackground(src, radius)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer background.Close()

	output := gocv.NewMat()
	gocv.Subtract(src, background, &output)
	// Clamp tiny negative residues from interpolation
	gocv.Threshold(output, &output, 0, 0, gocv.ThresholdToZero)

	return output, nil
}

func estimateBackground(src gocv.Mat, radius float64) (gocv.Mat, error) {
	shrink := shrinkFactor(radius)
	size := image.Pt(src.Cols(), src.Rows())

	work := src.Clone()
	if shrink > 1 {
		small := image.Pt(max(1, size.X/shrink), max(1, size.Y/shrink))
		shrunk := gocv.NewMat()
		gocv.Resize(work, &shrunk, small, 0, 0, gocv.InterpolationArea)
		work.Close()
		work = shrunk
	}
	defer work.Close()

	r := max(1, int(radius/float64(shrink)+0.5))
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(2*r+1, 2*r+1))
	defer kernel.Close()

	opened := gocv.NewMat()
	gocv.MorphologyEx(work, &opened, gocv.MorphOpen, kernel)
	if opened.Empty() {
		opened.Close()
		return gocv.NewMat(), fmt.Errorf("background estimate is empty")
	}

	if shrink == 1 {
		return opened, nil
	}

	background := gocv.NewMat()
	gocv.Resize(opened, &background, size, 0, 0, gocv.InterpolationLinear)
	opened.Close()

	// The background may not exceed the image it was taken from
	gocv.Min(background, src, &background)
	return background, nil
}

// shrinkFactor mirrors ImageJ's rolling ball: bigger balls run on a
// proportionally smaller image.
func shrinkFactor(radius float64) int {
	switch {
	case radius <= 10:
		return 1
	case radius <= 30:
		return 2
	case radius <= 100:
		return 4
	default:
		return 8
	}
}

func (r *RollingBackground) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"radius": 100.0,
	}
}

func (r *RollingBackground) GetName() string {
	return "Subtract Background"
}

func (r *RollingBackground) GetDescription() string {
	return "Rolling-ball style background subtraction by grey-level opening"
}

func (r *RollingBackground) Validate(params map[string]interface{}) error {
	radius := floatParam(params, "radius", 100.0)
	if radius <= 0 || radius > core.MaxBackgroundRadius {
		return fmt.Errorf("radius must be greater than 0 and at most %g", core.MaxBackgroundRadius)
	}
	return nil
}

func (r *RollingBackground) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "radius",
			Type:        "float",
			Min:         0.0,
			Max:         core.MaxBackgroundRadius,
			Default:     100.0,
			Description: "Rolling ball radius in pixels",
		},
	}
}
