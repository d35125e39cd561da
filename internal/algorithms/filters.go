// Smoothing filters applied before peak detection
package algorithms

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"spotroi/internal/core"
)

// GaussianFilter implements Gaussian blur filter
type GaussianFilter struct{}

// NewGaussianFilter creates a new Gaussian filter algorithm
func NewGaussianFilter() *GaussianFilter {
	return &GaussianFilter{}
}

// Apply blurs with the given sigma. The kernel size follows from sigma, and
// a sigma of zero returns an unmodified copy.
func (g *GaussianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}

	sigma := floatParam(params, "sigma", 1.0)
	if sigma == 0 {
		return input.Clone(), nil
	}

	// Zero kernel size lets OpenCV derive it from sigma
	output := gocv.NewMat()
	gocv.GaussianBlur(input, &output, image.Pt(0, 0), sigma, sigma, gocv.BorderReplicate)
	if output.Empty() {
		output.Close()
		return gocv.NewMat(), fmt.Errorf("gaussian blur produced an empty image")
	}

	return output, nil
}

func (g *GaussianFilter) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"sigma": 1.0,
	}
}

func (g *GaussianFilter) GetName() string {
	return "Gaussian Filter"
}

func (g *GaussianFilter) GetDescription() string {
	return "Gaussian smoothing to suppress pixel noise before peak detection"
}

func (g *GaussianFilter) Validate(params map[string]interface{}) error {
	sigma := floatParam(params, "sigma", 1.0)
	if sigma < 0 || sigma > core.MaxBlurSigma {
		return fmt.Errorf("sigma must be between 0 and %g", core.MaxBlurSigma)
	}
	return nil
}

func (g *GaussianFilter) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "sigma",
			Type:        "float",
			Min:         0.0,
			Max:         core.MaxBlurSigma,
			Default:     1.0,
			Description: "Standard deviation in pixels (0 disables smoothing)",
		},
	}
}
