// Morphological operations algorithms
package algorithms

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// DiskErosion erodes a binary mask with a disk. Pixels outside the image
// count as background, so foreground touching the border shrinks too.
type DiskErosion struct{}

// NewDiskErosion creates a new erosion algorithm
func NewDiskErosion() *DiskErosion {
	return &DiskErosion{}
}

func (e *DiskErosion) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}

	radius := int(floatParam(params, "radius", 4.0))
	if radius == 0 {
		return input.Clone(), nil
	}

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(input, &padded, radius, radius, radius, radius, gocv.BorderConstant, color.RGBA{})

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(2*radius+1, 2*radius+1))
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(padded, &eroded, kernel)
	if eroded.Empty() {
		return gocv.NewMat(), fmt.Errorf("erosion produced an empty image")
	}

	region := eroded.Region(image.Rect(radius, radius, radius+input.Cols(), radius+input.Rows()))
	defer region.Close()

	return region.Clone(), nil
}

func (e *DiskErosion) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"radius": 4.0,
	}
}

func (e *DiskErosion) GetName() string {
	return "Disk Erosion"
}

func (e *DiskErosion) GetDescription() string {
	return "Binary erosion with a disk to pull mask edges inward"
}

func (e *DiskErosion) Validate(params map[string]interface{}) error {
	radius := floatParam(params, "radius", 4.0)
	if radius < 0 || radius > 500 {
		return fmt.Errorf("radius must be between 0 and 500")
	}
	return nil
}

func (e *DiskErosion) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "radius",
			Type:        "int",
			Min:         0.0,
			Max:         500.0,
			Default:     4.0,
			Description: "Disk radius in pixels",
		},
	}
}
