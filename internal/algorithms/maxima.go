package algorithms

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"spotroi/internal/peaks"
)

// FindMaxima returns the prominent maxima of a single-channel image,
// brightest first.
func FindMaxima(input gocv.Mat, prominence float64) ([]image.Point, error) {
	if input.Empty() {
		return nil, fmt.Errorf("input image is empty")
	}
	if input.Channels() != 1 {
		return nil, fmt.Errorf("maxima need a single channel, got %d", input.Channels())
	}
	if prominence < 0 {
		return nil, fmt.Errorf("prominence must not be negative")
	}

	data := gocv.NewMat()
	defer func() { data.Close() }()
	input.ConvertTo(&data, gocv.MatTypeCV32F)
	if !data.IsContinuous() {
		cont := data.Clone()
		data.Close()
		data = cont
	}

	values, err := data.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}

	return peaks.Find(values, data.Cols(), data.Rows(), prominence), nil
}
