// Package imaging implements the pipelines' image operations on OpenCV.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"spotroi/internal/algorithms"
	"spotroi/internal/core"
	imgio "spotroi/internal/io"
)

// OpenCV implements core.Ops with gocv.
type OpenCV struct {
	loader *imgio.ImageLoader
	logger logrus.FieldLogger
}

var _ core.Ops = (*OpenCV)(nil)

func NewOpenCV(logger logrus.FieldLogger) *OpenCV {
	return &OpenCV{
		loader: imgio.NewImageLoader(logger),
		logger: logger,
	}
}

func (o *OpenCV) Open(path string) (core.Image, error) {
	pages, err := o.loader.LoadStack(path)
	if err != nil {
		return nil, err
	}
	return newStack(filepath.Base(path), pages), nil
}

// SplitChannels returns one image per channel. A multi-page file of
// single-channel pages is treated as one channel per page; interleaved
// channels are split plane by plane.
func (o *OpenCV) SplitChannels(img core.Image) (map[int]core.Image, error) {
	s, err := asStack(img)
	if err != nil {
		return nil, err
	}

	out := make(map[int]core.Image)
	switch {
	case s.Channels() == 1:
		for i, p := range s.planes {
			out[i+1] = newStack(channelTitle(i+1, s.title), []gocv.Mat{p.Clone()})
		}
	default:
		for i, p := range s.planes {
			if p.Channels() != s.Channels() {
				return nil, fmt.Errorf("plane %d of %s has %d channels, plane 1 has %d", i+1, s.title, p.Channels(), s.Channels())
			}
		}
		perChannel := make([][]gocv.Mat, s.Channels())
		for _, p := range s.planes {
			for c, m := range gocv.Split(p) {
				perChannel[c] = append(perChannel[c], m)
			}
		}
		for c, planes := range perChannel {
			out[c+1] = newStack(channelTitle(c+1, s.title), planes)
		}
	}

	o.logger.WithFields(logrus.Fields{
		"image":    s.title,
		"channels": len(out),
	}).Debug("Split channels")

	return out, nil
}

func (o *OpenCV) SubtractBackground(img core.Image, rollingRadius float64) (core.Image, error) {
	return o.applyPerPlane(img, algorithms.SubtractBackground, map[string]interface{}{
		"radius": rollingRadius,
	})
}

func (o *OpenCV) GaussianBlur(img core.Image, sigma float64) (core.Image, error) {
	return o.applyPerPlane(img, algorithms.Gaussian, map[string]interface{}{
		"sigma": sigma,
	})
}

func (o *OpenCV) FindMaxima(img core.Image, prominence float64) (core.Roi, error) {
	s, err := asStack(img)
	if err != nil {
		return core.Roi{}, err
	}
	plane, err := s.plane()
	if err != nil {
		return core.Roi{}, err
	}

	points, err := algorithms.FindMaxima(plane, prominence)
	if err != nil {
		return core.Roi{}, fmt.Errorf("find maxima in %s: %w", s.title, err)
	}
	if len(points) == 0 {
		return core.Roi{}, core.ErrNoSelection
	}
	return core.NewMultiPoint(points), nil
}

// Duplicate crops every plane to rect clipped to the image.
func (o *OpenCV) Duplicate(img core.Image, rect image.Rectangle) (core.Image, error) {
	s, err := asStack(img)
	if err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	clipped := rect.Intersect(image.Rect(0, 0, s.Width(), s.Height()))
	if clipped.Empty() {
		return nil, fmt.Errorf("region %v lies outside %s (%dx%d)", rect, s.title, s.Width(), s.Height())
	}

	planes := make([]gocv.Mat, 0, len(s.planes))
	for _, p := range s.planes {
		region := p.Region(clipped)
		planes = append(planes, region.Clone())
		region.Close()
	}
	return newStack(s.title, planes), nil
}

// Save writes the image to path. Several planes are written as one
// interleaved image in plane order.
func (o *OpenCV) Save(img core.Image, path string) error {
	s, err := asStack(img)
	if err != nil {
		return err
	}
	if err := s.validate(); err != nil {
		return err
	}

	if len(s.planes) == 1 {
		return o.loader.SaveImage(s.planes[0], path)
	}

	var parts []gocv.Mat
	for _, p := range s.planes {
		if p.Channels() == 1 {
			parts = append(parts, p.Clone())
			continue
		}
		parts = append(parts, gocv.Split(p)...)
	}
	defer func() {
		for i := range parts {
			parts[i].Close()
		}
	}()

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(parts, &merged)

	return o.loader.SaveImage(merged, path)
}

// OpenMask loads a label mask, counts its distinct non-zero labels and
// stores the foreground eroded by each radius. Radius 0 is the plain
// foreground.
func (o *OpenCV) OpenMask(path string, erosionRadii ...int) (*core.Mask, error) {
	labels, err := o.loader.LoadMask(path)
	if err != nil {
		return nil, err
	}
	defer labels.Close()

	values := gocv.NewMat()
	defer values.Close()
	labels.ConvertTo(&values, gocv.MatTypeCV32F)
	data, err := values.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read mask %s: %w", path, err)
	}

	distinct := make(map[float32]struct{})
	for _, v := range data {
		if v > 0 {
			distinct[v] = struct{}{}
		}
	}

	mask := core.NewMask(values.Cols(), values.Rows(), len(distinct))

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(values, &binary, 0, 255, gocv.ThresholdBinary)
	foreground := gocv.NewMat()
	defer foreground.Close()
	binary.ConvertTo(&foreground, gocv.MatTypeCV8U)

	radii := append([]int{0}, erosionRadii...)
	for _, radius := range radii {
		eroded, err := algorithms.Apply(algorithms.ErodeDisk, foreground, map[string]interface{}{
			"radius": float64(radius),
		})
		if err != nil {
			return nil, fmt.Errorf("erode mask %s by %d: %w", path, radius, err)
		}
		bits, err := toBits(eroded)
		eroded.Close()
		if err != nil {
			return nil, fmt.Errorf("read eroded mask %s: %w", path, err)
		}
		mask.SetEroded(radius, bits)
	}

	o.logger.WithFields(logrus.Fields{
		"mask":  filepath.Base(path),
		"cells": mask.CellCount,
		"radii": erosionRadii,
	}).Debug("Mask loaded")

	return mask, nil
}

func (o *OpenCV) applyPerPlane(img core.Image, name string, params map[string]interface{}) (core.Image, error) {
	s, err := asStack(img)
	if err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := algorithms.ValidateParameters(name, params); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", name, s.title, err)
	}

	planes := make([]gocv.Mat, 0, len(s.planes))
	for _, p := range s.planes {
		out, err := algorithms.Apply(name, p, params)
		if err != nil {
			for i := range planes {
				planes[i].Close()
			}
			return nil, fmt.Errorf("%s on %s: %w", name, s.title, err)
		}
		planes = append(planes, out)
	}
	return newStack(s.title, planes), nil
}

func toBits(m gocv.Mat) ([]bool, error) {
	if !m.IsContinuous() {
		return nil, errors.New("mask data is not continuous")
	}
	data, err := m.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	bits := make([]bool, len(data))
	for i, v := range data {
		bits[i] = v > 0
	}
	return bits, nil
}

func asStack(img core.Image) (*Stack, error) {
	s, ok := img.(*Stack)
	if !ok {
		return nil, fmt.Errorf("image %T was not opened by the OpenCV backend", img)
	}
	return s, nil
}

func channelTitle(index int, title string) string {
	return fmt.Sprintf("C%d-%s", index, title)
}
