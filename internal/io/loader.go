// Image stack loading and saving
package io

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	return &ImageLoader{
		logger: logger,
	}
}

// LoadStack reads every page of a file at its native depth. The caller owns
// the returned Mats.
func (il *ImageLoader) LoadStack(path string) ([]gocv.Mat, error) {
	il.logger.WithField("path", path).Debug("Loading image stack")

	if !il.isSupportedImageFormat(path) {
		return nil, fmt.Errorf("unsupported image format: %s", path)
	}

	pages := gocv.IMReadMulti(path, gocv.IMReadUnchanged)
	if len(pages) == 0 {
		// Single-page readers that IMReadMulti does not handle
		mat := gocv.IMRead(path, gocv.IMReadUnchanged)
		if mat.Empty() {
			mat.Close()
			return nil, fmt.Errorf("failed to load image: %s", path)
		}
		pages = []gocv.Mat{mat}
	}

	if err := checkPages(pages); err != nil {
		closeAll(pages)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	il.logger.WithFields(logrus.Fields{
		"path":     path,
		"width":    pages[0].Cols(),
		"height":   pages[0].Rows(),
		"channels": pages[0].Channels(),
		"pages":    len(pages),
	}).Debug("Image stack loaded")

	return pages, nil
}

// checkPages requires every page to match the first in size, channel
// count and depth.
func checkPages(pages []gocv.Mat) error {
	first := pages[0]
	for i, page := range pages {
		switch {
		case page.Empty():
			return fmt.Errorf("page %d is empty", i+1)
		case page.Cols() != first.Cols() || page.Rows() != first.Rows():
			return fmt.Errorf("page %d is %dx%d, page 1 is %dx%d", i+1, page.Cols(), page.Rows(), first.Cols(), first.Rows())
		case page.Channels() != first.Channels():
			return fmt.Errorf("page %d has %d channels, page 1 has %d", i+1, page.Channels(), first.Channels())
		case page.Type() != first.Type():
			return fmt.Errorf("page %d is %v, page 1 is %v", i+1, page.Type(), first.Type())
		}
	}
	return nil
}

// LoadMask reads a single-plane label image at its native depth.
func (il *ImageLoader) LoadMask(path string) (gocv.Mat, error) {
	il.logger.WithField("path", path).Debug("Loading mask")

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("failed to load mask: %s", path)
	}
	if mat.Channels() != 1 {
		channels := mat.Channels()
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("mask %s has %d channels, want 1", path, channels)
	}

	return mat, nil
}

// SaveImage writes mat to path, replacing any existing file.
func (il *ImageLoader) SaveImage(mat gocv.Mat, path string) error {
	il.logger.WithField("path", path).Debug("Saving image")

	if mat.Empty() {
		return fmt.Errorf("cannot save empty image")
	}

	if !il.isSupportedImageFormat(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"path":     path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Debug("Image saved")

	return nil
}

func (il *ImageLoader) isSupportedImageFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// SupportedFormats lists the file extensions the loader accepts.
var SupportedFormats = []string{".tif", ".tiff", ".png", ".bmp", ".jpg", ".jpeg"}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
