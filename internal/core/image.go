// Image handles, files and the image library contract
package core

import (
	"image"
	"path/filepath"
	"strings"
)

// Image is an open image handle owned by the caller. Close releases the
// underlying buffers and is safe to call more than once.
type Image interface {
	Title() string
	Width() int
	Height() int
	// Channels is the number of colour channels per plane.
	Channels() int
	// Planes is the number of stacked planes (pages) in the image.
	Planes() int
	Close() error
}

// Ops is the narrow set of image library capabilities the pipelines use.
// Every returned Image is a new handle the caller must Close.
type Ops interface {
	Open(path string) (Image, error)
	// SplitChannels returns one single-channel image per 1-based channel index.
	SplitChannels(img Image) (map[int]Image, error)
	SubtractBackground(img Image, rollingRadius float64) (Image, error)
	GaussianBlur(img Image, sigma float64) (Image, error)
	// FindMaxima returns a multi-point selection, or ErrNoSelection.
	FindMaxima(img Image, prominence float64) (Roi, error)
	// Duplicate crops every plane and channel to rect.
	Duplicate(img Image, rect image.Rectangle) (Image, error)
	Save(img Image, path string) error
	// OpenMask loads a label mask and erodes its foreground by each radius.
	OpenMask(path string, erosionRadii ...int) (*Mask, error)
}

// ImageFile is a discovered input file.
type ImageFile struct {
	Path     string
	Name     string
	BaseName string
}

// NewImageFile builds an ImageFile for name inside dir, stripping the first
// matching extension (case-insensitive) to form the base name.
func NewImageFile(dir, name string, exts []string) ImageFile {
	return ImageFile{
		Path:     filepath.Join(dir, name),
		Name:     name,
		BaseName: StripExtension(name, exts),
	}
}

// StripExtension removes a recognized extension from name.
func StripExtension(name string, exts []string) string {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// MatchedPair associates a ROI archive with the image it was drawn on.
type MatchedPair struct {
	Archive ImageFile
	Image   ImageFile
}

// Mask is a labelled cell mask with pre-computed erosions of its
// foreground.
type Mask struct {
	Width     int
	Height    int
	CellCount int
	eroded    map[int][]bool
}

// NewMask creates an empty mask of the given size.
func NewMask(width, height, cellCount int) *Mask {
	return &Mask{
		Width:     width,
		Height:    height,
		CellCount: cellCount,
		eroded:    make(map[int][]bool),
	}
}

// SetEroded stores the row-major foreground bitmap eroded by radius.
func (m *Mask) SetEroded(radius int, bits []bool) {
	m.eroded[radius] = bits
}

// Contains reports whether p is inside the image bounds.
func (m *Mask) Contains(p image.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.Width && p.Y < m.Height
}

// Inside reports whether p lies in the foreground eroded by radius.
// Unknown radii and out-of-bounds points are outside.
func (m *Mask) Inside(radius int, p image.Point) bool {
	bits, ok := m.eroded[radius]
	if !ok || !m.Contains(p) {
		return false
	}
	idx := p.Y*m.Width + p.X
	return idx < len(bits) && bits[idx]
}
