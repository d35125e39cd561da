// ROI (Region of Interest) records and per-call ROI sets
package core

import (
	"fmt"
	"image"
	"math"
)

// RoiType follows the ImageJ numbering so archives round-trip unchanged.
type RoiType int

const (
	RoiPolygon RoiType = iota
	RoiRect
	RoiOval
	RoiLine
	RoiFreeLine
	RoiPolyLine
	RoiNone
	RoiFreehand
	RoiTraced
	RoiAngle
	RoiPoint
)

var roiTypeNames = map[RoiType]string{
	RoiPolygon:  "polygon",
	RoiRect:     "rect",
	RoiOval:     "oval",
	RoiLine:     "line",
	RoiFreeLine: "freeline",
	RoiPolyLine: "polyline",
	RoiNone:     "none",
	RoiFreehand: "freehand",
	RoiTraced:   "traced",
	RoiAngle:    "angle",
	RoiPoint:    "point",
}

func (t RoiType) String() string {
	if name, ok := roiTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// HasCoordinates reports whether the type stores a vertex list.
func (t RoiType) HasCoordinates() bool {
	switch t {
	case RoiRect, RoiOval, RoiNone:
		return false
	}
	return true
}

// Point is an image coordinate. ImageJ stores sub-pixel vertices, so the
// components are floating point.
type Point struct {
	X, Y float64
}

// Round returns the nearest integer pixel.
func (p Point) Round() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Roi is a single named selection.
type Roi struct {
	Name   string
	Type   RoiType
	Bounds image.Rectangle
	Points []Point
}

// NewMultiPoint builds a point selection with one vertex per detected peak.
func NewMultiPoint(points []image.Point) Roi {
	pts := make([]Point, len(points))
	for i, p := range points {
		pts[i] = Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return Roi{
		Type:   RoiPoint,
		Bounds: calculateBounds(points),
		Points: pts,
	}
}

// NewRect builds a rectangular selection.
func NewRect(name string, rect image.Rectangle) Roi {
	return Roi{Name: name, Type: RoiRect, Bounds: rect.Canon()}
}

// Clone returns a deep copy so callers can rename without aliasing.
func (r Roi) Clone() Roi {
	out := r
	if r.Points != nil {
		out.Points = make([]Point, len(r.Points))
		copy(out.Points, r.Points)
	}
	return out
}

// Footprint returns the crop rectangle of the selection. Point and line
// selections can have zero width or height; the footprint is grown to
// include the last row and column so that it always covers one pixel.
func (r Roi) Footprint() image.Rectangle {
	b := r.Bounds.Canon()
	if b.Dx() == 0 {
		b.Max.X = b.Min.X + 1
	}
	if b.Dy() == 0 {
		b.Max.Y = b.Min.Y + 1
	}
	return b
}

// RoiSet is an ordered, call-scoped collection of selections. Every load or
// detection produces a fresh set, so nothing leaks between files.
type RoiSet []Roi

// Empty reports whether the set holds no selections.
func (s RoiSet) Empty() bool {
	return len(s) == 0
}

// DisplayName returns the record name, or the positional label ROI_<i+1>
// when the record is unnamed.
func (s RoiSet) DisplayName(i int) string {
	if i >= 0 && i < len(s) && s[i].Name != "" {
		return s[i].Name
	}
	return fmt.Sprintf("ROI_%d", i+1)
}

// PointCount sums the vertices of every record.
func (s RoiSet) PointCount() int {
	n := 0
	for _, r := range s {
		n += len(r.Points)
	}
	return n
}

// AllPoints flattens the vertices of every record in order.
func (s RoiSet) AllPoints() []Point {
	pts := make([]Point, 0, s.PointCount())
	for _, r := range s {
		pts = append(pts, r.Points...)
	}
	return pts
}

// calculateBounds calculates the bounding rectangle for a set of points
func calculateBounds(points []image.Point) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y

	for _, point := range points {
		if point.X < minX {
			minX = point.X
		}
		if point.X > maxX {
			maxX = point.X
		}
		if point.Y < minY {
			minY = point.Y
		}
		if point.Y > maxY {
			maxY = point.Y
		}
	}

	return image.Rect(minX, minY, maxX, maxY)
}

// BoundsOf returns the integer bounding rectangle of floating point vertices.
func BoundsOf(points []Point) image.Rectangle {
	ints := make([]image.Point, len(points))
	for i, p := range points {
		ints[i] = image.Pt(int(math.Floor(p.X)), int(math.Floor(p.Y)))
	}
	return calculateBounds(ints)
}
