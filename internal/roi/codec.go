// Package roi reads and writes ImageJ selections: single .roi records and
// the RoiSet zip archives the ImageJ ROI Manager produces.
package roi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"unicode/utf16"

	"spotroi/internal/core"
)

// Byte layout of the ImageJ .roi format.
const (
	headerSize  = 64
	header2Size = 64
	version     = 228

	offVersion   = 4
	offType      = 6
	offTop       = 8
	offLeft      = 10
	offBottom    = 12
	offRight     = 14
	offNCoords   = 16
	offX1        = 18 // also the int coordinate count when it exceeds 65535
	offY1        = 22
	offX2        = 26
	offY2        = 30
	offShapeSize = 36
	offOptions   = 50
	offHeader2   = 60

	h2NameOffset = 16
	h2NameLength = 20

	optSubPixel = 128

	minNameVersion     = 218
	minSubPixelVersion = 222
)

var (
	ErrNotRoi      = errors.New("not an ImageJ roi")
	ErrUnsupported = errors.New("unsupported roi type")
	ErrTruncated   = errors.New("truncated roi data")
)

var be = binary.BigEndian

// Encode serializes r in ImageJ .roi format.
func Encode(r core.Roi) ([]byte, error) {
	if r.Type < core.RoiPolygon || r.Type > core.RoiPoint || r.Type == core.RoiNone {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, r.Type)
	}
	if r.Type == core.RoiLine && len(r.Points) != 2 {
		return nil, fmt.Errorf("line roi needs 2 points, got %d", len(r.Points))
	}

	b := r.Bounds.Canon()
	n := 0
	if r.Type.HasCoordinates() && r.Type != core.RoiLine {
		n = len(r.Points)
	}
	subPixel := n > 0 && hasFraction(r.Points)

	coordBytes := n * 4
	if subPixel {
		coordBytes += n * 8
	}
	h2 := headerSize + coordBytes
	name := utf16.Encode([]rune(r.Name))

	buf := make([]byte, h2+header2Size+2*len(name))
	copy(buf, "Iout")
	be.PutUint16(buf[offVersion:], version)
	buf[offType] = byte(r.Type)
	be.PutUint16(buf[offTop:], uint16(int16(b.Min.Y)))
	be.PutUint16(buf[offLeft:], uint16(int16(b.Min.X)))
	be.PutUint16(buf[offBottom:], uint16(int16(b.Max.Y)))
	be.PutUint16(buf[offRight:], uint16(int16(b.Max.X)))

	if n > math.MaxUint16 {
		be.PutUint32(buf[offX1:], uint32(n))
	} else {
		be.PutUint16(buf[offNCoords:], uint16(n))
	}

	if r.Type == core.RoiLine {
		putFloat(buf, offX1, r.Points[0].X)
		putFloat(buf, offY1, r.Points[0].Y)
		putFloat(buf, offX2, r.Points[1].X)
		putFloat(buf, offY2, r.Points[1].Y)
	}

	var options uint16
	if subPixel {
		options |= optSubPixel
	}
	be.PutUint16(buf[offOptions:], options)
	be.PutUint32(buf[offHeader2:], uint32(h2))

	for i := 0; i < n; i++ {
		p := r.Points[i]
		be.PutUint16(buf[headerSize+2*i:], uint16(int16(int(math.Floor(p.X))-b.Min.X)))
		be.PutUint16(buf[headerSize+2*n+2*i:], uint16(int16(int(math.Floor(p.Y))-b.Min.Y)))
		if subPixel {
			putFloat(buf, headerSize+4*n+4*i, p.X)
			putFloat(buf, headerSize+8*n+4*i, p.Y)
		}
	}

	if len(name) > 0 {
		be.PutUint32(buf[h2+h2NameOffset:], uint32(h2+header2Size))
		be.PutUint32(buf[h2+h2NameLength:], uint32(len(name)))
		for i, u := range name {
			be.PutUint16(buf[h2+header2Size+2*i:], u)
		}
	}

	return buf, nil
}

// Decode parses a single .roi record. fallbackName is used when the record
// carries no embedded name (ImageJ uses the archive entry name).
func Decode(data []byte, fallbackName string) (core.Roi, error) {
	if len(data) < headerSize || string(data[:4]) != "Iout" {
		return core.Roi{}, ErrNotRoi
	}

	ver := int(be.Uint16(data[offVersion:]))
	typ := core.RoiType(data[offType])
	top := int(int16(be.Uint16(data[offTop:])))
	left := int(int16(be.Uint16(data[offLeft:])))
	bottom := int(int16(be.Uint16(data[offBottom:])))
	right := int(int16(be.Uint16(data[offRight:])))
	options := be.Uint16(data[offOptions:])

	if be.Uint32(data[offShapeSize:]) > 0 {
		return core.Roi{}, fmt.Errorf("%w: composite shape", ErrUnsupported)
	}

	r := core.Roi{
		Type:   typ,
		Bounds: image.Rect(left, top, right, bottom),
	}

	switch {
	case typ < core.RoiPolygon || typ > core.RoiPoint || typ == core.RoiNone:
		return core.Roi{}, fmt.Errorf("%w: %s", ErrUnsupported, typ)
	case typ == core.RoiRect || typ == core.RoiOval:
	case typ == core.RoiLine:
		r.Points = []core.Point{
			{X: getFloat(data, offX1), Y: getFloat(data, offY1)},
			{X: getFloat(data, offX2), Y: getFloat(data, offY2)},
		}
	default:
		n := int(be.Uint16(data[offNCoords:]))
		if n == 0 {
			n = int(be.Uint32(data[offX1:]))
		}
		points, err := decodeCoordinates(data, n, left, top, ver, options)
		if err != nil {
			return core.Roi{}, err
		}
		r.Points = points
	}

	r.Name = decodeName(data, ver)
	if r.Name == "" {
		r.Name = fallbackName
	}
	return r, nil
}

func decodeCoordinates(data []byte, n, left, top, ver int, options uint16) ([]core.Point, error) {
	if n < 0 || headerSize+4*n > len(data) {
		return nil, ErrTruncated
	}
	points := make([]core.Point, n)
	if options&optSubPixel != 0 && ver >= minSubPixelVersion && headerSize+12*n <= len(data) {
		for i := 0; i < n; i++ {
			points[i] = core.Point{
				X: getFloat(data, headerSize+4*n+4*i),
				Y: getFloat(data, headerSize+8*n+4*i),
			}
		}
		return points, nil
	}
	for i := 0; i < n; i++ {
		x := int(int16(be.Uint16(data[headerSize+2*i:])))
		y := int(int16(be.Uint16(data[headerSize+2*n+2*i:])))
		points[i] = core.Point{X: float64(left + x), Y: float64(top + y)}
	}
	return points, nil
}

func decodeName(data []byte, ver int) string {
	if ver < minNameVersion {
		return ""
	}
	h2 := int(be.Uint32(data[offHeader2:]))
	if h2 <= 0 || h2+header2Size > len(data) {
		return ""
	}
	off := int(be.Uint32(data[h2+h2NameOffset:]))
	length := int(be.Uint32(data[h2+h2NameLength:]))
	if off <= 0 || length <= 0 || off+2*length > len(data) {
		return ""
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = be.Uint16(data[off+2*i:])
	}
	return string(utf16.Decode(units))
}

func hasFraction(points []core.Point) bool {
	for _, p := range points {
		if p.X != math.Trunc(p.X) || p.Y != math.Trunc(p.Y) {
			return true
		}
	}
	return false
}

func putFloat(buf []byte, off int, v float64) {
	be.PutUint32(buf[off:], math.Float32bits(float32(v)))
}

func getFloat(data []byte, off int) float64 {
	return float64(math.Float32frombits(be.Uint32(data[off:])))
}
