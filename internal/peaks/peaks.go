// Package peaks finds prominent local maxima in a single-plane intensity
// grid.
//
// A pixel is a maximum when no strictly higher pixel, and no area already
// claimed by a higher maximum, can be reached from it without dropping by
// more than the prominence. Equal-valued plateaus yield one maximum.
package peaks

import (
	"image"
	"math"
	"sort"
)

const (
	statusNone uint8 = iota
	statusClaimed
	statusDone
)

var neighbours = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Find returns the maxima of the w*h row-major grid in descending order of
// intensity. NaN pixels are ignored. A maximum must drop by more than the
// prominence somewhere around it; the single highest maximum of a
// non-uniform grid is kept even when it does not. A uniform grid has no
// maxima.
func Find(data []float32, w, h int, prominence float64) []image.Point {
	if w <= 0 || h <= 0 || len(data) < w*h {
		return nil
	}
	if prominence < 0 {
		prominence = 0
	}

	candidates := localMaxima(data, w, h)
	if len(candidates) == 0 || uniform(data[:w*h]) {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return data[candidates[i]] > data[candidates[j]]
	})

	status := make([]uint8, w*h)
	visited := make([]bool, w*h)
	var region []int
	var found []image.Point

	for _, c := range candidates {
		if status[c] != statusNone {
			continue
		}
		v0 := float64(data[c])
		floor := v0 - prominence

		region = append(region[:0], c)
		visited[c] = true
		isMax := true
		dropped := false

	flood:
		for i := 0; i < len(region); i++ {
			x, y := region[i]%w, region[i]/w
			for _, d := range neighbours {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				q := ny*w + nx
				if visited[q] {
					continue
				}
				v := float64(data[q])
				if math.IsNaN(v) {
					continue
				}
				if v > v0 || status[q] == statusClaimed {
					isMax = false
					break flood
				}
				if v > floor || v == v0 {
					visited[q] = true
					region = append(region, q)
				} else {
					dropped = true
				}
			}
		}

		if isMax && !dropped && len(found) > 0 {
			isMax = false
		}

		for _, p := range region {
			visited[p] = false
			switch {
			case isMax:
				status[p] = statusClaimed
			case float64(data[p]) == v0:
				status[p] = statusDone
			}
		}
		if isMax {
			found = append(found, image.Pt(c%w, c/w))
		}
	}
	return found
}

// localMaxima returns the indices of pixels not lower than any neighbour.
func localMaxima(data []float32, w, h int) []int {
	var out []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := data[y*w+x]
			if math.IsNaN(float64(v)) {
				continue
			}
			isMax := true
			for _, d := range neighbours {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if data[ny*w+nx] > v {
					isMax = false
					break
				}
			}
			if isMax {
				out = append(out, y*w+x)
			}
		}
	}
	return out
}

func uniform(data []float32) bool {
	first := true
	var ref float32
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		if first {
			ref, first = v, false
			continue
		}
		if v != ref {
			return false
		}
	}
	return true
}
