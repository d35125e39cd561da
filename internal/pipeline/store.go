package pipeline

import (
	"os"

	"spotroi/internal/core"
	"spotroi/internal/roi"
)

// RoiStore reads and writes ROI archives.
type RoiStore interface {
	Load(path string) (core.RoiSet, error)
	Save(path string, set core.RoiSet) error
}

var _ RoiStore = roi.Store{}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
