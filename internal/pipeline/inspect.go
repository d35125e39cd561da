package pipeline

import (
	"errors"

	"spotroi/internal/core"
)

// ErrNoArchives is returned by InspectFirst when dir holds no ROI archive.
var ErrNoArchives = errors.New("no ROI archives found")

// InspectFirst loads the first *_ROIs.zip archive of dir in listing order.
func InspectFirst(store RoiStore, dir string) (core.ImageFile, core.RoiSet, error) {
	archives, err := Discover(dir, []string{ArchiveSuffix})
	if err != nil {
		return core.ImageFile{}, nil, err
	}
	if len(archives) == 0 {
		return core.ImageFile{}, nil, ErrNoArchives
	}

	first := archives[0]
	set, err := store.Load(first.Path)
	if err != nil {
		return first, nil, err
	}
	return first, set, nil
}
