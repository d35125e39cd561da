package pipeline

import (
	"os"
	"strings"

	"spotroi/internal/core"
)

var (
	// TIFFExtensions are the image files the pipelines open.
	TIFFExtensions = []string{".tiff", ".tif"}
	// ArchiveExtensions are the ROI archives the crop pipeline reads.
	ArchiveExtensions = []string{".zip"}
)

// Discover lists the files directly inside dir whose names end with one of
// exts (case-insensitive). Subdirectories are not entered. The result keeps
// the directory listing order.
func Discover(dir string, exts []string) ([]core.ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &core.DirectoryAccessError{Path: dir, Err: err}
	}

	var files []core.ImageFile
	for _, e := range entries {
		if e.IsDir() || !hasExtension(e.Name(), exts) {
			continue
		}
		files = append(files, core.NewImageFile(dir, e.Name(), exts))
	}
	return files, nil
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
