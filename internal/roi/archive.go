package roi

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"spotroi/internal/core"
)

const entryExt = ".roi"

// LoadArchive reads every .roi entry of a RoiSet zip, in archive order.
// Each call returns a new set; nothing is retained between calls.
func LoadArchive(archivePath string) (core.RoiSet, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	set := make(core.RoiSet, 0, len(zr.File))
	for _, f := range zr.File {
		base := path.Base(f.Name)
		if !strings.HasSuffix(strings.ToLower(base), entryExt) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		r, err := Decode(data, base[:len(base)-len(entryExt)])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		set = append(set, r)
	}
	return set, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// SaveArchive writes set as a RoiSet zip, replacing any existing file. The
// archive is assembled in a temporary file and renamed into place, so a
// failed write never leaves a truncated archive behind.
func SaveArchive(archivePath string, set core.RoiSet) (err error) {
	dir := filepath.Dir(archivePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(archivePath)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	used := make(map[string]int, len(set))
	for i, r := range set {
		data, err := Encode(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", set.DisplayName(i), err)
		}
		w, err := zw.Create(uniqueEntryName(set.DisplayName(i), used) + entryExt)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), archivePath)
}

// uniqueEntryName appends -1, -2, ... to repeated names the way the ImageJ
// ROI Manager does.
func uniqueEntryName(name string, used map[string]int) string {
	n, seen := used[name]
	used[name] = n + 1
	if !seen {
		return name
	}
	candidate := fmt.Sprintf("%s-%d", name, n)
	for {
		if _, taken := used[candidate]; !taken {
			used[candidate] = 1
			return candidate
		}
		n++
		candidate = fmt.Sprintf("%s-%d", name, n)
	}
}

// Store persists RoiSets as archive files on disk.
type Store struct{}

// Load reads the archive at path.
func (Store) Load(path string) (core.RoiSet, error) {
	return LoadArchive(path)
}

// Save writes set to path.
func (Store) Save(path string, set core.RoiSet) error {
	return SaveArchive(path, set)
}
