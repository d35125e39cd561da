package pipeline

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"spotroi/internal/core"
	"spotroi/internal/roi"
)

type fakeImage struct {
	title    string
	channels int
	rect     image.Rectangle
	ops      *fakeOps
	closed   bool
}

func (f *fakeImage) Title() string { return f.title }
func (f *fakeImage) Width() int { return f.rect.Dx() }
func (f *fakeImage) Height() int { return f.rect.Dy() }
func (f *fakeImage) Channels() int { return 1 }
func (f *fakeImage) Planes() int { return f.channels }
func (f *fakeImage) Close() error {
	if !f.closed {
		f.closed = true
		f.ops.live--
	}
	return nil
}

// fakeOps stands in for the OpenCV backend. Channel images are titled
// C<k>-<file name>, and spots are keyed by that title.
type fakeOps struct {
	channels map[string]int
	spots    map[string][]image.Point
	failOpen map[string]bool
	failSave map[string]bool
	masks    map[string]*core.Mask

	opened []string
	stages []string
	saved  []string
	radii  [][]int
	live   int
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		channels: map[string]int{},
		spots:    map[string][]image.Point{},
		failOpen: map[string]bool{},
		failSave: map[string]bool{},
		masks:    map[string]*core.Mask{},
	}
}

func (o *fakeOps) newImage(title string, channels int, rect image.Rectangle) *fakeImage {
	o.live++
	return &fakeImage{title: title, channels: channels, rect: rect, ops: o}
}

func (o *fakeOps) Open(path string) (core.Image, error) {
	name := filepath.Base(path)
	o.opened = append(o.opened, name)
	if o.failOpen[name] {
		return nil, errors.New("corrupt file")
	}
	n, ok := o.channels[name]
	if !ok {
		n = 2
	}
	return o.newImage(name, n, image.Rect(0, 0, 100, 100)), nil
}

func (o *fakeOps) SplitChannels(img core.Image) (map[int]core.Image, error) {
	src := img.(*fakeImage)
	out := make(map[int]core.Image)
	for k := 1; k <= src.channels; k++ {
		out[k] = o.newImage(fmt.Sprintf("C%d-%s", k, src.title), 1, src.rect)
	}
	return out, nil
}

func (o *fakeOps) SubtractBackground(img core.Image, radius float64) (core.Image, error) {
	o.stages = append(o.stages, fmt.Sprintf("background:%s:%g", img.Title(), radius))
	src := img.(*fakeImage)
	return o.newImage(src.title, 1, src.rect), nil
}

func (o *fakeOps) GaussianBlur(img core.Image, sigma float64) (core.Image, error) {
	o.stages = append(o.stages, fmt.Sprintf("blur:%s:%g", img.Title(), sigma))
	src := img.(*fakeImage)
	return o.newImage(src.title, 1, src.rect), nil
}

func (o *fakeOps) FindMaxima(img core.Image, prominence float64) (core.Roi, error) {
	o.stages = append(o.stages, fmt.Sprintf("maxima:%s:%g", img.Title(), prominence))
	pts := o.spots[img.Title()]
	if len(pts) == 0 {
		return core.Roi{}, core.ErrNoSelection
	}
	return core.NewMultiPoint(pts), nil
}

func (o *fakeOps) Duplicate(img core.Image, rect image.Rectangle) (core.Image, error) {
	src := img.(*fakeImage)
	clipped := rect.Intersect(src.rect)
	if clipped.Empty() {
		return nil, errors.New("outside image")
	}
	return o.newImage(src.title, src.channels, clipped), nil
}

func (o *fakeOps) Save(img core.Image, path string) error {
	name := filepath.Base(path)
	if o.failSave[name] {
		return errors.New("disk full")
	}
	src := img.(*fakeImage)
	o.saved = append(o.saved, name)
	return os.WriteFile(path, []byte(fmt.Sprintf("%s %v %d", src.title, src.rect, src.channels)), 0o644)
}

func (o *fakeOps) OpenMask(path string, radii ...int) (*core.Mask, error) {
	o.radii = append(o.radii, radii)
	m, ok := o.masks[filepath.Base(path)]
	if !ok {
		return nil, errors.New("unreadable mask")
	}
	return m, nil
}

// failingStore writes real archives except for the listed file names.
type failingStore struct {
	roi.Store
	fail map[string]bool
}

func (s failingStore) Save(path string, set core.RoiSet) error {
	if s.fail[filepath.Base(path)] {
		return errors.New("permission denied")
	}
	return s.Store.Save(path, set)
}

func newTestLogger() (logrus.FieldLogger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
