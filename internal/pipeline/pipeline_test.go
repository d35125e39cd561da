package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"spotroi/internal/core"
	"spotroi/internal/roi"
)

// --- Discover ---

func TestDiscoverFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.tif")
	touch(t, dir, "B.TIFF")
	touch(t, dir, "notes.txt")
	touch(t, dir, "rois.zip")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.tif"), 0o755))

	files, err := Discover(dir, TIFFExtensions)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "B.TIFF", files[0].Name)
	require.Equal(t, "B", files[0].BaseName)
	require.Equal(t, "a", files[1].BaseName)
	require.Equal(t, filepath.Join(dir, "a.tif"), files[1].Path)

	archives, err := Discover(dir, ArchiveExtensions)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	require.Equal(t, "rois", archives[0].BaseName)
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	files, err := Discover(t.TempDir(), TIFFExtensions)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestDiscoverMissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), TIFFExtensions)
	require.Error(t, err)
	require.True(t, core.IsDirectoryAccess(err))
}

// --- Detection ---

func newDetector(ops *fakeOps, store RoiStore) *Detector {
	log, _ := newTestLogger()
	return &Detector{
		Ops:    ops,
		Store:  store,
		Params: core.DefaultParameters(),
		Log:    log,
	}
}

func TestDetectWritesOneArchivePerChannelWithSpots(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.tif")
	touch(t, in, "b.tiff")
	touch(t, in, "notes.txt")

	ops := newFakeOps()
	ops.spots["C1-a.tif"] = []image.Point{{X: 3, Y: 4}, {X: 10, Y: 20}}
	ops.spots["C2-a.tif"] = []image.Point{{X: 50, Y: 60}}
	ops.spots["C1-b.tiff"] = []image.Point{{X: 1, Y: 1}}

	stats, err := newDetector(ops, roi.Store{}).Run(context.Background(), in, out)
	require.NoError(t, err)

	require.Equal(t, []string{"a.tif", "b.tiff"}, ops.opened)
	require.Equal(t, []string{"a_C1_ROIs.zip", "a_C2_ROIs.zip", "b_C1_ROIs.zip"}, listDir(t, out))
	require.Equal(t, Stats{Total: 2, Processed: 2, Empty: 1, Written: 3, BytesWritten: stats.BytesWritten}, stats)
	require.Positive(t, stats.BytesWritten)
	require.Zero(t, ops.live, "every image handle must be closed")

	set, err := roi.LoadArchive(filepath.Join(out, "a_C1_ROIs.zip"))
	require.NoError(t, err)
	require.Len(t, set, 1)
	require.Equal(t, "a_C1", set[0].Name)
	require.Equal(t, core.RoiPoint, set[0].Type)
	require.Equal(t, []core.Point{{X: 3, Y: 4}, {X: 10, Y: 20}}, set[0].Points)
}

func TestDetectAppliesStagesInOrder(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.tif")

	ops := newFakeOps()
	ops.channels["a.tif"] = 1
	d := newDetector(ops, roi.Store{})
	d.Params = core.ProcessingParameters{BackgroundRadius: 25, BlurSigma: 2, Prominence: 10}

	_, err := d.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, []string{
		"background:C1-a.tif:25",
		"blur:C1-a.tif:2",
		"maxima:C1-a.tif:10",
	}, ops.stages)
}

func TestDetectSkipsMissingChannels(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "mono.tif")

	ops := newFakeOps()
	ops.channels["mono.tif"] = 1
	ops.spots["C1-mono.tif"] = []image.Point{{X: 5, Y: 5}}

	stats, err := newDetector(ops, roi.Store{}).Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, []string{"mono_C1_ROIs.zip"}, listDir(t, out))
	require.Zero(t, stats.Failed)
	require.Len(t, ops.stages, 3)
}

func TestDetectWriteFailureDoesNotStopBatch(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.tif")
	touch(t, in, "b.tif")

	ops := newFakeOps()
	ops.spots["C1-a.tif"] = []image.Point{{X: 1, Y: 1}}
	ops.spots["C2-a.tif"] = []image.Point{{X: 2, Y: 2}}
	ops.spots["C1-b.tif"] = []image.Point{{X: 3, Y: 3}}
	store := failingStore{fail: map[string]bool{"a_C1_ROIs.zip": true}}

	stats, err := newDetector(ops, store).Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, []string{"a_C2_ROIs.zip", "b_C1_ROIs.zip"}, listDir(t, out))
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 2, stats.Written)
	require.Equal(t, 2, stats.Processed)
}

func TestDetectUnreadableImageIsCounted(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "bad.tif")
	touch(t, in, "good.tif")

	ops := newFakeOps()
	ops.failOpen["bad.tif"] = true
	ops.spots["C2-good.tif"] = []image.Point{{X: 9, Y: 9}}

	stats, err := newDetector(ops, roi.Store{}).Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, stats.Processed)
	require.Equal(t, []string{"good_C2_ROIs.zip"}, listDir(t, out))
}

func TestDetectMissingInputDirectoryIsFatal(t *testing.T) {
	ops := newFakeOps()
	_, err := newDetector(ops, roi.Store{}).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.True(t, core.IsDirectoryAccess(err))
	require.Empty(t, ops.opened)
}

func TestDetectRejectsInvalidParameters(t *testing.T) {
	d := newDetector(newFakeOps(), roi.Store{})
	d.Params.BackgroundRadius = 0
	_, err := d.Run(context.Background(), t.TempDir(), t.TempDir())
	require.Error(t, err)
}

func TestDetectStopsWhenCancelled(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.tif")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ops := newFakeOps()
	stats, err := newDetector(ops, roi.Store{}).Run(ctx, in, out)
	require.NoError(t, err)
	require.Empty(t, ops.opened)
	require.Equal(t, 1, stats.Total)
	require.Zero(t, stats.Processed)
}

func TestRunRefusesLockedOutput(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	lock := flock.New(filepath.Join(out, LockFileName))
	ok, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Unlock()

	_, err = newDetector(newFakeOps(), roi.Store{}).Run(context.Background(), in, out)
	require.ErrorIs(t, err, ErrOutputLocked)
}

func TestProcessChannelNoSelectionIsNotAnError(t *testing.T) {
	ops := newFakeOps()
	ch := ops.newImage("C1-x.tif", 1, image.Rect(0, 0, 10, 10))

	set, err := ProcessChannel(ops, ch, core.DefaultParameters())
	require.NoError(t, err)
	require.True(t, set.Empty())
	require.Equal(t, 1, ops.live, "intermediates must be released")
}

func TestPersistRoiSetNeverWritesEmptySet(t *testing.T) {
	dir := t.TempDir()
	_, err := PersistRoiSet(roi.Store{}, core.RoiSet{}, dir, "x_C1")
	require.Error(t, err)
	require.Empty(t, listDir(t, dir))
}

func TestPersistRoiSetWrapsWriteError(t *testing.T) {
	set := core.RoiSet{core.NewMultiPoint([]image.Point{{X: 1, Y: 1}})}
	store := failingStore{fail: map[string]bool{"x_C1_ROIs.zip": true}}

	_, err := PersistRoiSet(store, set, t.TempDir(), "x_C1")
	var werr *core.IOWriteError
	require.True(t, errors.As(err, &werr))
	require.Equal(t, "x_C1_ROIs.zip", filepath.Base(werr.Path))
	require.Empty(t, set[0].Name, "the caller's set must not be renamed")
}

// --- Matching ---

func files(names ...string) []core.ImageFile {
	var out []core.ImageFile
	for _, n := range names {
		exts := TIFFExtensions
		if filepath.Ext(n) == ".zip" {
			exts = ArchiveExtensions
		}
		out = append(out, core.NewImageFile("/data", n, exts))
	}
	return out
}

func TestMatchPairsPrefixCollision(t *testing.T) {
	archives := files("sample1.zip")
	images := files("sample10.tif", "sample1.tif")

	pairs, unmatched := MatchPairs(archives, images, MatchPrefix)
	require.Empty(t, unmatched)
	require.Len(t, pairs, 1)
	require.Equal(t, "sample10.tif", pairs[0].Image.Name, "prefix policy takes the first listing-order match")

	pairs, _ = MatchPairs(archives, images, MatchExactFirst)
	require.Equal(t, "sample1.tif", pairs[0].Image.Name)
}

func TestMatchPairsExactFirstFallsBackToPrefix(t *testing.T) {
	pairs, unmatched := MatchPairs(files("cell.zip"), files("cell_stack.tif"), MatchExactFirst)
	require.Empty(t, unmatched)
	require.Equal(t, "cell_stack.tif", pairs[0].Image.Name)
}

func TestMatchPairsUnmatched(t *testing.T) {
	pairs, unmatched := MatchPairs(files("a.zip", "b.zip"), files("a.tif"), DefaultMatchPolicy)
	require.Len(t, pairs, 1)
	require.Len(t, unmatched, 1)
	require.Equal(t, "b.zip", unmatched[0].Archive)
	require.Equal(t, "b", unmatched[0].BaseName)
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("")
	require.NoError(t, err)
	require.Equal(t, MatchExactFirst, p)

	p, err = ParseMatchPolicy(" Prefix ")
	require.NoError(t, err)
	require.Equal(t, MatchPrefix, p)

	_, err = ParseMatchPolicy("fuzzy")
	require.Error(t, err)
}

// --- Cropping ---

func newCropper(ops *fakeOps, hookLevel logrus.Level) (*Cropper, func() []string) {
	log, hook := newTestLogger()
	c := &Cropper{Ops: ops, Store: roi.Store{}, Match: MatchExactFirst, Log: log}
	return c, func() []string {
		var msgs []string
		for _, e := range hook.AllEntries() {
			if e.Level == hookLevel {
				msgs = append(msgs, e.Message)
			}
		}
		return msgs
	}
}

func writeFooArchive(t *testing.T, dir string) {
	t.Helper()
	set := core.RoiSet{
		core.NewRect("A", image.Rect(0, 0, 4, 4)),
		core.NewRect("", image.Rect(10, 10, 20, 30)),
		core.NewRect("C", image.Rect(90, 90, 120, 120)),
	}
	require.NoError(t, roi.SaveArchive(filepath.Join(dir, "foo.zip"), set))
	touch(t, dir, "foo.tif")
}

func TestCropWritesOneFilePerRoi(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFooArchive(t, in)

	ops := newFakeOps()
	c, _ := newCropper(ops, logrus.WarnLevel)
	stats, err := c.Run(context.Background(), in, out)
	require.NoError(t, err)

	require.Equal(t, []string{"foo_A.tif", "foo_C.tif", "foo_ROI_2.tif"}, listDir(t, out))
	require.Equal(t, 3, stats.Written)
	require.Equal(t, 1, stats.Processed)
	require.Zero(t, ops.live)

	data, err := os.ReadFile(filepath.Join(out, "foo_C.tif"))
	require.NoError(t, err)
	require.Equal(t, "foo.tif (90,90)-(100,100) 2", string(data), "crop is clipped and keeps every plane")
}

func TestCropIsIdempotent(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFooArchive(t, in)

	c, _ := newCropper(newFakeOps(), logrus.WarnLevel)
	_, err := c.Run(context.Background(), in, out)
	require.NoError(t, err)
	first := readAll(t, out)

	c, _ = newCropper(newFakeOps(), logrus.WarnLevel)
	_, err = c.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, first, readAll(t, out))
}

func TestCropUnmatchedArchiveIsSkipped(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, roi.SaveArchive(filepath.Join(in, "orphan.zip"),
		core.RoiSet{core.NewRect("x", image.Rect(0, 0, 2, 2))}))
	touch(t, in, "other.tif")

	ops := newFakeOps()
	c, warnings := newCropper(ops, logrus.WarnLevel)
	stats, err := c.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)
	require.Empty(t, ops.opened)
	require.Empty(t, listDir(t, out))
	require.Equal(t, []string{"No matching image, skipping archive"}, warnings())
}

func TestCropFailingRoiContinues(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFooArchive(t, in)

	ops := newFakeOps()
	ops.failSave["foo_A.tif"] = true
	c, _ := newCropper(ops, logrus.ErrorLevel)
	stats, err := c.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, []string{"foo_C.tif", "foo_ROI_2.tif"}, listDir(t, out))
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 2, stats.Written)
	require.Zero(t, ops.live)
}

func TestCropIgnoresOtherFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFooArchive(t, in)
	touch(t, in, "foo.png")
	touch(t, in, "foo.txt")

	ops := newFakeOps()
	c, _ := newCropper(ops, logrus.WarnLevel)
	_, err := c.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, []string{"foo.tif"}, ops.opened)
}

func TestCropName(t *testing.T) {
	set := core.RoiSet{{Name: "A"}, {}, {Name: "C"}}
	require.Equal(t, "foo_A.tif", CropName("foo", set, 0))
	require.Equal(t, "foo_ROI_2.tif", CropName("foo", set, 1))
	require.Equal(t, "foo_C.tif", CropName("foo", set, 2))
}

func readAll(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, name := range listDir(t, dir) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		out[name] = string(data)
	}
	return out
}
