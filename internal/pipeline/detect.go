package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"spotroi/internal/core"
)

// ArchiveSuffix is appended to the save name of every persisted ROI set.
const ArchiveSuffix = "_ROIs.zip"

// DefaultChannels are the channel indices processed when none are configured.
var DefaultChannels = []int{1, 2}

// Detector finds spots in every channel of every TIFF in a directory and
// saves one ROI archive per channel with spots.
type Detector struct {
	Ops      core.Ops
	Store    RoiStore
	Params   core.ProcessingParameters
	Channels []int
	Log      logrus.FieldLogger
}

// Run processes inputDir into outputDir. Only a missing or unreadable
// directory, or a locked output directory, is returned as an error; every
// per-image and per-channel problem is logged and counted.
func (d *Detector) Run(ctx context.Context, inputDir, outputDir string) (Stats, error) {
	var stats Stats

	if err := d.Params.Validate(); err != nil {
		return stats, fmt.Errorf("invalid parameters: %w", err)
	}

	files, err := Discover(inputDir, TIFFExtensions)
	if err != nil {
		return stats, err
	}
	release, err := prepareOutput(outputDir)
	if err != nil {
		return stats, err
	}
	defer release()

	stats.Total = len(files)
	d.Log.WithFields(logrus.Fields{
		"input":             inputDir,
		"output":            outputDir,
		"images":            len(files),
		"background_radius": d.Params.BackgroundRadius,
		"blur_sigma":        d.Params.BlurSigma,
		"prominence":        d.Params.Prominence,
	}).Info("Starting spot detection")

	start := time.Now()
	for i, file := range files {
		if ctx.Err() != nil {
			d.Log.Warn("Interrupted")
			break
		}
		d.Log.WithFields(logrus.Fields{
			"file":  file.Name,
			"index": i + 1,
			"total": len(files),
		}).Info("Processing image")

		d.processImage(file, outputDir, &stats)
	}

	d.Log.WithFields(logrus.Fields{
		"processed": stats.Processed,
		"archives":  stats.Written,
		"empty":     stats.Empty,
		"failed":    stats.Failed,
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Info("Spot detection complete")

	return stats, nil
}

func (d *Detector) processImage(file core.ImageFile, outputDir string, stats *Stats) {
	log := d.Log.WithField("file", file.Name)

	channels, err := d.openChannels(file)
	if err != nil {
		log.WithError(err).Error("Cannot open image")
		stats.Failed++
		return
	}
	defer func() {
		for _, ch := range channels {
			_ = ch.Close()
		}
	}()

	for _, index := range d.channelIndices() {
		ch, ok := channels[index]
		if !ok {
			log.WithField("channel", index).Debug("Channel not present, skipping")
			continue
		}
		d.processChannel(log.WithField("channel", index), file, index, ch, outputDir, stats)
	}
	stats.Processed++
}

func (d *Detector) processChannel(log logrus.FieldLogger, file core.ImageFile, index int, ch core.Image, outputDir string, stats *Stats) {
	defer ch.Close()

	set, err := ProcessChannel(d.Ops, ch, d.Params)
	if err != nil {
		log.WithError(err).Error("Channel processing failed")
		stats.Failed++
		return
	}
	if set.Empty() {
		log.Info("No spots found")
		stats.Empty++
		return
	}

	saveName := fmt.Sprintf("%s_C%d", file.BaseName, index)
	path, err := PersistRoiSet(d.Store, set, outputDir, saveName)
	if err != nil {
		log.WithError(err).Error("Cannot save ROI archive")
		stats.Failed++
		return
	}
	stats.Written++
	stats.BytesWritten += fileSize(path)
	log.WithFields(logrus.Fields{
		"spots":   set.PointCount(),
		"archive": filepath.Base(path),
	}).Info("Saved spots")
}

// openChannels opens the image and splits it. The combined image is closed
// before returning.
func (d *Detector) openChannels(file core.ImageFile) (map[int]core.Image, error) {
	img, err := d.Ops.Open(file.Path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	return d.Ops.SplitChannels(img)
}

func (d *Detector) channelIndices() []int {
	if len(d.Channels) == 0 {
		return DefaultChannels
	}
	return d.Channels
}

// ProcessChannel subtracts the background, blurs, and finds maxima, in that
// order. A channel without maxima yields an empty set and no error.
func ProcessChannel(ops core.Ops, ch core.Image, params core.ProcessingParameters) (core.RoiSet, error) {
	flat, err := ops.SubtractBackground(ch, params.BackgroundRadius)
	if err != nil {
		return nil, fmt.Errorf("subtract background: %w", err)
	}
	defer flat.Close()

	smooth, err := ops.GaussianBlur(flat, params.BlurSigma)
	if err != nil {
		return nil, fmt.Errorf("gaussian blur: %w", err)
	}
	defer smooth.Close()

	spots, err := ops.FindMaxima(smooth, params.Prominence)
	if errors.Is(err, core.ErrNoSelection) {
		return core.RoiSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find maxima: %w", err)
	}
	if len(spots.Points) == 0 {
		return core.RoiSet{}, nil
	}
	return core.RoiSet{spots}, nil
}

// PersistRoiSet names the first record saveName and writes the set to
// <outputDir>/<saveName>_ROIs.zip, replacing any existing archive. Empty
// sets are never written.
func PersistRoiSet(store RoiStore, set core.RoiSet, outputDir, saveName string) (string, error) {
	if set.Empty() {
		return "", errors.New("refusing to save an empty ROI set")
	}

	named := make(core.RoiSet, len(set))
	for i, r := range set {
		named[i] = r.Clone()
	}
	named[0].Name = saveName

	path := filepath.Join(outputDir, saveName+ArchiveSuffix)
	if err := store.Save(path, named); err != nil {
		return "", &core.IOWriteError{Path: path, Err: err}
	}
	return path, nil
}
