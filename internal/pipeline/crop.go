package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"spotroi/internal/core"
)

// Cropper saves every ROI of every matched archive as its own TIFF cut from
// the archive's image.
type Cropper struct {
	Ops   core.Ops
	Store RoiStore
	Match MatchPolicy
	Log   logrus.FieldLogger
}

// Run crops the archive/image pairs of inputDir into outputDir.
func (c *Cropper) Run(ctx context.Context, inputDir, outputDir string) (Stats, error) {
	var stats Stats

	archives, err := Discover(inputDir, ArchiveExtensions)
	if err != nil {
		return stats, err
	}
	images, err := Discover(inputDir, TIFFExtensions)
	if err != nil {
		return stats, err
	}
	release, err := prepareOutput(outputDir)
	if err != nil {
		return stats, err
	}
	defer release()

	policy := c.Match
	if policy == "" {
		policy = DefaultMatchPolicy
	}
	pairs, unmatched := MatchPairs(archives, images, policy)

	stats.Total = len(archives)
	c.Log.WithFields(logrus.Fields{
		"input":    inputDir,
		"output":   outputDir,
		"archives": len(archives),
		"images":   len(images),
		"pairs":    len(pairs),
		"match":    policy,
	}).Info("Starting ROI crop")

	for _, w := range unmatched {
		c.Log.WithFields(logrus.Fields{
			"archive":   w.Archive,
			"base_name": w.BaseName,
		}).Warn("No matching image, skipping archive")
		stats.Skipped++
	}

	start := time.Now()
	for i, pair := range pairs {
		if ctx.Err() != nil {
			c.Log.Warn("Interrupted")
			break
		}
		c.Log.WithFields(logrus.Fields{
			"archive": pair.Archive.Name,
			"image":   pair.Image.Name,
			"index":   i + 1,
			"total":   len(pairs),
		}).Info("Processing pair")

		c.cropPair(ctx, pair, outputDir, &stats)
	}

	c.Log.WithFields(logrus.Fields{
		"pairs":   stats.Processed,
		"crops":   stats.Written,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("ROI crop complete")

	return stats, nil
}

func (c *Cropper) cropPair(ctx context.Context, pair core.MatchedPair, outputDir string, stats *Stats) {
	log := c.Log.WithField("archive", pair.Archive.Name)

	set, err := c.Store.Load(pair.Archive.Path)
	if err != nil {
		log.WithError(err).Error("Cannot load ROI archive")
		stats.Failed++
		return
	}
	if set.Empty() {
		log.Warn("Archive holds no ROIs")
		stats.Processed++
		return
	}

	img, err := c.Ops.Open(pair.Image.Path)
	if err != nil {
		log.WithError(err).WithField("image", pair.Image.Name).Error("Cannot open image")
		stats.Failed++
		return
	}
	defer img.Close()

	for i := range set {
		if ctx.Err() != nil {
			return
		}
		name := CropName(pair.Archive.BaseName, set, i)
		path := filepath.Join(outputDir, name)
		if err := c.cropOne(img, set[i], path); err != nil {
			log.WithError(err).WithField("roi", set.DisplayName(i)).Error("Cannot crop ROI")
			stats.Failed++
			continue
		}
		stats.Written++
		stats.BytesWritten += fileSize(path)
		log.WithField("output", name).Debug("Saved crop")
	}
	stats.Processed++
}

// cropOne duplicates the ROI footprint and saves it. The crop is released
// before returning.
func (c *Cropper) cropOne(img core.Image, r core.Roi, path string) error {
	crop, err := c.Ops.Duplicate(img, r.Footprint())
	if err != nil {
		return fmt.Errorf("duplicate: %w", err)
	}
	defer crop.Close()

	if err := c.Ops.Save(crop, path); err != nil {
		return &core.IOWriteError{Path: path, Err: err}
	}
	return nil
}

// CropName is the output file name of the i-th ROI of an archive.
func CropName(archiveBase string, set core.RoiSet, i int) string {
	return fmt.Sprintf("%s_%s.tif", archiveBase, set.DisplayName(i))
}
