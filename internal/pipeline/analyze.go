package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"spotroi/internal/core"
	"spotroi/internal/report"
)

// Erosion radii used when the configuration does not set them.
const (
	DefaultErosion     = 4
	DefaultDeepErosion = 20
)

// MaskSuffixes select the label masks the analysis reads.
var MaskSuffixes = []string{"_cells_mask.tif", "_cell_mask.tif"}

// Analyzer counts channel 2 spots inside and outside the cells of a mask
// and writes one report row per mask.
type Analyzer struct {
	Ops   core.Ops
	Store RoiStore
	// Erosion and DeepErosion are disk radii in pixels, used as given.
	Erosion     int
	DeepErosion int
	// Groups renames the group derived from a file name.
	Groups     map[string]string
	ReportName string
	Log        logrus.FieldLogger
}

// Run analyses the triplets of inputDir and writes the CSV report to
// outputDir. The rows are returned in mask order.
func (a *Analyzer) Run(ctx context.Context, inputDir, outputDir string) ([]core.AnalysisRow, Stats, error) {
	var stats Stats
	if a.Erosion < 0 || a.DeepErosion < 0 {
		return nil, stats, fmt.Errorf("erosion radii must not be negative, got %d and %d", a.Erosion, a.DeepErosion)
	}

	masks, err := Discover(inputDir, MaskSuffixes)
	if err != nil {
		return nil, stats, err
	}
	release, err := prepareOutput(outputDir)
	if err != nil {
		return nil, stats, err
	}
	defer release()

	triplets, unmatched := FindTriplets(inputDir, masks)
	stats.Total = len(masks)
	for _, name := range unmatched {
		a.Log.WithField("mask", name).Warn("No ROI archives for mask, skipping")
		stats.Skipped++
	}

	a.Log.WithFields(logrus.Fields{
		"input":        inputDir,
		"masks":        len(masks),
		"triplets":     len(triplets),
		"erosion":      a.Erosion,
		"deep_erosion": a.DeepErosion,
	}).Info("Starting mask analysis")

	start := time.Now()
	var rows []core.AnalysisRow
	for _, t := range triplets {
		if ctx.Err() != nil {
			a.Log.Warn("Interrupted")
			break
		}
		row, err := a.analyze(t)
		if err != nil {
			a.Log.WithError(err).WithField("id", t.ID).Error("Analysis failed")
			stats.Failed++
			continue
		}
		a.Log.WithFields(logrus.Fields{
			"id":         t.ID,
			"cells":      row.CellCount,
			"ch1":        row.Ch1Spots,
			"ch2":        row.Ch2Total,
			"ch2_inside": row.Ch2Inside,
		}).Info("Analysed")
		rows = append(rows, row)
		stats.Processed++
	}

	name := a.ReportName
	if name == "" {
		name = report.DefaultFileName
	}
	path := filepath.Join(outputDir, name)
	if err := report.SaveCSV(path, rows); err != nil {
		a.Log.WithError(&core.IOWriteError{Path: path, Err: err}).Error("Cannot write report")
		stats.Failed++
	} else {
		stats.Written++
		stats.BytesWritten += fileSize(path)
	}

	a.Log.WithFields(logrus.Fields{
		"rows":    len(rows),
		"report":  path,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("Mask analysis complete")

	return rows, stats, nil
}

func (a *Analyzer) analyze(t core.Triplet) (core.AnalysisRow, error) {
	erosion, deep := a.Erosion, a.DeepErosion

	mask, err := a.Ops.OpenMask(t.Mask.Path, erosion, deep)
	if err != nil {
		return core.AnalysisRow{}, err
	}
	c1, err := a.Store.Load(t.C1.Path)
	if err != nil {
		return core.AnalysisRow{}, err
	}
	c2, err := a.Store.Load(t.C2.Path)
	if err != nil {
		return core.AnalysisRow{}, err
	}

	spots := c2.AllPoints()
	inside, deepInside, outside := ClassifySpots(mask, spots, erosion, deep)

	return core.AnalysisRow{
		Filename:      t.ID,
		Group:         GroupOf(t.ID, a.Groups),
		CellCount:     mask.CellCount,
		Ch1Spots:      c1.PointCount(),
		Ch2Total:      len(spots),
		Ch2Inside:     inside,
		Ch2DeepInside: deepInside,
		Ch2Outside:    outside,
	}, nil
}

// ClassifySpots rounds every spot to a pixel. A spot inside the image and
// in the mask eroded by erosion is inside, anything else is outside. Deep
// spots are counted separately against the deep erosion. Radius 0 is the
// uneroded foreground.
//
// Spots are taken as (x, y) and rounded half away from zero. ImageJ
// exports read through roifile list coordinates as (y, x) and numpy rounds
// half to even, so counts can differ from tools built on those for spots
// sitting exactly on a .5 boundary or near the mask diagonal.
func ClassifySpots(mask *core.Mask, spots []core.Point, erosion, deep int) (inside, deepInside, outside int) {
	for _, s := range spots {
		p := s.Round()
		if !mask.Contains(p) {
			outside++
			continue
		}
		if mask.Inside(erosion, p) {
			inside++
		} else {
			outside++
		}
		if mask.Inside(deep, p) {
			deepInside++
		}
	}
	return inside, deepInside, outside
}

// FindTriplets pairs every mask with the <id>_C1_ROIs.zip and
// <id>_C2_ROIs.zip archives next to it. Masks without both archives are
// returned by name.
func FindTriplets(dir string, masks []core.ImageFile) ([]core.Triplet, []string) {
	var triplets []core.Triplet
	var unmatched []string

	for _, m := range masks {
		found := false
		for _, id := range candidateIDs(m.Name) {
			c1 := core.NewImageFile(dir, id+"_C1"+ArchiveSuffix, ArchiveExtensions)
			c2 := core.NewImageFile(dir, id+"_C2"+ArchiveSuffix, ArchiveExtensions)
			if isFile(c1.Path) && isFile(c2.Path) {
				triplets = append(triplets, core.Triplet{ID: id, Mask: m, C1: c1, C2: c2})
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, m.Name)
		}
	}
	return triplets, unmatched
}

// candidateIDs lists the possible sample IDs of a mask file name, most
// specific first.
func candidateIDs(name string) []string {
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		for _, existing := range ids {
			if existing == id {
				return
			}
		}
		ids = append(ids, id)
	}

	for _, suffix := range []string{"_ch1_cells_mask.tif", "_cells_mask.tif", "_cell_mask.tif"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			add(name[:len(name)-len(suffix)])
		}
	}

	fields := strings.Split(name, "_")
	add(strings.Join(fields[:max(1, len(fields)-2)], "_"))
	return ids
}

// GroupOf derives the group from the first two fields of id and applies
// the rename table.
func GroupOf(id string, groups map[string]string) string {
	fields := strings.Split(id, "_")
	group := strings.Join(fields[:min(2, len(fields))], "_")
	if renamed, ok := groups[group]; ok {
		return renamed
	}
	return group
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
