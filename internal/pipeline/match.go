package pipeline

import (
	"fmt"
	"strings"

	"spotroi/internal/core"
)

// MatchPolicy decides which image an archive belongs to.
type MatchPolicy string

const (
	// MatchPrefix binds an archive to the first image, in listing order,
	// whose file name starts with the archive's base name.
	MatchPrefix MatchPolicy = "prefix"
	// MatchExactFirst prefers an image whose base name equals the archive's
	// base name and falls back to MatchPrefix.
	MatchExactFirst MatchPolicy = "exact-first"
)

// DefaultMatchPolicy keeps sample1.zip away from sample10.tif.
const DefaultMatchPolicy = MatchExactFirst

// ParseMatchPolicy accepts a policy name; empty selects the default.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMatchPolicy, nil
	case MatchPrefix:
		return MatchPrefix, nil
	case MatchExactFirst:
		return MatchExactFirst, nil
	}
	return "", fmt.Errorf("unknown match policy %q (want %q or %q)", s, MatchPrefix, MatchExactFirst)
}

// MatchPairs pairs every archive with at most one image. Archives without
// an image are returned as warnings.
func MatchPairs(archives, images []core.ImageFile, policy MatchPolicy) ([]core.MatchedPair, []*core.UnmatchedPairWarning) {
	var pairs []core.MatchedPair
	var unmatched []*core.UnmatchedPairWarning

	for _, archive := range archives {
		img, ok := matchImage(archive.BaseName, images, policy)
		if !ok {
			unmatched = append(unmatched, &core.UnmatchedPairWarning{
				Archive:  archive.Name,
				BaseName: archive.BaseName,
			})
			continue
		}
		pairs = append(pairs, core.MatchedPair{Archive: archive, Image: img})
	}
	return pairs, unmatched
}

func matchImage(base string, images []core.ImageFile, policy MatchPolicy) (core.ImageFile, bool) {
	if policy == MatchExactFirst {
		for _, img := range images {
			if img.BaseName == base {
				return img, true
			}
		}
	}
	for _, img := range images {
		if strings.HasPrefix(img.Name, base) {
			return img, true
		}
	}
	return core.ImageFile{}, false
}
