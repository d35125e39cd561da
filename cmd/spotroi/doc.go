// Command spotroi batch-processes microscopy images: it detects spots per
// channel and saves them as ImageJ ROI archives, crops archived ROIs out of
// their images, and counts spots against labelled cell masks.
package main
