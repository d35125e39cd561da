// Package pipeline runs the batch jobs: spot detection over a directory of
// images, ROI cropping over archive/image pairs, and mask analysis over
// mask/archive triplets. Items are processed one at a time; a failing item
// is logged and counted, and the batch moves on.
package pipeline
