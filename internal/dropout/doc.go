// Package dropout models per-line signal loss as run-length intervals.
//
// A List holds (StartX, EndX, Line) triples where StartX and EndX are
// inclusive sample columns and Line is 1-based against the field (or the
// frame, for lists built with FrameFromFields). Lists are appended to by the
// detectors and the stacker and then compacted with Concatenate, which closes
// gaps narrower than MinimumGap between entries on the same line.
//
// Index provides a per-line lookup so per-pixel queries stay cheap when a
// noisy source carries thousands of entries.
package dropout
