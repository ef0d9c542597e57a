// Package source opens time-base-corrected captures and aligns them into a
// shared VBI frame-number space.
//
// A Source wraps one .tbc file and its sidecar metadata: it classifies the
// disc as CAV or CLV from the VBI of the leading frames, derives the capture's
// VBI frame range, and answers per-frame availability, field sample and
// dropout queries. A Collection opens up to 64 sources, checks that they agree
// on disc type, colour standard and geometry, and tracks the union of their
// frame ranges.
//
// Sources are read-only once a run starts; the only mutation is the field
// order toggle, which a Collection refuses after Freeze.
package source
