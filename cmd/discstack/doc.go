// Package main hosts the discstack command-line interface.
//
// The binary opens several captures of the same LaserDisc, aligns them by
// their VBI frame numbers and writes a median-stacked capture. Auxiliary
// commands report what a set of captures contains (info), count dropouts a
// detector would add (detect) and manage the configuration file (config).
package main
