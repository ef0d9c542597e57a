// Package vbi decodes LaserDisc vertical blanking interval codes into frame
// addresses.
//
// Each field carries three 24-bit words decoded from lines 16, 17 and 18. A
// frame's address is either a CAV picture number or a CLV timecode split
// across a programme time code (hours, minutes) and a picture number code
// (seconds, picture). DecodeFrame merges the words from both fields of a frame
// because a code may appear on either one.
//
// Callers that need a different decoder depend on DecodeFunc rather than on
// DecodeFrame directly.
package vbi
