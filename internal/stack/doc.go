// Package stack combines aligned sources into one capture.
//
// A Pool enumerates the VBI frame range of a source.Collection and hands
// Bundles to Stacker workers. Each worker computes an OutputFrame per bundle:
// for every pixel it drops the sources whose dropouts cover that pixel and
// combines the survivors by count (zero, the single value, the mean of two,
// or the median of three or more). Completed frames may arrive in any order;
// the Pool buffers them and hands them to its Sink in strictly ascending,
// gap-free frame order.
//
// Run wires the pieces together with a fixed number of workers and a shared
// abort flag checked before each frame is claimed.
package stack
