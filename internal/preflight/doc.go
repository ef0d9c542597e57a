// Package preflight provides readiness checks for the filesystem paths a
// stacking run writes to.
//
// The stack command calls RunAll after the sources are opened and before the
// output capture is created. If any check fails, the run stops before the
// workers start so a full disc is not stacked into a directory that cannot
// hold it.
package preflight
