// Package watch decides when a watched document must be re-rendered. It
// tracks a single target path together with the modification time that was
// last rendered, and provides the fixed-cadence poll schedule that drives
// the checks. Detection is polling based: a tick stats the file and compares
// its modification time against the baseline.
package watch
