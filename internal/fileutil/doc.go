// Package fileutil lists the regular files of a single directory.
//
// ScanDirectory does not descend into subdirectories: inputs are dropped
// flat into one folder, and archives kept below it must not be replayed.
// A caller supplied predicate selects file names. Entries that cannot be
// stat'ed are reported in ScanResult.Errors and the listing continues.
package fileutil
