// Package pkgfile publishes files atomically.
//
// Every artifact another reader may observe (index, status marker, progress
// snapshot, cleaned copy, assembled upload) is written to a temporary file in
// the destination directory and renamed into place, so a reader sees either
// the previous complete file or the new complete file and never a torn one.
package pkgfile
