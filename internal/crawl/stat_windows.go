//go:build windows

package crawl

import "io/fs"

// HasInodes indicates the platform exposes stable inode numbers.
// Windows file IDs are not surfaced by the index service's default
// field set, so inodes are excluded from comparison.
const HasInodes = false

// platformFields synthesizes POSIX-style mode bits; there is no raw
// st_mode to report.
func platformFields(info fs.FileInfo) (mode uint32, ino uint64) {
	return synthesizeMode(info.Mode()), 0
}
