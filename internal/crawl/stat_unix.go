//go:build !windows

package crawl

import (
	"io/fs"
	"syscall"
)

// HasInodes indicates the platform exposes stable inode numbers, so the
// inode field participates in comparison.
const HasInodes = true

// platformFields extracts the raw st_mode and inode from lstat results.
func platformFields(info fs.FileInfo) (mode uint32, ino uint64) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint32(st.Mode), st.Ino
	}
	return synthesizeMode(info.Mode()), 0
}
