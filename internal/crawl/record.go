// Package crawl builds an authoritative snapshot of a directory tree.
//
// The snapshot is the filesystem side of the reconciliation: every
// entry the index service should know about, keyed the same way the
// index records are keyed, with the metadata fields the service reports
// for comparison.
package crawl

import (
	"io/fs"
	"strings"
)

// File type bits in the POSIX st_mode layout. The crawler reports raw
// st_mode where the platform exposes it and synthesizes these bits
// elsewhere, so the mode field is always comparable against the
// integer mode the index service reports.
const (
	modeTypeMask = 0o170000
	modeDir      = 0o040000
	modeRegular  = 0o100000
	modeSymlink  = 0o120000
)

// FileRecord is one filesystem entity as observed by a single crawl.
type FileRecord struct {
	// RelPath is slash-separated, relative to the watch root, with
	// case exactly as stored on disk.
	RelPath string

	// Mode holds platform file-mode bits (type + permissions).
	Mode uint32

	// Size is the byte count. Ignored in comparison for directories.
	Size int64

	// MTimeF is seconds since epoch with sub-second precision, the
	// same representation the index service reports.
	MTimeF float64

	// Ino is the inode number. Only meaningful where HasInodes is true.
	Ino uint64
}

// IsDir reports whether the record describes a directory.
func (r FileRecord) IsDir() bool {
	return r.Mode&modeTypeMask == modeDir
}

// Snapshot maps normalized keys to file records. Exactly one entry per
// normalized key; on a case-insensitive fold collision the later-visited
// record wins.
type Snapshot map[string]FileRecord

// Skipped records a single filesystem entity the crawl could not
// observe. Skips degrade the snapshot, they never abort the crawl.
type Skipped struct {
	Path   string
	Reason string
}

// Key derives the normalized comparison key for a relative path:
// folded to lower case only under case-insensitive semantics.
func Key(relPath string, caseSensitive bool) string {
	if caseSensitive {
		return relPath
	}
	return strings.ToLower(relPath)
}

// synthesizeMode maps a Go file mode onto POSIX-style mode bits for
// platforms that do not expose a raw st_mode.
func synthesizeMode(mode fs.FileMode) uint32 {
	bits := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		bits |= modeDir
	case mode&fs.ModeSymlink != 0:
		bits |= modeSymlink
	case mode.IsRegular():
		bits |= modeRegular
	}
	return bits
}

// mtimeFloat converts a modification time to fractional epoch seconds.
func mtimeFloat(info fs.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}
