package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
)

// defaultLockDir returns the run-lock directory under the tool's state
// directory.
func defaultLockDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".indexaudit", "locks")
	}
	return filepath.Join(home, ".indexaudit", "locks")
}

// newRunLock builds the file lock for a root. The file name is a hash
// of the absolute root path: stable across runs, safe for roots whose
// paths contain separators or exceed name limits.
func newRunLock(lockDir, root string) *flock.Flock {
	name := fmt.Sprintf("%016x.lock", xxhash.Sum64String(root))
	return flock.New(filepath.Join(lockDir, name))
}
