package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	pathpkg "path"
	"path/filepath"

	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
	"github.com/Aman-CERP/indexaudit/internal/ignore"
)

// Options configures a crawl.
type Options struct {
	// CaseSensitive selects the key normalization: keys are folded to
	// lower case when false.
	CaseSensitive bool

	// Ignores is the set of directories to skip without descending.
	// Nil means nothing is ignored.
	Ignores *ignore.Set
}

// Crawl walks the tree under root once and returns its snapshot.
//
// Traversal uses an explicit pending-directory worklist rather than a
// recursive walk, and never dereferences symbolic links: children are
// listed with os.ReadDir and stat'd with the entry's lstat-semantics
// Info. Dereferencing links during descent is prohibitively slow on
// remote and union mounts, and a link-aware listing is what the index
// service itself observes.
//
// Per-entry failures (permission denied, entry vanished between list
// and stat) skip the entry and continue; the caller receives whatever
// was collected plus the skip list. The only returned errors are an
// unusable root and context cancellation.
func Crawl(ctx context.Context, root string, opts Options) (Snapshot, []Skipped, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, auditerrors.New(auditerrors.ErrCodeRootNotFound,
			fmt.Sprintf("cannot stat crawl root %s: %v", root, err), err)
	}
	if !info.IsDir() {
		return nil, nil, auditerrors.ValidationError(
			fmt.Sprintf("crawl root is not a directory: %s", root), nil)
	}

	snapshot := make(Snapshot)
	var skipped []Skipped

	// Worklist of root-relative directories still to expand. Depth of
	// the tree never touches the call stack.
	pending := []string{""}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil {
			skipped = append(skipped, Skipped{Path: dir, Reason: fmt.Sprintf("list: %v", err)})
			slog.Warn("skipping unreadable directory",
				slog.String("path", dir), slog.String("error", err.Error()))
			continue
		}

		for _, entry := range entries {
			relPath := pathpkg.Join(dir, entry.Name())

			// Skip entirely: no descent even when it is a directory.
			if opts.Ignores != nil && opts.Ignores.Ignored(relPath) {
				continue
			}

			// Lstat semantics: symlinks are recorded, never followed.
			entryInfo, err := entry.Info()
			if err != nil {
				skipped = append(skipped, Skipped{Path: relPath, Reason: fmt.Sprintf("stat: %v", err)})
				slog.Warn("skipping unstatable entry",
					slog.String("path", relPath), slog.String("error", err.Error()))
				continue
			}

			mode, ino := platformFields(entryInfo)
			snapshot[Key(relPath, opts.CaseSensitive)] = FileRecord{
				RelPath: relPath,
				Mode:    mode,
				Size:    entryInfo.Size(),
				MTimeF:  mtimeFloat(entryInfo),
				Ino:     ino,
			}

			if entryInfo.IsDir() {
				pending = append(pending, relPath)
			}
		}
	}

	return snapshot, skipped, nil
}
