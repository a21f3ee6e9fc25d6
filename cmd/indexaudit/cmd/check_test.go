package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/indexaudit/internal/crawl"
)

// indexFiles crawls the tree and renders the truth in the shape the
// service reports, so the fake service can agree with disk exactly.
func indexFiles(t *testing.T, root string) []map[string]any {
	t.Helper()
	snap, skipped, err := crawl.Crawl(context.Background(), root, crawl.Options{CaseSensitive: true})
	require.NoError(t, err)
	require.Empty(t, skipped)

	var files []map[string]any
	for _, rec := range snap {
		files = append(files, map[string]any{
			"name":    rec.RelPath,
			"mode":    rec.Mode,
			"size":    rec.Size,
			"mtime_f": rec.MTimeF,
			"oclock":  "c:1:" + rec.RelPath,
			"ino":     rec.Ino,
		})
	}
	return files
}

func auditHandler(files []map[string]any) func(req []any) map[string]any {
	return func(req []any) map[string]any {
		switch req[0] {
		case "get-config":
			return map[string]any{"version": "2025.01.01.00", "config": map[string]any{}}
		case "query":
			return map[string]any{"version": "2025.01.01.00", "clock": "c:1700000000:1:2:3", "files": files}
		default:
			return map[string]any{"version": "2025.01.01.00", "error": "unknown command"}
		}
	}
}

func TestCheckCmd_CleanTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	sock := fakeService(t, auditHandler(indexFiles(t, root)))

	out, err := execute(t, "check", root,
		"--sockname", sock, "--case-sensitive", "true", "--json")
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, true, view["consistent"])
	assert.Equal(t, "c:1700000000:1:2:3", view["clock"])
	assert.Equal(t, []any{}, view["phantoms"])
}

func TestCheckCmd_ReportsDivergence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	// The index also believes in a file that is not on disk.
	files := append(indexFiles(t, root), map[string]any{
		"name": "ghost.txt", "mode": 0o100644, "size": 3,
		"mtime_f": 1.5, "oclock": "c:1:ghost",
	})
	sock := fakeService(t, auditHandler(files))

	out, err := execute(t, "check", root,
		"--sockname", sock, "--case-sensitive", "true", "--no-color")
	require.NoError(t, err, "divergence is a finding, not a failure")

	assert.Contains(t, out, "phantom: ghost.txt")
	assert.Contains(t, out, "1 divergences")
}

func TestCheckCmd_RootCommandRunsAudit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	sock := fakeService(t, auditHandler(indexFiles(t, root)))

	out, err := execute(t, root, "--sockname", sock, "--case-sensitive", "true", "--json")
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, true, view["consistent"])
}

func TestCheckCmd_ServiceErrorFails(t *testing.T) {
	root := t.TempDir()
	sock := fakeService(t, func(_ []any) map[string]any {
		return map[string]any{"version": "2025.01.01.00", "error": "unable to resolve root"}
	})

	_, err := execute(t, "check", root, "--sockname", sock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to resolve root")
}
