package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/indexaudit/internal/config"
	"github.com/Aman-CERP/indexaudit/internal/crawl"
	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
	"github.com/Aman-CERP/indexaudit/internal/watchman"
)

// fakeClient implements IndexClient in memory. The first Query call
// returns the primary result; later calls return the follow-up result.
type fakeClient struct {
	config    map[string]any
	configErr error

	primary    *watchman.QueryResult
	primaryErr error
	followUp   *watchman.QueryResult

	queryExprs []string
}

func (f *fakeClient) GetConfig(_ context.Context, _ string) (map[string]any, error) {
	if f.configErr != nil {
		return nil, f.configErr
	}
	if f.config == nil {
		return map[string]any{}, nil
	}
	return f.config, nil
}

func (f *fakeClient) Query(_ context.Context, _ string, expr watchman.Expr, _ []string) (*watchman.QueryResult, error) {
	wire, _ := json.Marshal(expr)
	f.queryExprs = append(f.queryExprs, string(wire))

	if len(f.queryExprs) == 1 {
		if f.primaryErr != nil {
			return nil, f.primaryErr
		}
		return f.primary, nil
	}
	if f.followUp != nil {
		return f.followUp, nil
	}
	return &watchman.QueryResult{}, nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// indexView crawls the tree and converts the truth into index records,
// so a fake index can agree with the filesystem exactly.
func indexView(t *testing.T, root string) []watchman.FileEntry {
	t.Helper()
	snap, skipped, err := crawl.Crawl(context.Background(), root, crawl.Options{CaseSensitive: true})
	require.NoError(t, err)
	require.Empty(t, skipped)

	records := make([]watchman.FileEntry, 0, len(snap))
	for _, rec := range snap {
		records = append(records, watchman.FileEntry{
			Name:   rec.RelPath,
			Mode:   rec.Mode,
			Size:   rec.Size,
			MTimeF: rec.MTimeF,
			OClock: "c:1:" + rec.RelPath,
			Ino:    rec.Ino,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

func runOpts(t *testing.T, root string) Options {
	t.Helper()
	return Options{Root: root, CaseSensitive: true, LockDir: t.TempDir()}
}

func TestRun_CleanAudit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "src/main.go", "package main")

	client := &fakeClient{
		primary: &watchman.QueryResult{Files: indexView(t, root), Clock: "c:1700000000:1:2:3"},
	}

	report, err := New(client).Run(context.Background(), runOpts(t, root))
	require.NoError(t, err)

	assert.True(t, report.Diff.Clean())
	assert.Equal(t, "c:1700000000:1:2:3", report.Clock)
	assert.Equal(t, 3, report.Stats.CrawledEntries)
	assert.Equal(t, 3, report.Stats.IndexEntries)
	assert.Empty(t, report.ConfigFindings)
	assert.False(t, report.ConfigPresent)
	require.Len(t, client.queryExprs, 1, "no follow-up for a clean audit")
}

func TestRun_ClassifiesDivergence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "kept.txt", "x")
	writeFile(t, root, "unindexed.txt", "y")

	records := indexView(t, root)

	// Drop the record for unindexed.txt and add a phantom.
	var perturbed []watchman.FileEntry
	for _, rec := range records {
		if rec.Name != "unindexed.txt" {
			perturbed = append(perturbed, rec)
		}
	}
	perturbed = append(perturbed, watchman.FileEntry{
		Name: "ghost.txt", Mode: 0o100644, Size: 3, MTimeF: 1.0, OClock: "c:1:ghost",
	})

	client := &fakeClient{
		primary: &watchman.QueryResult{Files: perturbed, Clock: "c:1:1"},
		followUp: &watchman.QueryResult{Files: []watchman.FileEntry{
			{Name: "UNINDEXED.TXT", Mode: 0o100644, OClock: "c:1:u"},
		}},
	}

	report, err := New(client).Run(context.Background(), runOpts(t, root))
	require.NoError(t, err)

	require.Len(t, report.Diff.Phantoms, 1)
	assert.Equal(t, "ghost.txt", report.Diff.Phantoms[0].Name)
	require.Len(t, report.Diff.Missing, 1)
	assert.Equal(t, "unindexed.txt", report.Diff.Missing[0].RelPath)

	// The follow-up asked about the literal missing name and its raw
	// answer is attached untouched.
	require.Len(t, client.queryExprs, 2)
	assert.JSONEq(t, `["anyof",["name","unindexed.txt","wholename"]]`, client.queryExprs[1])
	require.Len(t, report.Diff.MissingFollowUp, 1)
	assert.Equal(t, "UNINDEXED.TXT", report.Diff.MissingFollowUp[0].Name)
}

func TestRun_IgnoreSetDrivesBothSides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "kept.txt", "x")
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, ".git/config", "[core]")

	client := &fakeClient{
		config:  map[string]any{"ignore_dirs": []any{"node_modules"}},
		primary: &watchman.QueryResult{Files: nil, Clock: "c:1:1"},
	}

	report, err := New(client).Run(context.Background(), runOpts(t, root))
	require.NoError(t, err)

	// The primary expression excludes the same directories the crawl
	// skipped.
	assert.JSONEq(t,
		`["allof","exists",["not",["anyof",["dirname",".git"],["dirname",".hg"],["dirname",".svn"],["dirname","node_modules"]]]]`,
		client.queryExprs[0])

	for _, missing := range report.Diff.Missing {
		assert.NotContains(t, missing.RelPath, "node_modules")
		assert.NotContains(t, missing.RelPath, ".git")
	}
	assert.Equal(t, 1, report.Stats.CrawledEntries)
}

func TestRun_ConfigMismatchIsAFindingNotAnError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, config.ServiceConfigFile, `{"settle": 20}`)

	client := &fakeClient{
		config:  map[string]any{"settle": 200.0},
		primary: &watchman.QueryResult{Files: indexView(t, root), Clock: "c:1:1"},
	}

	report, err := New(client).Run(context.Background(), runOpts(t, root))
	require.NoError(t, err)

	assert.True(t, report.ConfigPresent)
	require.Len(t, report.ConfigFindings, 1)
	assert.Contains(t, report.ConfigFindings[0], `key "settle"`)
}

func TestRun_TransportFailureAborts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	t.Run("get-config", func(t *testing.T) {
		client := &fakeClient{configErr: auditerrors.New(auditerrors.ErrCodeSocketUnavailable, "down", nil)}
		_, err := New(client).Run(context.Background(), runOpts(t, root))
		require.Error(t, err)
		assert.True(t, auditerrors.IsFatal(err))
	})

	t.Run("primary query", func(t *testing.T) {
		client := &fakeClient{primaryErr: auditerrors.New(auditerrors.ErrCodeSocketTimeout, "slow", nil)}
		_, err := New(client).Run(context.Background(), runOpts(t, root))
		require.Error(t, err)
		assert.Equal(t, auditerrors.ErrCodeSocketTimeout, auditerrors.GetCode(err))
	})
}

func TestRun_LockContention(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")
	lockDir := t.TempDir()

	held := newRunLock(lockDir, mustAbs(t, root))
	acquired, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = held.Unlock() }()

	client := &fakeClient{primary: &watchman.QueryResult{}}
	_, err = New(client).Run(context.Background(), Options{Root: root, CaseSensitive: true, LockDir: lockDir})
	require.Error(t, err)
	assert.Equal(t, auditerrors.ErrCodeLockHeld, auditerrors.GetCode(err))
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}
