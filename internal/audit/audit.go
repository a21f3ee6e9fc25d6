// Package audit orchestrates one consistency audit: resolve the ignore
// set from the service configuration, crawl the tree and query the
// index concurrently, reconcile the two views, and collect findings.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/indexaudit/internal/config"
	"github.com/Aman-CERP/indexaudit/internal/crawl"
	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
	"github.com/Aman-CERP/indexaudit/internal/ignore"
	"github.com/Aman-CERP/indexaudit/internal/reconcile"
	"github.com/Aman-CERP/indexaudit/internal/watchman"
)

// IndexClient is the slice of the query client the auditor needs.
// *watchman.Client satisfies it.
type IndexClient interface {
	GetConfig(ctx context.Context, root string) (map[string]any, error)
	Query(ctx context.Context, root string, expr watchman.Expr, fields []string) (*watchman.QueryResult, error)
}

// Options configures one audit run.
type Options struct {
	// Root is the watch root to audit.
	Root string

	// CaseSensitive selects the key normalization for both sides of
	// the comparison.
	CaseSensitive bool

	// ExtraIgnoreDirs are locally-configured directories excluded in
	// addition to the service-configured and VCS sets.
	ExtraIgnoreDirs []string

	// LockDir overrides the run-lock directory. Empty uses the user
	// state directory. The audited tree itself is never written.
	LockDir string
}

// Stats carries run metadata for the report footer.
type Stats struct {
	CrawledEntries int
	SkippedEntries int
	IndexEntries   int
	CrawlDuration  time.Duration
	QueryDuration  time.Duration
	TotalDuration  time.Duration
}

// Report is the complete outcome of one audit. Divergence lives in
// Diff; it is a finding, never an error.
type Report struct {
	Root          string
	CaseSensitive bool

	// Clock is the index clock at which the primary query was
	// evaluated, for correlating with service-side history.
	Clock string

	Diff *reconcile.DiffReport

	// ConfigPresent reports whether the root has an on-disk service
	// configuration file; ConfigFindings lists its structural
	// differences from the live configuration.
	ConfigPresent  bool
	ConfigFindings []string

	// Skipped lists filesystem entities the crawl could not observe.
	Skipped []crawl.Skipped

	Stats Stats
}

// Auditor runs audits against one index service.
type Auditor struct {
	client IndexClient
}

// New creates an Auditor using the given client.
func New(client IndexClient) *Auditor {
	return &Auditor{client: client}
}

// Run executes the audit pipeline for opts.Root. Only transport-class
// failures (and an unusable root) return an error; everything else is
// accumulated into the report.
func (a *Auditor) Run(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, auditerrors.New(auditerrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve root %s: %v", opts.Root, err), err)
	}

	unlock, err := acquireRunLock(root, opts.LockDir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// The ignore set comes from the service configuration, so it is
	// resolved before either side of the comparison runs.
	serviceConfig, err := a.client.GetConfig(ctx, root)
	if err != nil {
		return nil, err
	}
	ignores := ignore.FromConfig(serviceConfig, opts.ExtraIgnoreDirs...)

	report := &Report{Root: root, CaseSensitive: opts.CaseSensitive}

	// The crawl and the primary query read nothing from each other;
	// run them concurrently and reconcile once both complete. A query
	// failure cancels the crawl and aborts the run.
	var (
		snapshot crawl.Snapshot
		result   *watchman.QueryResult
	)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		crawlStarted := time.Now()
		snap, skipped, err := crawl.Crawl(groupCtx, root, crawl.Options{
			CaseSensitive: opts.CaseSensitive,
			Ignores:       ignores,
		})
		if err != nil {
			return err
		}
		snapshot = snap
		report.Skipped = skipped
		report.Stats.CrawlDuration = time.Since(crawlStarted)
		return nil
	})

	group.Go(func() error {
		queryStarted := time.Now()
		res, err := a.client.Query(groupCtx, root,
			watchman.AuditExpression(ignores.Directories()),
			watchman.QueryFields(crawl.HasInodes))
		if err != nil {
			return err
		}
		result = res
		report.Stats.QueryDuration = time.Since(queryStarted)
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	report.Clock = result.Clock
	report.Stats.CrawledEntries = len(snapshot)
	report.Stats.SkippedEntries = len(report.Skipped)
	report.Stats.IndexEntries = len(result.Files)

	engine := reconcile.NewEngine(a.client)
	diff, err := engine.Reconcile(ctx, root, snapshot, result.Files, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}
	report.Diff = diff

	a.compareServiceConfig(root, serviceConfig, report)

	report.Stats.TotalDuration = time.Since(started)
	slog.Info("audit complete",
		slog.String("root", root),
		slog.Int("crawled", report.Stats.CrawledEntries),
		slog.Int("indexed", report.Stats.IndexEntries),
		slog.Int("phantoms", len(diff.Phantoms)),
		slog.Int("missing", len(diff.Missing)),
		slog.Int("mismatched", len(diff.Mismatched)))

	return report, nil
}

// compareServiceConfig checks the on-disk configuration file against
/// the live configuration. All outcomes are findings: a mismatch is
// reported, never corrected, and an unreadable file must not abort a
// reconciliation that has already succeeded.
func (a *Auditor) compareServiceConfig(root string, live map[string]any, report *Report) {
	onDisk, present, err := config.LoadServiceConfig(root)
	report.ConfigPresent = present
	if err != nil {
		report.ConfigFindings = []string{fmt.Sprintf("on-disk %s unusable: %v", config.ServiceConfigFile, err)}
		return
	}
	if !present {
		return
	}
	report.ConfigFindings = config.DiffServiceConfig(onDisk, live)
}

// acquireRunLock takes the per-root run lock so two concurrent audits
// of the same root cannot interleave. The lock lives in the tool's
// state directory, keyed by a hash of the absolute root path.
func acquireRunLock(root, lockDir string) (func(), error) {
	if lockDir == "" {
		lockDir = defaultLockDir()
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, auditerrors.New(auditerrors.ErrCodeLockHeld,
			fmt.Sprintf("cannot create lock directory %s: %v", lockDir, err), err)
	}

	lock := newRunLock(lockDir, root)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, auditerrors.New(auditerrors.ErrCodeLockHeld,
			fmt.Sprintf("cannot acquire run lock for %s: %v", root, err), err)
	}
	if !acquired {
		return nil, auditerrors.New(auditerrors.ErrCodeLockHeld,
			fmt.Sprintf("another audit of %s is already running", root), nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
