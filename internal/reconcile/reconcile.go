// Package reconcile diffs the index service's view of a tree against
// the filesystem snapshot and classifies every divergence.
//
// The result is a pure set/map reconciliation: identical regardless of
// crawl traversal order or index record order. Index-side iteration
// drives phantom and mismatch classification because the index result
// set is typically much smaller than a full walk of a large tree; the
// filesystem-only pass is a single set difference. Overall cost is
// O(|index| + |snapshot|).
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Aman-CERP/indexaudit/internal/crawl"
	"github.com/Aman-CERP/indexaudit/internal/watchman"
)

// Mismatch pairs an index record and a filesystem record that share a
// normalized key but differ in one or more compared fields. Diffs are
// collected completely, never short-circuited, so an investigator sees
// every divergent field alongside the record's logical-clock token.
type Mismatch struct {
	Index watchman.FileEntry
	FS    crawl.FileRecord
	Diffs []string
}

// DiffReport is the structured outcome of one reconciliation. Empty
// slices mean no divergence; a report always exists, divergence is a
// finding rather than a failure.
type DiffReport struct {
	// Phantoms are index records with no filesystem counterpart.
	Phantoms []watchman.FileEntry

	// Missing are filesystem records the index never reported,
	// sorted by path for stable output.
	Missing []crawl.FileRecord

	// Mismatched are matched pairs with field-level differences.
	Mismatched []Mismatch

	// MissingFollowUp is the raw index response when asked about the
	// literal names of the missing entries, surfaced for manual
	// inspection (a record here under different casing reveals a
	// case/rename artifact). Never auto-classified.
	MissingFollowUp []watchman.FileEntry
}

// Clean reports whether the reconciliation found no divergence.
func (r *DiffReport) Clean() bool {
	return len(r.Phantoms) == 0 && len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Diff reconciles the snapshot and the index records under the given
// case sensitivity. Index records are keyed with the same normalization
// as the snapshot before lookup.
func Diff(snapshot crawl.Snapshot, records []watchman.FileEntry, caseSensitive bool) *DiffReport {
	report := &DiffReport{}
	seen := make(map[string]bool, len(records))

	for _, record := range records {
		key := crawl.Key(record.Name, caseSensitive)

		fsRecord, ok := snapshot[key]
		if !ok {
			// The index believes this exists; the filesystem disagrees.
			report.Phantoms = append(report.Phantoms, record)
			continue
		}
		seen[key] = true

		if diffs := compareFields(record, fsRecord); len(diffs) > 0 {
			report.Mismatched = append(report.Mismatched, Mismatch{
				Index: record,
				FS:    fsRecord,
				Diffs: diffs,
			})
		}
	}

	for key, fsRecord := range snapshot {
		if !seen[key] {
			report.Missing = append(report.Missing, fsRecord)
		}
	}
	sort.Slice(report.Missing, func(i, j int) bool {
		return report.Missing[i].RelPath < report.Missing[j].RelPath
	})

	return report
}

// compareFields collects every field-level difference between an index
// record and its matched filesystem record.
func compareFields(index watchman.FileEntry, fs crawl.FileRecord) []string {
	var diffs []string

	// Exact, un-normalized comparison: keys matched, so a difference
	// here is a case or encoding divergence in its own right.
	if index.Name != fs.RelPath {
		diffs = append(diffs, fmt.Sprintf("name: index %q vs filesystem %q", index.Name, fs.RelPath))
	}

	if index.Mode != fs.Mode {
		diffs = append(diffs, fmt.Sprintf("mode: index %o vs filesystem %o", index.Mode, fs.Mode))
	}

	// Directory sizes are not meaningfully comparable across
	// implementations.
	if !fs.IsDir() && index.Size != fs.Size {
		diffs = append(diffs, fmt.Sprintf("size: index %d vs filesystem %d", index.Size, fs.Size))
	}

	// Exact equality, no epsilon: the point is to surface divergence,
	// not to filter noise.
	if index.MTimeF != fs.MTimeF {
		diffs = append(diffs, fmt.Sprintf("mtime_f: index %s vs filesystem %s",
			formatMTime(index.MTimeF), formatMTime(fs.MTimeF)))
	}

	if crawl.HasInodes && index.Ino != fs.Ino {
		diffs = append(diffs, fmt.Sprintf("ino: index %d vs filesystem %d", index.Ino, fs.Ino))
	}

	return diffs
}

func formatMTime(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FollowUpQuerier issues the narrow disambiguation query for missing
// entries. *watchman.Client satisfies it.
type FollowUpQuerier interface {
	Query(ctx context.Context, root string, expr watchman.Expr, fields []string) (*watchman.QueryResult, error)
}

// Engine runs the diff and, when entries are missing from the index,
// asks the service about their literal names to separate true misses
// from rename and case artifacts.
type Engine struct {
	querier FollowUpQuerier
}

// NewEngine creates an engine. A nil querier disables the follow-up
// query; the diff itself is unaffected.
func NewEngine(querier FollowUpQuerier) *Engine {
	return &Engine{querier: querier}
}

// Reconcile produces the DiffReport for one audit. Only the follow-up
// query can fail, and only with a transport-class error.
func (e *Engine) Reconcile(ctx context.Context, root string, snapshot crawl.Snapshot, records []watchman.FileEntry, caseSensitive bool) (*DiffReport, error) {
	report := Diff(snapshot, records, caseSensitive)

	if len(report.Missing) > 0 && e.querier != nil {
		paths := make([]string, 0, len(report.Missing))
		for _, record := range report.Missing {
			paths = append(paths, record.RelPath)
		}

		result, err := e.querier.Query(ctx, root,
			watchman.FollowUpExpression(paths), watchman.QueryFields(crawl.HasInodes))
		if err != nil {
			return nil, err
		}
		report.MissingFollowUp = result.Files
	}

	return report, nil
}
