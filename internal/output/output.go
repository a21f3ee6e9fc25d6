// Package output renders audit reports for terminals and pipelines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/indexaudit/internal/audit"
	"github.com/Aman-CERP/indexaudit/internal/crawl"
	"github.com/Aman-CERP/indexaudit/internal/watchman"
)

// Options configures a Renderer.
type Options struct {
	// JSON emits the machine-readable report instead of styled text.
	JSON bool

	// NoColor disables styling even on a terminal.
	NoColor bool
}

// Renderer writes audit reports to a single destination.
type Renderer struct {
	out    io.Writer
	styles Styles
	json   bool
}

// NewRenderer builds a renderer for the given writer. Color is used
// only when the writer is a terminal, no NO_COLOR variable is set, and
// the caller did not opt out.
func NewRenderer(out io.Writer, opts Options) *Renderer {
	noColor := opts.NoColor || DetectNoColor() || !IsTTY(out)
	return &Renderer{
		out:    out,
		styles: GetStyles(noColor),
		json:   opts.JSON,
	}
}

// Render writes the report in the configured format.
func (r *Renderer) Render(report *audit.Report) error {
	if r.json {
		return r.renderJSON(report)
	}
	return r.renderText(report)
}

func (r *Renderer) renderText(report *audit.Report) error {
	s := r.styles

	fmt.Fprintln(r.out, s.Header.Render("Index audit: "+report.Root))
	fmt.Fprintf(r.out, "%s %s entries crawled, %s indexed, clock %s\n",
		s.Label.Render("scope:"),
		humanize.Comma(int64(report.Stats.CrawledEntries)),
		humanize.Comma(int64(report.Stats.IndexEntries)),
		report.Clock)

	for _, entry := range report.Diff.Phantoms {
		fmt.Fprintf(r.out, "%s %s (%s, oclock %s)\n",
			s.Problem.Render("phantom:"), entry.Name,
			humanize.Bytes(uint64(entry.Size)), entry.OClock)
	}
	for _, rec := range report.Diff.Missing {
		fmt.Fprintf(r.out, "%s %s (%s, mode %s)\n",
			s.Problem.Render("missing:"), rec.RelPath,
			humanize.Bytes(uint64(rec.Size)),
			strconv.FormatUint(uint64(rec.Mode), 8))
	}
	for _, m := range report.Diff.Mismatched {
		fmt.Fprintf(r.out, "%s %s\n", s.Problem.Render("mismatched:"), m.FS.RelPath)
		for _, diff := range m.Diffs {
			fmt.Fprintf(r.out, "  %s\n", diff)
		}
		fmt.Fprintf(r.out, "  %s %s\n", s.Label.Render("oclock"), m.Index.OClock)
	}
	for _, entry := range report.Diff.MissingFollowUp {
		fmt.Fprintf(r.out, "%s %s (oclock %s)\n",
			s.Warning.Render("follow-up:"), entry.Name, entry.OClock)
	}

	for _, finding := range report.ConfigFindings {
		fmt.Fprintf(r.out, "%s %s\n", s.Warning.Render("config:"), finding)
	}
	for _, skip := range report.Skipped {
		fmt.Fprintf(r.out, "%s %s: %s\n", s.Warning.Render("skipped:"), skip.Path, skip.Reason)
	}

	divergences := len(report.Diff.Phantoms) + len(report.Diff.Missing) + len(report.Diff.Mismatched)
	switch {
	case divergences == 0 && len(report.ConfigFindings) == 0:
		fmt.Fprintln(r.out, s.Clean.Render("consistent"))
	case divergences == 0:
		fmt.Fprintf(r.out, "%s (%d config findings)\n",
			s.Warning.Render("consistent with findings"), len(report.ConfigFindings))
	default:
		fmt.Fprintf(r.out, "%s\n",
			s.Problem.Render(fmt.Sprintf("%d divergences", divergences)))
	}

	fmt.Fprintln(r.out, s.Dim.Render(fmt.Sprintf(
		"crawl %s, query %s, total %s",
		report.Stats.CrawlDuration.Round(time.Millisecond),
		report.Stats.QueryDuration.Round(time.Millisecond),
		report.Stats.TotalDuration.Round(time.Millisecond))))
	return nil
}

// jsonReport is the stable machine-readable shape. Index-side entries
// keep their wire field names; filesystem records mirror them so both
// sides of a mismatch read the same way.
type jsonReport struct {
	Root            string               `json:"root"`
	CaseSensitive   bool                 `json:"case_sensitive"`
	Clock           string               `json:"clock,omitempty"`
	Consistent      bool                 `json:"consistent"`
	Phantoms        []watchman.FileEntry `json:"phantoms"`
	Missing         []jsonRecord         `json:"missing"`
	Mismatched      []jsonMismatch       `json:"mismatched"`
	MissingFollowUp []watchman.FileEntry `json:"missing_follow_up,omitempty"`
	ConfigPresent   bool                 `json:"config_present"`
	ConfigFindings  []string             `json:"config_findings,omitempty"`
	Skipped         []jsonSkipped        `json:"skipped,omitempty"`
	Stats           jsonStats            `json:"stats"`
}

type jsonRecord struct {
	Name   string  `json:"name"`
	Mode   uint32  `json:"mode"`
	Size   int64   `json:"size"`
	MTimeF float64 `json:"mtime_f"`
	Ino    uint64  `json:"ino,omitempty"`
}

type jsonMismatch struct {
	Name   string             `json:"name"`
	Index  watchman.FileEntry `json:"index"`
	FS     jsonRecord         `json:"filesystem"`
	Diffs  []string           `json:"diffs"`
	OClock string             `json:"oclock"`
}

type jsonSkipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type jsonStats struct {
	CrawledEntries int    `json:"crawled_entries"`
	SkippedEntries int    `json:"skipped_entries"`
	IndexEntries   int    `json:"index_entries"`
	CrawlDuration  string `json:"crawl_duration"`
	QueryDuration  string `json:"query_duration"`
	TotalDuration  string `json:"total_duration"`
}

func toJSONRecord(rec crawl.FileRecord) jsonRecord {
	return jsonRecord{
		Name:   rec.RelPath,
		Mode:   rec.Mode,
		Size:   rec.Size,
		MTimeF: rec.MTimeF,
		Ino:    rec.Ino,
	}
}

func (r *Renderer) renderJSON(report *audit.Report) error {
	view := jsonReport{
		Root:            report.Root,
		CaseSensitive:   report.CaseSensitive,
		Clock:           report.Clock,
		Consistent:      report.Diff.Clean(),
		Phantoms:        report.Diff.Phantoms,
		Missing:         make([]jsonRecord, 0, len(report.Diff.Missing)),
		Mismatched:      make([]jsonMismatch, 0, len(report.Diff.Mismatched)),
		MissingFollowUp: report.Diff.MissingFollowUp,
		ConfigPresent:   report.ConfigPresent,
		ConfigFindings:  report.ConfigFindings,
		Stats: jsonStats{
			CrawledEntries: report.Stats.CrawledEntries,
			SkippedEntries: report.Stats.SkippedEntries,
			IndexEntries:   report.Stats.IndexEntries,
			CrawlDuration:  report.Stats.CrawlDuration.String(),
			QueryDuration:  report.Stats.QueryDuration.String(),
			TotalDuration:  report.Stats.TotalDuration.String(),
		},
	}
	if view.Phantoms == nil {
		view.Phantoms = []watchman.FileEntry{}
	}
	for _, rec := range report.Diff.Missing {
		view.Missing = append(view.Missing, toJSONRecord(rec))
	}
	for _, m := range report.Diff.Mismatched {
		view.Mismatched = append(view.Mismatched, jsonMismatch{
			Name:   m.FS.RelPath,
			Index:  m.Index,
			FS:     toJSONRecord(m.FS),
			Diffs:  m.Diffs,
			OClock: m.Index.OClock,
		})
	}
	for _, skip := range report.Skipped {
		view.Skipped = append(view.Skipped, jsonSkipped{Path: skip.Path, Reason: skip.Reason})
	}

	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

// IsTTY checks whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
