// Package watchman implements the query client for the file-watching
// index service being audited.
//
// The wire protocol is line-delimited JSON over a unix-domain socket:
// a request is a JSON array of the operation name followed by its
// arguments, and each response is a single JSON object. The service
// may interleave unilateral PDUs (log lines, subscription pushes) ahead
// of a command response; those are skipped, never returned.
package watchman

import (
	"encoding/json"
	"fmt"

	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
)

// Operation names understood by the index service.
const (
	opGetConfig = "get-config"
	opQuery     = "query"
	opWatchList = "watch-list"
)

// FileEntry is one index record, projected to the requested fields.
// Response items are decoded into this tagged shape at the boundary;
// dynamic field access never leaves this package.
type FileEntry struct {
	// Name is the slash-separated path relative to the watch root, in
	// the case the index has stored.
	Name string `json:"name"`

	// Mode holds platform file-mode bits (type + permissions).
	Mode uint32 `json:"mode"`

	// Size is the byte count the index believes the entity has.
	Size int64 `json:"size"`

	// MTimeF is the fractional modification time in epoch seconds.
	MTimeF float64 `json:"mtime_f"`

	// OClock is the opaque logical-clock token identifying the last
	// observed change of this entry. Diagnostic only, never compared.
	OClock string `json:"oclock"`

	// Ino is the inode number, present only where the platform
	// exposes stable inode numbers.
	Ino uint64 `json:"ino"`
}

// QueryResult is the outcome of a single query operation. An empty
// Files list is a valid outcome, distinct from any transport failure.
type QueryResult struct {
	// Files preserves the order the service returned.
	Files []FileEntry

	// Clock is the index clock at which the query was evaluated.
	Clock string
}

// pdu is the decoded form of one response object. Field presence
// depends on the operation; Log and Subscription mark unilateral PDUs.
type pdu struct {
	Version      string            `json:"version"`
	Error        string            `json:"error"`
	Files        []json.RawMessage `json:"files"`
	Config       map[string]any    `json:"config"`
	Roots        []string          `json:"roots"`
	Clock        string            `json:"clock"`
	Log          string            `json:"log"`
	Subscription string            `json:"subscription"`
}

// unilateral reports whether the PDU is service-initiated traffic
// rather than the response to a command.
func (p *pdu) unilateral() bool {
	return p.Log != "" || p.Subscription != ""
}

// decodeFiles converts raw file items into typed entries, rejecting
// unexpected shapes.
func decodeFiles(raw []json.RawMessage) ([]FileEntry, error) {
	files := make([]FileEntry, 0, len(raw))
	for i, item := range raw {
		var entry FileEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			return nil, auditerrors.New(auditerrors.ErrCodeMalformedResponse,
				fmt.Sprintf("file item %d is not a record: %v", i, err), err)
		}
		if entry.Name == "" {
			return nil, auditerrors.New(auditerrors.ErrCodeMalformedResponse,
				fmt.Sprintf("file item %d has no name", i), nil)
		}
		files = append(files, entry)
	}
	return files, nil
}
