package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
)

// ServiceConfigFile is the JSON configuration file the index service
// reads at the watch root.
const ServiceConfigFile = ".watchmanconfig"

// LoadServiceConfig reads the on-disk service configuration at root.
// An absent file is a valid state (present=false, no error); a present
// but unparseable file is a config error.
func LoadServiceConfig(root string) (map[string]any, bool, error) {
	path := filepath.Join(root, ServiceConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, auditerrors.New(auditerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read %s: %v", path, err), err)
	}

	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, true, auditerrors.ConfigError(
			fmt.Sprintf("%s is not a JSON object: %v", path, err), err)
	}
	return config, true, nil
}

// DiffServiceConfig compares the on-disk configuration against the
// service's live configuration for the same root by structural
// equality. Both sides come through encoding/json, so key order and
// number representation do not produce spurious differences. Findings
// are human-readable and sorted; an empty result means the
// configurations agree. Mismatches are reported, never auto-corrected.
func DiffServiceConfig(onDisk, live map[string]any) []string {
	keys := make(map[string]bool, len(onDisk)+len(live))
	for key := range onDisk {
		keys[key] = true
	}
	for key := range live {
		keys[key] = true
	}

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	var findings []string
	for _, key := range sorted {
		diskValue, onDiskHas := onDisk[key]
		liveValue, liveHas := live[key]
		switch {
		case onDiskHas && !liveHas:
			findings = append(findings, fmt.Sprintf("key %q: set on disk (%v) but absent from live config", key, diskValue))
		case !onDiskHas && liveHas:
			findings = append(findings, fmt.Sprintf("key %q: absent on disk but live config has %v", key, liveValue))
		case !reflect.DeepEqual(diskValue, liveValue):
			findings = append(findings, fmt.Sprintf("key %q: on disk %v, live %v", key, diskValue, liveValue))
		}
	}
	return findings
}
