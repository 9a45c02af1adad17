package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/domain/market"
)

// LoadSnapshots reads market snapshots from a JSON array file (.json) or a
// line-delimited file (.jsonl), sorted by timestamp. Decode failures on
// individual JSONL lines are logged and skipped; a malformed .json file is an
// error.
func LoadSnapshots(path string) ([]market.Snapshot, error) {
	switch filepath.Ext(path) {
	case ".jsonl":
		return loadJSONL(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported snapshot file %s: want .json or .jsonl", path)
	}
}

func loadJSON(path string) ([]market.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", path, err)
	}
	var snapshots []market.Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", path, err)
	}
	sortByTime(snapshots)
	return snapshots, nil
}

func loadJSONL(path string) ([]market.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file %s: %w", path, err)
	}
	defer f.Close()

	var snapshots []market.Snapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap market.Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			log.Warn().Err(err).Int("line", lineNo).Str("file", path).
				Msg("Skipping malformed snapshot line")
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot file %s: %w", path, err)
	}
	sortByTime(snapshots)
	return snapshots, nil
}

func sortByTime(snapshots []market.Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})
}
