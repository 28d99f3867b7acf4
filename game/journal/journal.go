// Package journal records tick reports as compressed JSON lines so finished
// runs can be inspected or replayed later.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// Entry is one journaled tick
type Entry struct {
	RunID      string            `json:"run_id"`
	SessionID  string            `json:"session_id"`
	Tick       int               `json:"tick"`
	Collisions []track.Collision `json:"collisions,omitempty"`
	LiveCarts  int               `json:"live_carts"`
	Timestamp  int64             `json:"timestamp"`
}

// Journal appends tick reports of every session to hourly files
type Journal struct {
	w     *JSONLZstdWriter
	runID string
}

// New creates a journal writing ticks-<hour>.jsonl.zst files under dir
func New(dir string) *Journal {
	return &Journal{
		w:     NewJSONLZstdWriter(dir, "ticks"),
		runID: uuid.NewString(),
	}
}

// RunID identifies the process that wrote an entry
func (j *Journal) RunID() string {
	return j.runID
}

// Append writes a tick report for a session
func (j *Journal) Append(sessionID string, report engine.TickReport) error {
	return j.w.Write(Entry{
		RunID:      j.runID,
		SessionID:  sessionID,
		Tick:       report.Tick,
		Collisions: report.Collisions,
		LiveCarts:  report.LiveCarts,
		Timestamp:  report.Timestamp,
	})
}

// Close flushes the current journal file
func (j *Journal) Close() error {
	return j.w.Close()
}

// Files lists the journal files in dir, oldest first
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile decodes every entry of a journal file
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	var entries []Entry
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return entries, fmt.Errorf("failed to decode entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
