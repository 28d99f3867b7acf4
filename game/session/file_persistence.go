package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/minecarts/game/service"
)

const sessionFileExt = ".json"

// FilePersistence stores each session as <dir>/<id>.json
type FilePersistence struct {
	dir     string
	configs service.ConfigManager
}

// NewFilePersistence creates dir if needed and stores sessions in it
func NewFilePersistence(dir string, configs service.ConfigManager) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FilePersistence{dir: dir, configs: configs}, nil
}

// Save writes the session through a temp file so readers never see a partial file
func (fp *FilePersistence) Save(session *service.Session) error {
	record, err := persistedFromSession(session, fp.configs)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	target := fp.path(session.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	payload, err := os.ReadFile(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var record PersistedSessionData
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return restoreSession(&record, fp.configs)
}

func (fp *FilePersistence) Delete(id string) error {
	err := os.Remove(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns the stored session IDs in name order
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasSuffix(name, sessionFileExt) {
			ids = append(ids, strings.TrimSuffix(name, sessionFileExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (fp *FilePersistence) Exists(id string) bool {
	info, err := os.Stat(fp.path(id))
	return err == nil && info.Mode().IsRegular()
}

// path maps an ID to its file; IDs are case-insensitive
func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.dir, normalizeID(id)+sessionFileExt)
}
