package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/minecarts/game/config"
)

func newFileTestPersistence(t *testing.T) (*FilePersistence, *config.Manager, string) {
	t.Helper()

	configManager, err := config.NewManager("../../configs")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "sessions")
	persistence, err := NewFilePersistence(dir, configManager)
	require.NoError(t, err)

	return persistence, configManager, dir
}

func TestFilePersistence_SaveLoad(t *testing.T) {
	persistence, configManager, _ := newFileTestPersistence(t)

	session := newTestSession(t, "Run1", configManager.GetDefault())
	_, err := session.Engine.Step()
	require.NoError(t, err)
	require.NoError(t, persistence.Save(session))

	assert.True(t, persistence.Exists("run1"))
	assert.True(t, persistence.Exists("RUN1"))

	loaded, err := persistence.Load("run1")
	require.NoError(t, err)
	assert.Equal(t, "Run1", loaded.ID)
	assert.Equal(t, session.Config.Name, loaded.Config.Name)
	assert.Equal(t, 1, loaded.Engine.GetTick())
	assert.Equal(t, session.Engine.Render(), loaded.Engine.Render())
	assert.Len(t, loaded.Engine.GetTickHistory(), 1)

	restored, err := loaded.Engine.Run(t.Context())
	require.NoError(t, err)
	original, err := session.Engine.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, original.Answer(), restored.Answer())
	assert.Equal(t, original.Ticks, restored.Ticks)
}

func TestFilePersistence_ListAll(t *testing.T) {
	persistence, configManager, dir := newFileTestPersistence(t)

	for _, id := range []string{"zeta", "alpha"} {
		require.NoError(t, persistence.Save(newTestSession(t, id, configManager.GetDefault())))
	}

	// stray entries are not sessions
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta.json.tmp"), []byte("{}"), 0644))

	ids, err := persistence.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
	assert.False(t, persistence.Exists("nested"))
}

func TestFilePersistence_Missing(t *testing.T) {
	persistence, configManager, _ := newFileTestPersistence(t)

	_, err := persistence.Load("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, persistence.Delete("nope"), ErrSessionNotFound)
	assert.Error(t, persistence.Save(nil))

	require.NoError(t, persistence.Save(newTestSession(t, "gone", configManager.GetDefault())))
	require.NoError(t, persistence.Delete("GONE"))
	assert.False(t, persistence.Exists("gone"))
}

func TestFilePersistence_FileLayout(t *testing.T) {
	persistence, configManager, dir := newFileTestPersistence(t)

	require.NoError(t, persistence.Save(newTestSession(t, "File_Test", configManager.GetDefault())))

	path := filepath.Join(dir, "file_test.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"id", "config_name", "created_at", "last_accessed_at", "layout_config", "sim_state"} {
		assert.Contains(t, fields, key)
	}

	var persisted PersistedSessionData
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "classic", persisted.ConfigName)
	assert.Equal(t, "File_Test", persisted.ID)

	assert.NoFileExists(t, path+".tmp")
}

func TestFilePersistence_LayoutFromConfigID(t *testing.T) {
	persistence, _, dir := newFileTestPersistence(t)

	// records without an embedded layout resolve it through the config manager
	record := `{"id": "old1", "config_name": "crossing", "created_at": "2024-01-01T00:00:00Z", "last_accessed_at": "2024-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old1.json"), []byte(record), 0644))

	loaded, err := persistence.Load("OLD1")
	require.NoError(t, err)
	assert.Equal(t, "Crossing", loaded.Config.Name)
	assert.Equal(t, 0, loaded.Engine.GetTick())
}
