package chatconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mimic-bot/internal/models"
	"go.uber.org/zap"
)

func TestIsAuthorizedPrecedence(t *testing.T) {
	cfg := models.DefaultChatConfig()
	cfg.AuthorizedChats = []string{"1@c.us", "3@c.us"}
	cfg.AuthorizedGroups = []string{"2@g.us"}
	cfg.Blacklist = []string{"3@c.us", "9@c.us"}
	s := NewInMemory(cfg, zap.NewNop())

	assert.True(t, s.IsAuthorized("1@c.us"))
	assert.True(t, s.IsAuthorized("2@g.us"))
	assert.False(t, s.IsAuthorized("4@c.us"))
	assert.False(t, s.IsAuthorized("1@g.us"), "group ids only match the group set")
	assert.False(t, s.IsAuthorized("3@c.us"), "blacklist beats explicit authorization")

	cfg = s.Snapshot()
	cfg.Settings.RespondToAll = true
	s = NewInMemory(cfg, zap.NewNop())
	assert.True(t, s.IsAuthorized("4@c.us"))
	assert.False(t, s.IsAuthorized("9@c.us"), "blacklist beats respond-to-all")

	cfg.Enabled = false
	s = NewInMemory(cfg, zap.NewNop())
	assert.False(t, s.IsAuthorized("1@c.us"))
}

func TestAuthorizeIsIdempotent(t *testing.T) {
	s := NewInMemory(nil, zap.NewNop())

	changed, err := s.Authorize("5511999@c.us", false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Authorize("5511999@c.us", false)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"5511999@c.us"}, s.Snapshot().AuthorizedChats)
	assert.Empty(t, s.Snapshot().AuthorizedGroups)
}

func TestDeauthorizeAndBlacklist(t *testing.T) {
	s := NewInMemory(nil, zap.NewNop())
	_, err := s.Authorize("g1@g.us", true)
	require.NoError(t, err)

	changed, err := s.Deauthorize("g1@g.us")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Deauthorize("g1@g.us")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.Authorize("1@c.us", false)
	require.NoError(t, err)
	changed, err = s.Blacklist("1@c.us")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, s.Snapshot().AuthorizedChats)
	assert.False(t, s.IsAuthorized("1@c.us"))

	changed, err = s.Unblacklist("1@c.us")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, s.Snapshot().Blacklist)
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "chats.json")

	s, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, s.Snapshot().Enabled)
	assert.True(t, s.Settings().AutoLearn)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk models.ChatConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.True(t, onDisk.Enabled)
}

func TestMutationsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	s, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Authorize("1@c.us", false)
	require.NoError(t, err)
	_, err = s.Authorize("2@g.us", true)
	require.NoError(t, err)

	reloaded, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, reloaded.IsAuthorized("1@c.us"))
	assert.True(t, reloaded.IsAuthorized("2@g.us"))
}

func TestLoadReadsSpecialContacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "enabled": true,
  "authorizedChats": ["7@c.us"],
  "specialContacts": {
    "7@c.us": {"name": "Ana", "type": "partner", "affectionate": true, "nicknames": ["amor"], "debounceMs": 5000}
  }
}`), 0o644))

	s, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	sc, ok := s.SpecialContact("7@c.us")
	require.True(t, ok)
	assert.Equal(t, "Ana", sc.Name)
	assert.True(t, sc.Affectionate)
	assert.Equal(t, int64(5000), sc.DebounceMS)

	_, ok = s.SpecialContact("8@c.us")
	assert.False(t, ok)

	// settings absent from the file keep their defaults
	assert.Equal(t, int64(1500), s.Settings().ResponseDelay)
	assert.NotNil(t, s.Snapshot().Blacklist)
}

func TestPersistFailureLeavesConfigUntouched(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "chats.json"), zap.NewNop())
	require.NoError(t, err)

	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	s.path = filepath.Join(blocker, "chats.json")

	changed, err := s.Authorize("1@c.us", false)
	require.Error(t, err)
	assert.False(t, changed)
	assert.False(t, s.IsAuthorized("1@c.us"))
	assert.Empty(t, s.Snapshot().AuthorizedChats)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Load(path, zap.NewNop())
	require.Error(t, err)
}
