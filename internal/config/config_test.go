package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitrone/storesync/internal/store"
)

func writeRaw(t *testing.T, dir, body string) {
	t.Helper()
	cfgDir := filepath.Join(dir, ".storesync")
	require.NoError(t, os.MkdirAll(cfgDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config"), []byte(body), 0600))
}

func TestSaveConfigCreatesDirectories(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Config{
		APIKey: "test-key",
	}

	err := cfg.Save()
	require.NoError(t, err)

	// Verify file exists and has correct permissions
	info, err := os.Stat(Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadConfigNonExistent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSaveLoadRoundtripWithStores(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	original := Config{
		ServerURL: "http://api.test",
		APIKey:    "sk_verylongkeystring12345",
		Timeout:   "5s",
		LogLevel:  "debug",
		StateDB:   "/tmp/state.db",
		Stores: map[string]StoreConfig{
			"article": {
				Sort:  "-id",
				Limit: 10,
				API: Endpoints{
					Search: Endpoint{URL: "/api/articles/find", Params: map[string]any{"fields": "id,title"}},
				},
				Toggles: map[string]Toggle{"mine": {Key: "owner", Value: "me"}},
			},
		},
	}

	require.NoError(t, original.Save())

	loaded, err := Load()
	require.NoError(t, err)

	assert.Equal(t, original.ServerURL, loaded.ServerURL)
	assert.Equal(t, original.APIKey, loaded.APIKey)
	assert.Equal(t, original.LogLevel, loaded.LogLevel)
	assert.Equal(t, "/tmp/state.db", loaded.StateDBPath())

	timeout, err := loaded.HTTPTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)

	sc := loaded.Store("article")
	assert.Equal(t, "-id", sc.Sort)
	assert.Equal(t, 10, sc.Limit)
	assert.Equal(t, "/api/articles/find", sc.API.Search.URL)
	assert.Equal(t, "id,title", sc.API.Search.Params["fields"])
	assert.Equal(t, Toggle{Key: "owner", Value: "me"}, sc.Toggles["mine"])
}

func TestSaveConfigOverwritesExisting(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, (&Config{APIKey: "key1"}).Save())
	require.NoError(t, (&Config{APIKey: "key2"}).Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key2", loaded.APIKey)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	writeRaw(t, dir, "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	writeRaw(t, dir, "invalid: yaml: content:")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadConfigMissingAPIKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	writeRaw(t, dir, "server_url: http://api.test\n")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadConfigRejectsBadTimeout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	writeRaw(t, dir, "api_key: k\ntimeout: soon\n")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestConfigPermissionsStrictlyEnforced(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Config{APIKey: "secret"}
	require.NoError(t, cfg.Save())

	// Try to make it world-readable
	require.NoError(t, os.Chmod(Path(), 0644))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestStoreDefaults(t *testing.T) {
	cfg := Config{APIKey: "k"}

	sc := cfg.Store("user")
	assert.Equal(t, "users", sc.NamePlural)
	assert.Equal(t, "/api/users/", sc.API.Load.URL)
	assert.Equal(t, "/api/users/", sc.API.Save.URL)
	assert.Equal(t, "/api/users/", sc.API.Delete.URL)
	assert.Equal(t, "/api/users/search", sc.API.Search.URL)
	assert.Equal(t, []string{"id", "title"}, sc.Columns)

	timeout, err := cfg.HTTPTimeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, timeout)
	assert.Equal(t, DefaultStateDB(), cfg.StateDBPath())
}

func TestStoreOptionsConversion(t *testing.T) {
	sc := StoreConfig{
		NamePlural:   "people",
		QueryFilter:  map[string]any{"active": 1},
		Sort:         "name",
		ExtendedView: true,
		Limit:        50,
		API: Endpoints{
			Load: Endpoint{URL: "/v2/people/", Params: map[string]any{"expand": "org"}},
		},
	}.withDefaults("person")

	opts := sc.Options()
	assert.Equal(t, "people", opts.NamePlural)
	assert.Equal(t, store.Filter{"active": 1}, opts.QueryFilter)
	assert.Equal(t, "name", opts.Sort)
	assert.True(t, opts.ExtendedView)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, store.Endpoint{URL: "/v2/people/", Params: map[string]any{"expand": "org"}}, opts.API.Load)
	assert.Equal(t, "/v2/people/", opts.API.Save.URL)
	assert.Equal(t, "/v2/people/search", opts.API.Search.URL)
}

func TestStoreNamesAndToggleLabelsSorted(t *testing.T) {
	cfg := Config{Stores: map[string]StoreConfig{
		"zeta":  {},
		"alpha": {Toggles: map[string]Toggle{"b": {Key: "b"}, "a": {Key: "a"}}},
	}}
	assert.Equal(t, []string{"alpha", "zeta"}, cfg.StoreNames())
	assert.Equal(t, []string{"a", "b"}, cfg.Store("alpha").ToggleLabels())
}

func TestPathReturnsCorrectLocation(t *testing.T) {
	path := Path()
	assert.Contains(t, path, ".storesync")
	assert.Contains(t, path, "config")
}
