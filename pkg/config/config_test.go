package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	require.NoError(t, Init(filepath.Join(dir, "config.toml")))

	assert.Equal(t, dir, GetConfigDir())
	assert.Equal(t, "http://localhost:8800", GetString("api.base_url"))
	assert.Equal(t, "ws://localhost:8900/socket", GetString("relay.url"))
	assert.Equal(t, 10*time.Minute, GetDuration("cache.ttl"))
	assert.Equal(t, 30*time.Second, RequestTimeout())
	assert.Equal(t, filepath.Join(dir, "store"), GetString("store.dir"))
}

func TestInitReadsUserFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_url = \"http://api.test\"\n\n[cache]\nttl = \"30s\"\n"), 0600))

	require.NoError(t, Init(path))
	assert.Equal(t, "http://api.test", GetString("api.base_url"))
	assert.Equal(t, 30*time.Second, GetDuration("cache.ttl"))
}

func TestSetStringPersists(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Init(path))
	require.NoError(t, SetString("user.id", "alice"))

	viper.Reset()
	require.NoError(t, Init(path))
	assert.Equal(t, "alice", GetString("user.id"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/abs", expandPath("/abs"))
}
