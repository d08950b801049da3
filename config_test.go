package trino

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigBufferSizeDefault(t *testing.T) {
	var c Config
	assert.Equal(t, int64(DefaultBufferSize), c.bufferSize())
}

func TestConfigBufferSizeExplicit(t *testing.T) {
	c := Config{BufferSize: 1024}
	assert.Equal(t, int64(1024), c.bufferSize())
}

func TestConfigResolvedSession(t *testing.T) {
	c := Config{ServerURL: "http://localhost:8080", User: "alice", Catalog: "hive", ClientTags: []string{"a", "b"}}
	s := c.resolvedSession()
	assert.Equal(t, "alice", s.User)
	assert.Equal(t, "hive", s.Catalog)
	assert.Equal(t, []string{"a", "b"}, s.ClientTags)
	assert.NotNil(t, s.Properties)
}

func TestLoadConfigFileMissingIsNotError(t *testing.T) {
	fc, err := LoadConfigFile(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, &FileConfig{}, fc)
}

func TestLoadConfigFileParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
server_url = "http://coordinator:8080"
user = "svc-account"
catalog = "hive"
schema = "default"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	fc, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://coordinator:8080", fc.ServerURL)
	assert.Equal(t, "svc-account", fc.User)
	assert.Equal(t, "hive", fc.Catalog)
}

func TestFileConfigApplyToDoesNotOverrideExplicit(t *testing.T) {
	fc := &FileConfig{ServerURL: "http://from-file:8080", User: "file-user"}
	cfg := &Config{User: "explicit-user"}

	require.NoError(t, fc.ApplyTo(cfg))
	assert.Equal(t, "http://from-file:8080", cfg.ServerURL)
	assert.Equal(t, "explicit-user", cfg.User)
}

func TestFileConfigApplyToSeedsSessionProperties(t *testing.T) {
	fc := &FileConfig{SessionProperties: map[string]string{"query_max_run_time": "1h"}}
	cfg := &Config{}

	require.NoError(t, fc.ApplyTo(cfg))
	require.Equal(t, "1h", cfg.SessionProperties["query_max_run_time"])

	session := cfg.resolvedSession()
	assert.Equal(t, "1h", session.Properties["query_max_run_time"])
}

func TestFileConfigApplyToSessionPropertyDoesNotOverrideExplicit(t *testing.T) {
	fc := &FileConfig{SessionProperties: map[string]string{"query_max_run_time": "1h"}}
	cfg := &Config{SessionProperties: map[string]string{"query_max_run_time": "30m"}}

	require.NoError(t, fc.ApplyTo(cfg))
	assert.Equal(t, "30m", cfg.SessionProperties["query_max_run_time"])
}
