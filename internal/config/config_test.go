package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tracq/internal/compile"
)

func testConfig() Config {
	return Config{
		Default: "work",
		Connections: map[string]ConnectionConfig{
			"work": {
				Kind:        "bugzilla",
				Base:        "https://bugs.example.org",
				User:        "alice@example.org",
				Timeout:     "45s",
				Concurrency: 4,
			},
			"oss": {
				Kind: "github",
				Base: "https://api.github.com",
				Repo: "acme/widget",
			},
		},
	}
}

func TestResolve(t *testing.T) {
	cfg := testConfig()

	t.Run("named connection", func(t *testing.T) {
		backend, conn, err := cfg.Resolve("oss")
		require.NoError(t, err)
		assert.Equal(t, compile.GitHub, backend)
		assert.Equal(t, "acme/widget", conn.Repo)
	})

	t.Run("default connection", func(t *testing.T) {
		backend, conn, err := cfg.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, compile.Bugzilla, backend)
		assert.Equal(t, "alice@example.org", conn.User)
		assert.Equal(t, 45*time.Second, conn.Timeout)
		assert.Equal(t, 4, conn.Concurrency)
	})

	t.Run("single connection needs no default", func(t *testing.T) {
		single := Config{Connections: map[string]ConnectionConfig{
			"only": {Kind: "redmine", Base: "https://redmine.example.org"},
		}}
		backend, _, err := single.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, compile.Redmine, backend)
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, _, err := cfg.Resolve("nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("unknown kind", func(t *testing.T) {
		bad := Config{Connections: map[string]ConnectionConfig{
			"x": {Kind: "jira", Base: "https://example.org"},
		}}
		_, _, err := bad.Resolve("x")
		require.Error(t, err)
	})

	t.Run("missing base", func(t *testing.T) {
		bad := Config{Connections: map[string]ConnectionConfig{
			"x": {Kind: "bugzilla"},
		}}
		_, _, err := bad.Resolve("x")
		require.Error(t, err)
	})

	t.Run("bad timeout", func(t *testing.T) {
		bad := Config{Connections: map[string]ConnectionConfig{
			"x": {Kind: "bugzilla", Base: "https://example.org", Timeout: "soon"},
		}}
		_, _, err := bad.Resolve("x")
		require.Error(t, err)
	})
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# tracq configuration")

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.False(t, cfg.Tracing.Enabled)

	// Never overwrite.
	require.Error(t, WriteDefaultConfig(path))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(testConfig(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Config
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "work", got.Default)
	assert.Equal(t, "bugzilla", got.Connections["work"].Kind)
}
