package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(
		"addr: 127.0.0.1:9000\nroot: /srv/files\nusername: alice\nmaxUploadBytes: 1048576\n"), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/srv/files", cfg.Root)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadBytes)
}

func TestLoadJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(
		`{"addr":"127.0.0.1:9000","root":"/srv/files","allowedExtensions":["txt"]}`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, []string{"txt"}, cfg.AllowedExtensions)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr)
	assert.Equal(t, "uploads", cfg.Root)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Contains(t, cfg.AllowedExtensions, "pdf")
	assert.NotContains(t, cfg.AllowedExtensions, "exe")

	// explicit values survive
	cfg = Config{Addr: ":1", Root: "r", MaxUploadBytes: 5, AllowedExtensions: []string{"txt"}}
	cfg.ApplyDefaults()
	assert.Equal(t, ":1", cfg.Addr)
	assert.Equal(t, "r", cfg.Root)
	assert.Equal(t, int64(5), cfg.MaxUploadBytes)
	assert.Equal(t, []string{"txt"}, cfg.AllowedExtensions)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
