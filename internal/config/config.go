// Package config holds the process-wide settings. The file format is JSON
// or YAML, picked by extension; flags in cmd/filehaven override fields.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is intentionally small. Exactly one credential pair is valid;
// there is no multi-user mode.
type Config struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	// Root is the storage root all managed content lives under.
	// Created on first run if absent.
	Root string `json:"root" yaml:"root"`

	// StateDir stores thumbnails and other derived artifacts.
	// Default: <root>/.filehaven
	StateDir string `json:"stateDir" yaml:"stateDir"`

	// Username and PasswordBcrypt are the single valid credential pair.
	// Generate the hash with: filehaven passwd -p <password>
	Username       string `json:"username" yaml:"username"`
	PasswordBcrypt string `json:"passwordBcrypt" yaml:"passwordBcrypt"`

	// SessionSecret signs session cookies. A random secret is generated
	// at startup when empty (sessions then reset on restart).
	SessionSecret string `json:"sessionSecret" yaml:"sessionSecret"`

	// MaxUploadBytes caps the aggregate size of one upload request.
	MaxUploadBytes int64 `json:"maxUploadBytes" yaml:"maxUploadBytes"`

	// AllowedExtensions is the upload allowlist (no leading dots).
	AllowedExtensions []string `json:"allowedExtensions" yaml:"allowedExtensions"`
}

// DefaultMaxUploadBytes is 16 MiB, matching the original service cap.
const DefaultMaxUploadBytes = 16 << 20

func defaultAllowedExtensions() []string {
	return []string{
		"txt", "pdf", "png", "jpg", "jpeg", "gif", "bmp",
		"doc", "docx", "xls", "xlsx", "ppt", "pptx",
		"zip", "rar", "mp3", "mp4",
	}
}

// Load reads a config file. ".yaml"/".yml" parse as YAML, anything else
// as JSON.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "0.0.0.0:5000"
	}
	if c.Root == "" {
		c.Root = "uploads"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = defaultAllowedExtensions()
	}
}
