// Package config loads the songgen YAML configuration.
//
// Every field is optional; missing fields keep the values of Default.
//
//	corpus:
//	  midi_dir: data/midi
//	  spectrogram_dir: data/spectrograms
//	features:
//	  roles: [vocals, drums, bass, other]
//	  window_length: 100
//	  bands: 128
//	train:
//	  epochs: 20
//	  batch_size: 2
//	storage:
//	  backend: s3
//	  bucket: my-models
//	  prefix: songgen
//	cache_dir: ~/.songgen/cache
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/songgen/pkg/cli"
	"github.com/haivivi/songgen/pkg/songgen"
	"github.com/haivivi/songgen/pkg/storage"
	"github.com/haivivi/songgen/pkg/track"
)

// Config is the whole file.
type Config struct {
	songgen.Config `yaml:",inline"`

	Storage storage.Config `yaml:"storage"`
	// CacheDir holds the badger corpus cache. Empty disables caching.
	CacheDir string `yaml:"cache_dir"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file is given: corpus
// under ./data, models and cache under the per-user directory.
func Default(paths *cli.Paths) *Config {
	cfg := &Config{Config: songgen.DefaultConfig()}
	cfg.Corpus.MIDIDir = filepath.Join("data", "midi")
	cfg.Corpus.SpectrogramDir = filepath.Join("data", "spectrograms")
	cfg.Storage = storage.Config{Backend: "local", Dir: paths.ModelDir()}
	cfg.CacheDir = paths.CacheDir()
	return cfg
}

// Load reads path over Default. An empty path falls back to the per-user
// config file, which may be absent.
func Load(path string, paths *cli.Paths) (*Config, error) {
	cfg := Default(paths)
	explicit := path != ""
	if !explicit {
		path = paths.ConfigFile()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return cfg, cfg.validate()
	default:
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	cfg.CacheDir = expandHome(cfg.CacheDir)
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	labels := make([]string, len(c.Features.Roles))
	for i, r := range c.Features.Roles {
		labels[i] = string(r)
	}
	roles, err := track.ParseRoles(labels)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Features.Roles = roles
	if err := c.Plan.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
