package registry

import (
	"fmt"

	"github.com/pario-ai/pariopipe/pkg/config"
)

// Source supplies the raw layered configuration. It is read once per
// registry.
type Source interface {
	Load() (*config.Config, error)
	Describe() string
}

// FileSource reads a single config file.
type FileSource struct {
	Path string
}

func (s FileSource) Load() (*config.Config, error) {
	cfg, err := config.Load(s.Path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s FileSource) Describe() string { return s.Path }

// RootSource finds the config of a project root: its .env and
// config/pipeline.{yaml,yml,toml}, or $PARIOPIPE_CONFIG.
type RootSource struct {
	Root string
}

func (s RootSource) Load() (*config.Config, error) {
	cfg, _, err := config.LoadForRoot(s.Root)
	return cfg, err
}

func (s RootSource) Describe() string { return fmt.Sprintf("project root %s", s.Root) }

// StaticSource serves an in-memory config. A nil Config yields the
// built-in defaults.
type StaticSource struct {
	Config *config.Config
}

func (s StaticSource) Load() (*config.Config, error) {
	if s.Config == nil {
		return config.Default(), nil
	}
	return s.Config, nil
}

func (s StaticSource) Describe() string { return "static config" }
