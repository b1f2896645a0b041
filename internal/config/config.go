// Package config loads the sitebuilder YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
)

// Config is the top-level sitebuilder configuration.
type Config struct {
	DataDir    string            `yaml:"data_dir"`
	DBPath     string            `yaml:"db_path"`
	LogLevel   string            `yaml:"log_level"`
	HTTP       HTTPConfig        `yaml:"http"`
	Blocks     BlocksConfig      `yaml:"blocks"`
	Publish    PublishConfig     `yaml:"publish"`
	Transpile  TranspileConfig   `yaml:"transpile"`
	Components []ComponentConfig `yaml:"components"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// BlocksConfig controls the watched block library directory.
type BlocksConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type PublishConfig struct {
	OutDir      string `yaml:"out_dir"`
	Concurrency int    `yaml:"concurrency"`
	Schedule    bool   `yaml:"schedule"` // run cron publish schedules under serve
}

// TranspileConfig holds defaults for published artifacts.
type TranspileConfig struct {
	ImportPath   string            `yaml:"import_path"`
	BootstrapURL string            `yaml:"bootstrap_url"`
	Rename       map[string]string `yaml:"rename"` // component type -> output element name
}

// ComponentConfig declares a custom component registered next to the
// built-in catalog.
type ComponentConfig struct {
	Name        string            `yaml:"name"`
	DisplayName string            `yaml:"display_name"`
	Canvas      bool              `yaml:"canvas"`
	Props       map[string]any    `yaml:"props"`
	Slots       map[string]string `yaml:"slots"`
}

// DefaultPath returns ~/.config/sitebuilder/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sitebuilder", "config.yaml")
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, cfg.Validate()
}

// Load reads path, or the default path when empty. A missing default file
// yields the defaults; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	cfg, err := LoadFile(DefaultPath())
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, ".local", "share", "sitebuilder")
	}
	c.DataDir = expandHome(c.DataDir)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "sitebuilder.db")
	}
	c.DBPath = expandHome(c.DBPath)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:7420"
	}
	if c.Blocks.Dir == "" {
		c.Blocks.Dir = filepath.Join(c.DataDir, "blocks")
	}
	c.Blocks.Dir = expandHome(c.Blocks.Dir)
	if c.Publish.OutDir == "" {
		c.Publish.OutDir = filepath.Join(c.DataDir, "public")
	}
	c.Publish.OutDir = expandHome(c.Publish.OutDir)
	if c.Publish.Concurrency <= 0 {
		c.Publish.Concurrency = 4
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	seen := make(map[string]bool, len(c.Components))
	for i, comp := range c.Components {
		if strings.TrimSpace(comp.Name) == "" {
			return fmt.Errorf("components[%d]: name is required", i)
		}
		if seen[comp.Name] {
			return fmt.Errorf("components[%d]: duplicate component %q", i, comp.Name)
		}
		seen[comp.Name] = true
	}
	return nil
}

// ApplyLogging sets the global logrus level.
func (c *Config) ApplyLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// Resolver returns the default catalog extended with the configured
// components. A configured component replaces a built-in of the same name.
func (c *Config) Resolver() (*resolver.Resolver, error) {
	r := resolver.Default()
	for _, comp := range c.Components {
		props, err := prop.FromMap(comp.Props)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", comp.Name, err)
		}
		for slot, typ := range comp.Slots {
			if typ != comp.Name && !r.Has(typ) && !c.declares(typ) {
				return nil, fmt.Errorf("component %s: slot %s uses unknown component %s", comp.Name, slot, typ)
			}
		}
		r.Register(resolver.Component{
			Name:              comp.Name,
			DisplayName:       comp.DisplayName,
			DefaultProps:      props,
			CanAcceptChildren: comp.Canvas,
			Slots:             comp.Slots,
		})
	}
	return r, nil
}

func (c *Config) declares(name string) bool {
	for _, comp := range c.Components {
		if comp.Name == name {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
