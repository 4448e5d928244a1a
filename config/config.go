// tagbox
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of tagbox.
//
// tagbox is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// tagbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tagbox; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads the player settings from tagbox.yaml with
// TAGBOX_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/tagbox/credential"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a flag nor TAGBOX_CONFIG names a file.
const DefaultPath = "tagbox.yaml"

// Reader transports.
const (
	TransportUART = "uart"
	TransportI2C  = "i2c"
)

// Config is the complete player configuration.
type Config struct {
	Reader     ReaderConfig     `yaml:"reader"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Credential CredentialConfig `yaml:"credential"`
	Mapping    MappingConfig    `yaml:"mapping"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Admin      AdminConfig      `yaml:"admin"`
	Button     ButtonConfig     `yaml:"button"`
}

// ReaderConfig selects the PN532 link.
type ReaderConfig struct {
	Transport   string        `yaml:"transport"` // uart, i2c
	Device      string        `yaml:"device"`    // serial port or I2C bus name, empty to detect
	IgnorePorts []string      `yaml:"ignore_ports,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
}

// MonitorConfig tunes card polling.
type MonitorConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	RemovalThreshold int           `yaml:"removal_threshold"`
}

// CredentialConfig is the card memory range holding admin credentials.
type CredentialConfig struct {
	Sector int `yaml:"sector"`
	Block  int `yaml:"block"`
	Blocks int `yaml:"blocks"`
}

// MappingConfig locates the mapping database.
type MappingConfig struct {
	MediaRoot        string `yaml:"media_root"`
	File             string `yaml:"file"`
	VerifyReferenced bool   `yaml:"verify_referenced"`
}

// PlaybackConfig names the external player program.
type PlaybackConfig struct {
	Program string   `yaml:"program"`
	Args    []string `yaml:"args"`
}

// AdminConfig configures maintenance mode.
type AdminConfig struct {
	Listen    string `yaml:"listen"`
	Interface string `yaml:"interface"`
	MaxUpload int64  `yaml:"max_upload"`
	CORS      bool   `yaml:"cors"`
}

// ButtonConfig configures the maintenance exit button. An empty pin
// disables it.
type ButtonConfig struct {
	Pin      string        `yaml:"pin"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			Transport: TransportUART,
			Timeout:   250 * time.Millisecond,
			Retries:   2,
		},
		Monitor: MonitorConfig{
			PollInterval:     100 * time.Millisecond,
			RemovalThreshold: 2,
		},
		Credential: CredentialConfig{
			Sector: int(credential.DefaultRange.Sector),
			Block:  int(credential.DefaultRange.Block),
			Blocks: int(credential.DefaultRange.Blocks),
		},
		Mapping: MappingConfig{
			MediaRoot: "/media/tagbox",
			File:      "mapping.txt",
		},
		Playback: PlaybackConfig{
			Program: "mpg123",
			Args:    []string{"-q"},
		},
		Admin: AdminConfig{
			Listen:    ":80",
			MaxUpload: 512 << 20,
		},
		Button: ButtonConfig{
			Debounce: 50 * time.Millisecond,
		},
	}
}

// Path returns the configuration file to load: flag if set, else
// TAGBOX_CONFIG, else DefaultPath.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return getenvDefault("TAGBOX_CONFIG", DefaultPath)
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	c.Reader.Transport = getenvDefault("TAGBOX_READER_TRANSPORT", c.Reader.Transport)
	c.Reader.Device = getenvDefault("TAGBOX_READER_DEVICE", c.Reader.Device)
	c.Mapping.MediaRoot = getenvDefault("TAGBOX_MEDIA_ROOT", c.Mapping.MediaRoot)
	c.Mapping.File = getenvDefault("TAGBOX_MAPPING_FILE", c.Mapping.File)
	c.Playback.Program = getenvDefault("TAGBOX_PLAYER", c.Playback.Program)
	if args, ok := os.LookupEnv("TAGBOX_PLAYER_ARGS"); ok {
		c.Playback.Args = strings.Fields(args)
	}
	c.Admin.Listen = getenvDefault("TAGBOX_ADMIN_LISTEN", c.Admin.Listen)
	c.Admin.Interface = getenvDefault("TAGBOX_WIFI_INTERFACE", c.Admin.Interface)
	c.Button.Pin = getenvDefault("TAGBOX_BUTTON_PIN", c.Button.Pin)

	var errs []error
	var err error
	if c.Reader.Timeout, err = getenvDuration("TAGBOX_READER_TIMEOUT", c.Reader.Timeout); err != nil {
		errs = append(errs, err)
	}
	if c.Monitor.PollInterval, err = getenvDuration("TAGBOX_POLL_INTERVAL", c.Monitor.PollInterval); err != nil {
		errs = append(errs, err)
	}
	if c.Admin.CORS, err = getenvBool("TAGBOX_ADMIN_CORS", c.Admin.CORS); err != nil {
		errs = append(errs, err)
	}
	if c.Mapping.VerifyReferenced, err = getenvBool("TAGBOX_VERIFY_REFERENCED", c.Mapping.VerifyReferenced); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Reader.Transport == TransportUART || c.Reader.Transport == TransportI2C,
		"reader.transport: %q is not uart or i2c", c.Reader.Transport)
	check(c.Reader.Device != "" || c.Reader.Transport == TransportUART,
		"reader.device: required for %s", c.Reader.Transport)
	check(c.Reader.Timeout > 0, "reader.timeout: must be positive")
	check(c.Reader.Retries >= 0, "reader.retries: must not be negative")

	check(c.Monitor.PollInterval > 0, "monitor.poll_interval: must be positive")
	check(c.Monitor.RemovalThreshold >= 1, "monitor.removal_threshold: must be at least 1")

	check(c.Credential.Sector >= 0 && c.Credential.Sector <= 39,
		"credential.sector: %d out of range 0-39", c.Credential.Sector)
	check(c.Credential.Block >= 0 && c.Credential.Block <= 2,
		"credential.block: %d out of range 0-2", c.Credential.Block)
	check(c.Credential.Blocks >= 1 && c.Credential.Blocks <= 255,
		"credential.blocks: %d out of range 1-255", c.Credential.Blocks)

	check(c.Mapping.MediaRoot != "", "mapping.media_root: required")
	check(c.Mapping.File != "" && !filepath.IsAbs(c.Mapping.File) && !strings.HasPrefix(filepath.Clean(c.Mapping.File), ".."),
		"mapping.file: %q must be a path inside the media root", c.Mapping.File)

	check(c.Admin.Listen != "", "admin.listen: required")
	check(c.Admin.MaxUpload > 0, "admin.max_upload: must be positive")
	check(c.Button.Debounce >= 0, "button.debounce: must not be negative")

	return errors.Join(errs...)
}

// CredentialRange converts the credential section for the extractor.
func (c *Config) CredentialRange() credential.Range {
	return credential.Range{
		Sector: uint8(c.Credential.Sector),
		Block:  uint8(c.Credential.Block),
		Blocks: uint8(c.Credential.Blocks),
	}
}

// MappingPath is the database location on disk.
func (c *Config) MappingPath() string {
	return filepath.Join(c.Mapping.MediaRoot, filepath.FromSlash(c.Mapping.File))
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
