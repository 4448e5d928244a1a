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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/tagbox/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, credential.DefaultRange, cfg.CredentialRange())
	assert.Equal(t, filepath.Join("/media/tagbox", "mapping.txt"), cfg.MappingPath())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reader:
  transport: i2c
  device: "1"
  timeout: 500ms
monitor:
  removal_threshold: 3
credential:
  sector: 4
  blocks: 3
mapping:
  media_root: /srv/media
  verify_referenced: true
playback:
  program: mpv
  args: ["--no-video"]
admin:
  cors: true
button:
  pin: GPIO17
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ReaderConfig{Transport: TransportI2C, Device: "1", Timeout: 500 * time.Millisecond, Retries: 2}, cfg.Reader)
	assert.Equal(t, 3, cfg.Monitor.RemovalThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.PollInterval, "unset keys keep defaults")
	assert.Equal(t, credential.Range{Sector: 4, Block: 0, Blocks: 3}, cfg.CredentialRange())
	assert.Equal(t, filepath.Join("/srv/media", "mapping.txt"), cfg.MappingPath())
	assert.True(t, cfg.Mapping.VerifyReferenced)
	assert.Equal(t, PlaybackConfig{Program: "mpv", Args: []string{"--no-video"}}, cfg.Playback)
	assert.True(t, cfg.Admin.CORS)
	assert.Equal(t, "GPIO17", cfg.Button.Pin)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reader: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TAGBOX_READER_TRANSPORT", "i2c")
	t.Setenv("TAGBOX_READER_DEVICE", "/dev/i2c-1")
	t.Setenv("TAGBOX_MEDIA_ROOT", "/mnt/sd")
	t.Setenv("TAGBOX_PLAYER", "aplay")
	t.Setenv("TAGBOX_PLAYER_ARGS", "-q  -D hw:0")
	t.Setenv("TAGBOX_POLL_INTERVAL", "40ms")
	t.Setenv("TAGBOX_ADMIN_CORS", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, TransportI2C, cfg.Reader.Transport)
	assert.Equal(t, "/dev/i2c-1", cfg.Reader.Device)
	assert.Equal(t, "/mnt/sd", cfg.Mapping.MediaRoot)
	assert.Equal(t, "aplay", cfg.Playback.Program)
	assert.Equal(t, []string{"-q", "-D", "hw:0"}, cfg.Playback.Args)
	assert.Equal(t, 40*time.Millisecond, cfg.Monitor.PollInterval)
	assert.True(t, cfg.Admin.CORS)
}

func TestEnvOverridesInvalid(t *testing.T) {
	t.Setenv("TAGBOX_POLL_INTERVAL", "soon")
	t.Setenv("TAGBOX_ADMIN_CORS", "perhaps")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TAGBOX_POLL_INTERVAL")
	assert.Contains(t, err.Error(), "TAGBOX_ADMIN_CORS")
}

func TestPath(t *testing.T) {
	t.Setenv("TAGBOX_CONFIG", "")
	assert.Equal(t, DefaultPath, Path(""))

	t.Setenv("TAGBOX_CONFIG", "/etc/tagbox.yaml")
	assert.Equal(t, "/etc/tagbox.yaml", Path(""))
	assert.Equal(t, "local.yaml", Path("local.yaml"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		modify  func(*Config)
		name    string
		wantErr []string
	}{
		{
			name:    "unknown transport",
			modify:  func(c *Config) { c.Reader.Transport = "spi" },
			wantErr: []string{"reader.transport"},
		},
		{
			name:    "i2c needs a bus",
			modify:  func(c *Config) { c.Reader.Transport, c.Reader.Device = TransportI2C, "" },
			wantErr: []string{"reader.device"},
		},
		{
			name: "several problems reported together",
			modify: func(c *Config) {
				c.Monitor.RemovalThreshold = 0
				c.Credential.Block = 3
				c.Credential.Blocks = 0
			},
			wantErr: []string{"monitor.removal_threshold", "credential.block:", "credential.blocks"},
		},
		{
			name:    "mapping file escapes media root",
			modify:  func(c *Config) { c.Mapping.File = "../mapping.txt" },
			wantErr: []string{"mapping.file"},
		},
		{
			name:    "absolute mapping file",
			modify:  func(c *Config) { c.Mapping.File = "/etc/mapping.txt" },
			wantErr: []string{"mapping.file"},
		},
		{
			name: "durations",
			modify: func(c *Config) {
				c.Reader.Timeout = 0
				c.Monitor.PollInterval = -time.Second
			},
			wantErr: []string{"reader.timeout", "monitor.poll_interval"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "tagbox.yaml")
	cfg := Default()
	cfg.Button.Pin = "GPIO27"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
