// Package config handles fbshell configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (FBSHELL_*)
//  2. Config file (~/.config/fbshell/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultDevice is the virtual console device taken over by a session.
	DefaultDevice = "/dev/tty0"
	// DefaultGlyphWidth is the glyph cell width in pixels.
	DefaultGlyphWidth = 8
	// DefaultGlyphHeight is the glyph cell height in pixels.
	DefaultGlyphHeight = 16
	// DefaultPollIntervalMS is the pump poll interval in milliseconds.
	DefaultPollIntervalMS = 10
	// DefaultOutputBuffer is the output buffer capacity in bytes.
	DefaultOutputBuffer = 4096
	// DefaultCommandBuffer is the command buffer capacity in bytes.
	DefaultCommandBuffer = 1024
	// DefaultTerm is the TERM value exported to the shell.
	DefaultTerm = "xterm"
)

// Config holds the fbshell configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	// Set defaults
	v.SetDefault("console.device", DefaultDevice)
	v.SetDefault("console.glyph_width", DefaultGlyphWidth)
	v.SetDefault("console.glyph_height", DefaultGlyphHeight)
	v.SetDefault("pump.poll_interval_ms", DefaultPollIntervalMS)
	v.SetDefault("pump.output_buffer", DefaultOutputBuffer)
	v.SetDefault("pump.command_buffer", DefaultCommandBuffer)
	v.SetDefault("shell.path", "")
	v.SetDefault("shell.term", DefaultTerm)

	// Config file location
	home, err := os.UserHomeDir()
	if err == nil {
		configDir := filepath.Join(home, ".config", "fbshell")
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("FBSHELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	// Ensure config directory exists
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".config", "fbshell")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// Device returns the console device path.
func (c *Config) Device() string {
	return c.GetString("console.device")
}

// GlyphWidth returns the glyph cell width in pixels.
func (c *Config) GlyphWidth() int {
	return c.GetInt("console.glyph_width")
}

// GlyphHeight returns the glyph cell height in pixels.
func (c *Config) GlyphHeight() int {
	return c.GetInt("console.glyph_height")
}

// PollIntervalMS returns the pump poll interval in milliseconds.
func (c *Config) PollIntervalMS() int {
	return c.GetInt("pump.poll_interval_ms")
}

// OutputBuffer returns the output buffer capacity in bytes.
func (c *Config) OutputBuffer() int {
	return c.GetInt("pump.output_buffer")
}

// CommandBuffer returns the command buffer capacity in bytes.
func (c *Config) CommandBuffer() int {
	return c.GetInt("pump.command_buffer")
}

// ShellPath returns the configured shell override, empty for $SHELL.
func (c *Config) ShellPath() string {
	return c.GetString("shell.path")
}

// Term returns the TERM value exported to the shell.
func (c *Config) Term() string {
	return c.GetString("shell.term")
}
