package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config is the root configuration of the sniper panel backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds the logrus and file rotation settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ScannerConfig names the scanner binary and the launcher plugin.
type ScannerConfig struct {
	Tool   string `mapstructure:"tool"`
	Plugin string `mapstructure:"plugin"`
}

// Validate rejects configurations the backend cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.Scanner.Tool) == "" {
		return fmt.Errorf("scanner.tool is required")
	}
	if strings.ContainsAny(c.Scanner.Tool, " \t") {
		return fmt.Errorf("scanner.tool must be a single token")
	}
	if strings.TrimSpace(c.Scanner.Plugin) == "" {
		return fmt.Errorf("scanner.plugin is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
