package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeRegistry(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDaemon()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeRegistry() error {
	if value, ok := os.LookupEnv("RDAEMON_REGISTRY_PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("RDAEMON_REGISTRY_PORT: invalid port %q", value)
		}
		c.Registry.Port = port
	}
	if value, ok := os.LookupEnv("RDAEMON_LOOKUP_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Registry.Path = value
	}
	c.Registry.Host = strings.TrimSpace(c.Registry.Host)
	if c.Registry.Host == "" {
		c.Registry.Host = defaultRegistryHost
	}
	c.Registry.Path = strings.TrimSpace(c.Registry.Path)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDaemon() {
	c.Daemon.Name = strings.TrimSpace(c.Daemon.Name)
	if c.Daemon.Name == "" {
		c.Daemon.Name = defaultDaemonName
	}
	c.Daemon.Bind = strings.TrimSpace(c.Daemon.Bind)
	if c.Daemon.Bind == "" {
		c.Daemon.Bind = defaultDaemonBind
	}
	c.Daemon.Command = strings.TrimSpace(c.Daemon.Command)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
