package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRegistry() error {
	if err := ValidatePort(c.Registry.Port); err != nil {
		return fmt.Errorf("registry.port: %w", err)
	}
	if err := ValidateLookupPath(c.Registry.Path); err != nil {
		return fmt.Errorf("registry.path: %w", err)
	}
	if c.Registry.DialTimeoutSeconds <= 0 {
		return errors.New("registry.dial_timeout must be positive (seconds)")
	}
	if c.Registry.CallTimeoutSeconds <= 0 {
		return errors.New("registry.call_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.StopGraceSeconds <= 0 {
		return errors.New("daemon.stop_grace_seconds must be positive")
	}
	if c.Daemon.Command == "" && len(c.Daemon.Args) > 0 {
		return errors.New("daemon.args requires daemon.command")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// ValidatePort reports whether port is a usable TCP port.
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", port)
	}
	return nil
}

// ValidateLookupPath reports whether path can name a registry binding.
func ValidateLookupPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("lookup path must not be empty")
	}
	return nil
}
