package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rdaemon/internal/config"
	"rdaemon/internal/logging"
)

type globalFlags struct {
	config  string
	port    int
	path    string
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// port returns --port when given, otherwise the configured registry port.
func (c *commandContext) port() int {
	if c.flags.port != 0 {
		return c.flags.port
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Registry.Port
	}
	return config.DefaultRegistryPort
}

// lookupPath returns --path when given, otherwise the configured path.
func (c *commandContext) lookupPath() string {
	if path := strings.TrimSpace(c.flags.path); path != "" {
		return path
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Registry.Path
	}
	return config.DefaultLookupPath
}

// cliLogger logs to w at warn level, or debug with --verbose.
func (c *commandContext) cliLogger(w io.Writer) *slog.Logger {
	level := "warn"
	if c.flags.verbose {
		level = "debug"
	}
	format := "console"
	if cfg := c.configValue(); cfg != nil {
		format = cfg.Logging.Format
	}
	logger, err := logging.New(logging.Options{Level: level, Format: format, Writer: w})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
