package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rdaemon/internal/daemonctl"
	"rdaemon/internal/daemonrun"
	"rdaemon/internal/registry"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var waitTimeout time.Duration
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Launch a daemon host and publish it at --path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.configValue(), exe, daemonctl.LaunchOptions{
				ConfigPath: strings.TrimSpace(ctx.flags.config),
				Port:       ctx.port(),
				Path:       ctx.lookupPath(),
			}, waitTimeout)
			if err != nil {
				return err
			}

			colorize := shouldColorize(stdout)
			if result.ClearedStale {
				fmt.Fprintln(stdout, renderStatusLine("Cleared stale binding", statusWarn, ctx.lookupPath(), colorize))
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, renderStatusLine("Daemon started", statusOK, bindingDetail(result.Binding), colorize))
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, renderStatusLine("Daemon already running", statusInfo, bindingDetail(result.Binding), colorize))
			}
			return nil
		},
	}
	startCmd.Flags().DurationVar(&waitTimeout, "wait", 10*time.Second, "How long to wait for the daemon to publish its binding")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon bound at --path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			path := ctx.lookupPath()

			for _, line := range renderSectionHeader("Daemon Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			b, status, err := daemonctl.Probe(cmd.Context(), ctx.configValue(), ctx.port(), path)
			switch {
			case errors.Is(err, daemonctl.ErrRegistryUnavailable):
				fmt.Fprintln(stdout, renderStatusLine("Registry", statusError, fmt.Sprintf("not reachable on port %d", ctx.port()), colorize))
				return nil
			case errors.Is(err, registry.ErrNotBound):
				fmt.Fprintln(stdout, renderStatusLine("Registry", statusOK, fmt.Sprintf("port %d", ctx.port()), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Binding", statusWarn, path+" not bound", colorize))
				return nil
			}
			fmt.Fprintln(stdout, renderStatusLine("Registry", statusOK, fmt.Sprintf("port %d", ctx.port()), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Binding", statusOK, bindingDetail(b), colorize))
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, err.Error(), colorize))
				return nil
			}
			kind := statusOK
			if status.State != "running" {
				kind = statusWarn
			}
			detail := fmt.Sprintf("%s (pid %d)", status.State, status.PID)
			if status.ChildPID > 0 {
				detail += fmt.Sprintf(", workload pid %d", status.ChildPID)
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon", kind, detail, colorize))
			return nil
		},
	}

	var development bool
	var logLevel string
	daemonCmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the daemon host in the foreground",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Port:        ctx.port(),
				Path:        ctx.lookupPath(),
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	daemonCmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	return []*cobra.Command{startCmd, statusCmd, daemonCmd}
}

func bindingDetail(b registry.Binding) string {
	if b.Path == "" {
		return ""
	}
	return fmt.Sprintf("%s -> %s", b.Path, b.Endpoint)
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
