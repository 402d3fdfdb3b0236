package main

import (
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"rdaemon/internal/config"
	"rdaemon/internal/logging"
	"rdaemon/internal/registry"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "Serve a name registry on --port in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			port := ctx.port()
			if err := config.ValidatePort(port); err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg, filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("registry-%d.log", port)))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			addr := net.JoinHostPort(cfg.Registry.Host, strconv.Itoa(port))
			lockPath := filepath.Join(cfg.Paths.StateDir, fmt.Sprintf("registry-%d.lock", port))
			srv, err := registry.NewServer(signalCtx, addr, logger, registry.WithLockFile(lockPath))
			if err != nil {
				return err
			}
			defer srv.Close()
			srv.Serve()
			fmt.Fprintf(cmd.OutOrStdout(), "Registry listening on %s\n", srv.Addr())

			<-signalCtx.Done()
			logger.Info("registry shutting down",
				logging.String(logging.FieldEventType, "registry_shutdown"),
				logging.Int("bindings", len(srv.Bindings())))
			return nil
		},
	}
}
