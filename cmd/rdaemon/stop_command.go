package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rdaemon/internal/daemonctl"
	"rdaemon/internal/logging"
	"rdaemon/internal/stopper"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop and destroy the daemon bound at --path, then remove its binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()
			logger := ctx.cliLogger(stderr)

			j, err := daemonctl.OpenJournal(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "stop journal unavailable", "journal_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "this attempt will not appear in rdaemon history"),
					logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"))
			}
			if j != nil {
				defer j.Close()
			}

			port, path := ctx.port(), ctx.lookupPath()
			result, err := daemonctl.StopRemote(cmd.Context(), cfg, daemonctl.StopOptions{
				Port:    port,
				Path:    path,
				Journal: j,
				Logger:  logger,
			})
			colorize := shouldColorize(stdout)
			if err != nil {
				kind := stopper.KindOf(err)
				hint, _ := daemonctl.FailureGuidance(kind)
				fmt.Fprintln(stderr, renderStatusLine(failureHeadline(kind), statusError, path, shouldColorize(stderr)))
				if hint != "" {
					fmt.Fprintf(stderr, "%shint: %s\n", statusIndent, hint)
				}
				return reportedError{err: err}
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon stopped", statusOK,
				fmt.Sprintf("%s on registry port %d (%s)", result.Path, result.Port, result.Duration.Round(time.Millisecond)), colorize))
			return nil
		},
	}
}

func failureHeadline(kind stopper.Kind) string {
	switch kind {
	case stopper.KindLookup:
		return "Daemon not found"
	case stopper.KindRemoteInvocation:
		return "Daemon would not stop"
	case stopper.KindUnbind:
		return "Cleanup failed"
	default:
		return "Stop failed"
	}
}
