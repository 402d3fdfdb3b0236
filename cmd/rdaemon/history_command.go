package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rdaemon/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent stop attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if !cfg.Journal.Enabled {
				fmt.Fprintln(stdout, "Stop journal is disabled (journal.enabled = false)")
				return nil
			}
			j, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("open stop journal: %w", err)
			}
			defer j.Close()

			entries, err := j.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No stop attempts recorded")
				return nil
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"Started", "Path", "Port", "Outcome", "Failure", "Duration"},
				historyRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of attempts to show (0 for all)")
	return cmd
}

func historyRows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		failure := ""
		if e.FailureKind != "" {
			failure = kindLabel(e.FailureKind)
			if e.FailedOp != "" {
				failure += " (" + e.FailedOp + ")"
			}
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Path,
			strconv.Itoa(e.Port),
			string(e.Outcome),
			failure,
			e.Duration().Round(time.Millisecond).String(),
		})
	}
	return rows
}

// kindLabel turns "remote_invocation_failure" into "Remote Invocation Failure".
func kindLabel(kind string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(kind, "_", " "))
}
