package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rdaemon/internal/daemonctl"
	"rdaemon/internal/registry"
)

func newBindingsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bindings",
		Short: "List the bindings published in the registry on --port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := daemonctl.ListBindings(cmd.Context(), ctx.configValue(), ctx.port())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if len(bindings) == 0 {
				fmt.Fprintf(stdout, "No bindings in registry on port %d\n", ctx.port())
				return nil
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"Path", "Endpoint", "Name", "PID", "Bound"},
				bindingRows(bindings, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			fmt.Fprintln(stdout)
			return nil
		},
	}
}

func bindingRows(bindings []registry.Binding, now time.Time) [][]string {
	rows := make([][]string, 0, len(bindings))
	for _, b := range bindings {
		pid := ""
		if b.PID > 0 {
			pid = strconv.Itoa(b.PID)
		}
		rows = append(rows, []string{b.Path, b.Endpoint, b.Name, pid, formatAge(now.Sub(b.BoundAt))})
	}
	return rows
}

func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0s ago"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
