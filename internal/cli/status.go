package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/daemon"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Vexum daemon and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			info, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !info.Running {
				_, _ = fmt.Fprintln(out, "Vexum not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "Vexum %s (pid %d, addr %s, backend %s, up %s)\n", color.New(color.FgGreen).Sprint("running"),
				info.PID, info.Addr, info.Backend, time.Since(info.StartedAt).Round(time.Second))
			c, err := daemonClient(cmd)
			if err != nil || c == nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				_, _ = fmt.Fprintf(out, "Sync status unavailable: %v\n", err)
				return nil
			}
			printSyncStatus(out, st)
			return nil
		},
	}
	return cmd
}
