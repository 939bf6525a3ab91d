package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/daemon"
	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running Vexum daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := daemon.Stop(cmd.Context(), config.MustHomeFrom(cmd.Context()), timeout)
			switch {
			case errors.Is(err, daemon.ErrNotRunning):
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Vexum is not running")
				return nil
			case err != nil:
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stopped Vexum (pid %d, up %s)\n", info.PID, time.Since(info.StartedAt).Round(time.Second))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "How long to wait for a clean shutdown before killing")
	return cmd
}
