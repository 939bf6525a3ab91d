package cli

import (
	"fmt"
	"os"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/daemon"
	"github.com/spf13/cobra"
)

func newNukeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete the Vexum home directory: config, local SQLite data, backups bookkeeping and logs",
		Long: "Delete the Vexum home directory. Postgres databases and remote instances are not touched;\n" +
			"run `vexum export` first if the local data matters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			if info, _ := daemon.Status(cmd.Context(), home); info.Running {
				return fmt.Errorf("vexum is running (pid %d); run `vexum stop` first", info.PID)
			}
			entries, err := os.ReadDir(home)
			if os.IsNotExist(err) || (err == nil && len(entries) == 0) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Nothing to delete in %s\n", home)
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s will be removed:\n", home)
			for _, e := range entries {
				_, _ = fmt.Fprintf(out, "  %s\n", e.Name())
			}
			if !yes {
				ok, err := confirm(cmd, "This cannot be undone.", "delete everything")
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}
			if err := os.RemoveAll(home); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, "Deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip confirmation prompt")
	return cmd
}
