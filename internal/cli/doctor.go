package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newDoctorCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configured backend and report collection sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			home := config.MustHomeFrom(cmd.Context())
			cfg, viaDaemon, err := resolveConfig(cmd, ro)
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "config: %v\n", err)
				return errors.New("doctor checks failed")
			}
			_, _ = fmt.Fprintf(out, "Home:    %s\n", home)
			_, _ = fmt.Fprintf(out, "Backend: %s\n", describeBackend(cfg, viaDaemon))

			start := time.Now()
			st, err := openState(cmd, ro)
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "load: %v\n", err)
				return errors.New("doctor checks failed")
			}
			defer func() { _ = st.Close() }()
			_, _ = fmt.Fprintf(out, "Loaded in %s\n", time.Since(start).Round(time.Millisecond))

			printSyncStatus(out, st.Status())
			_, _ = fmt.Fprintf(out, "Active staff: %d\n", len(st.ActiveStaff()))

			last, err := config.ReadLastBackup(home)
			if err != nil {
				return err
			}
			doc, err := st.Export()
			if err != nil {
				return err
			}
			printBackupStatus(out, state.AdviseBackup(last, time.Now(), len(doc)))
			if len(doc) > models.BackupBudgetBytes {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: data exceeds the backup size budget")
			}

			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}
	return cmd
}

func describeBackend(cfg config.Config, viaDaemon bool) string {
	switch {
	case viaDaemon:
		return "running daemon at " + cfg.URL
	case cfg.Backend == config.BackendSQLite:
		return "sqlite " + cfg.Path
	case cfg.Backend == config.BackendPostgres:
		return "postgres"
	case cfg.Backend == config.BackendGRPC:
		return "grpc " + cfg.GRPCAddr
	}
	return cfg.Backend + " " + cfg.URL
}
