package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	home      string
	envFile   string
	backend   string
	dbURL     string
	remoteURL string
	direct    bool
	verbose   bool
}

func (o *rootOptions) overrides() config.Overrides {
	return config.Overrides{Backend: o.backend, DSN: o.dbURL, URL: o.remoteURL}
}

func NewRootCmd(version string) *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "vexum",
		Short:        "Vexum: staff, task, meeting and report tracking with pluggable storage",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(ro.home)
			if err != nil {
				return err
			}
			if err := config.LoadEnv(home, ro.envFile); err != nil {
				return err
			}
			level := slog.LevelWarn
			if ro.verbose {
				level = slog.LevelInfo
			}
			setupLogging(cmd.ErrOrStderr(), level)
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&ro.home, "home", "", "Override Vexum home directory (default: ~/.vexum, env: VEXUM_HOME)")
	pf.StringVar(&ro.envFile, "env-file", "", "Load env vars from file before resolving configuration")
	pf.StringVar(&ro.backend, "backend", "", "Storage backend: sqlite, postgres, remote, remote-live or grpc (env: VEXUM_BACKEND)")
	pf.StringVar(&ro.dbURL, "db-url", "", "Postgres connection string (env: DATABASE_URL)")
	pf.StringVar(&ro.remoteURL, "url", "", "Remote backend base URL (env: VEXUM_REMOTE_URL)")
	pf.BoolVar(&ro.direct, "direct", false, "Open the backend directly even when a daemon is running")
	pf.BoolVarP(&ro.verbose, "verbose", "v", false, "Log at info level")

	cmd.AddCommand(newDoctorCmd(ro))
	cmd.AddCommand(newStartCmd(ro))
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd(ro))

	cmd.AddCommand(newStaffCmd(ro))
	cmd.AddCommand(newTaskCmd(ro))
	cmd.AddCommand(newMeetingCmd(ro))
	cmd.AddCommand(newReportCmd(ro))
	cmd.AddCommand(newShiftCmd(ro))
	cmd.AddCommand(newMemoCmd(ro))

	cmd.AddCommand(newExportCmd(ro))
	cmd.AddCommand(newImportCmd(ro))
	cmd.AddCommand(newBackupCmd(ro))
	cmd.AddCommand(newQuotaCmd(ro))
	cmd.AddCommand(newApikeyCmd(ro))
	cmd.AddCommand(newNukeCmd())

	// Hidden internal subcommand used by `vexum start` for background mode.
	cmd.AddCommand(newDaemonCmd(ro))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}

func setupLogging(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
