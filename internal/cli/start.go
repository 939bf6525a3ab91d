package cli

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/daemon"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

// serveFlags are the daemon options shared by start and the hidden daemon command.
type serveFlags struct {
	port        int
	dev         bool
	devOrigin   string
	pprofAddr   string
	enableOtel  bool
	reminderSec float64
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.port, "port", models.DefaultPort, "Port for the HTTP API")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "Enable dev mode (CORS for a dashboard on another origin)")
	cmd.Flags().StringVar(&f.devOrigin, "dev-origin", "", "Origin allowed in dev mode (default any)")
	cmd.Flags().StringVar(&f.pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&f.enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter on /metrics)")
	cmd.Flags().Float64Var(&f.reminderSec, "reminder-interval", models.DefaultReminderIntervalSec, "Due-soon/overdue reminder interval (seconds)")
}

func (f *serveFlags) options(cmd *cobra.Command, ro *rootOptions) daemon.StartOptions {
	return daemon.StartOptions{
		Home:        config.MustHomeFrom(cmd.Context()),
		Version:     cmd.Root().Version,
		Port:        f.port,
		Dev:         f.dev,
		DevOrigin:   f.devOrigin,
		PprofAddr:   f.pprofAddr,
		EnvFile:     ro.envFile,
		Overrides:   ro.overrides(),
		EnableOtel:  f.enableOtel,
		ReminderSec: f.reminderSec,
	}
}

func newStartCmd(ro *rootOptions) *cobra.Command {
	var (
		sf         serveFlags
		foreground bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Vexum server (HTTP API + live stream)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := sf.options(cmd, ro)
			api := (&url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", sf.port)}).String()

			if foreground {
				setupLogging(cmd.ErrOrStderr(), slog.LevelInfo)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting Vexum in foreground on %s\n", api)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Vexum started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(out, "API:    %s\n", api)
			_, _ = fmt.Fprintf(out, "Stream: %s/stream\n", api)
			_, _ = fmt.Fprintf(out, "Log:    %s\n", daemon.LogPath(opts.Home))
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	return cmd
}

func newDaemonCmd(ro *rootOptions) *cobra.Command {
	var sf serveFlags
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr(), slog.LevelInfo)
			return daemon.StartForeground(cmd.Context(), sf.options(cmd, ro))
		},
	}
	sf.register(cmd)
	return cmd
}
