package cli

import (
	"fmt"
	"slices"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the backend configuration",
	}
	cmd.AddCommand(newConfigShowCmd(ro))
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Resolve(home, ro.overrides())
			if err != nil {
				return err
			}
			redact(&cfg.APIKey)
			redact(&cfg.ServerAPIKey)
			if cfg.DSN != "" {
				cfg.DSN = "(set)"
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", config.Path(home), b)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var cfg config.Config
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update config.yaml; only the given flags change",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cur, err := config.LoadFile(home)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			set := func(name string, dst *string, v string) {
				if flags.Changed(name) {
					*dst = v
				}
			}
			set("set-backend", &cur.Backend, cfg.Backend)
			set("dsn", &cur.DSN, cfg.DSN)
			set("path", &cur.Path, cfg.Path)
			set("remote-url", &cur.URL, cfg.URL)
			set("api-key", &cur.APIKey, cfg.APIKey)
			set("grpc-addr", &cur.GRPCAddr, cfg.GRPCAddr)
			set("timezone", &cur.Timezone, cfg.Timezone)
			set("server-api-key", &cur.ServerAPIKey, cfg.ServerAPIKey)
			if cur.Backend != "" && !slices.Contains(config.Backends, cur.Backend) {
				return fmt.Errorf("unknown backend %q", cur.Backend)
			}
			if _, err := cur.Location(); err != nil {
				return err
			}
			if err := config.SaveFile(home, cur); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", config.Path(home))
			return nil
		},
	}
	// Named apart from the persistent --backend/--url overrides.
	cmd.Flags().StringVar(&cfg.Backend, "set-backend", "", "Backend: sqlite, postgres, remote, remote-live or grpc")
	cmd.Flags().StringVar(&cfg.DSN, "dsn", "", "Postgres connection string")
	cmd.Flags().StringVar(&cfg.Path, "path", "", "SQLite file")
	cmd.Flags().StringVar(&cfg.URL, "remote-url", "", "Remote vexum base URL")
	cmd.Flags().StringVar(&cfg.APIKey, "api-key", "", "API key sent to the remote instance")
	cmd.Flags().StringVar(&cfg.GRPCAddr, "grpc-addr", "", "Collections gRPC server address")
	cmd.Flags().StringVar(&cfg.Timezone, "timezone", "", "IANA time zone for due dates and report periods")
	cmd.Flags().StringVar(&cfg.ServerAPIKey, "server-api-key", "", "API key required by this instance's HTTP API")
	return cmd
}

func redact(s *string) {
	if *s != "" {
		*s = "(set)"
	}
}
