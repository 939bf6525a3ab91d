package cli

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/spf13/cobra"
)

const serverAPIKeyEnv = "VEXUM_SERVER_API_KEY"

func newApikeyCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the API key protecting the HTTP API when exposed over a network",
	}
	cmd.AddCommand(newApikeyGenerateCmd())
	cmd.AddCommand(newApikeyShowCmd(ro))
	return cmd
}

func newAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// fingerprint identifies a key without revealing it.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

// upsertEnv sets key=value in a dotenv file, keeping its other variables.
func upsertEnv(path, key, value string) error {
	vars, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if vars == nil {
		vars = make(map[string]string)
	}
	vars[key] = value
	if err := godotenv.Write(vars, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

func newApikeyGenerateCmd() *cobra.Command {
	var (
		envFile string
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random API key and store it or print usage instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := newAPIKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "New API key (fingerprint %s):\n\n  %s\n\n", fingerprint(key), key)

			if save {
				home := config.MustHomeFrom(cmd.Context())
				cfg, err := config.LoadFile(home)
				if err != nil {
					return err
				}
				cfg.ServerAPIKey = key
				if err := config.SaveFile(home, cfg); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Saved as server_api_key in %s.\n", config.Path(home))
			}
			if envFile != "" {
				if err := upsertEnv(envFile, serverAPIKeyEnv, key); err != nil {
					return fmt.Errorf("update %s: %w", envFile, err)
				}
				_, _ = fmt.Fprintf(out, "Set %s in %s; start with: vexum start --env-file %s\n", serverAPIKeyEnv, envFile, envFile)
			}
			if !save && envFile == "" {
				printKeyUsage(out, key)
				return nil
			}
			_, _ = fmt.Fprintln(out, "Restart a running server to apply it. Remote clients send it as header X-API-Key.")
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Set "+serverAPIKeyEnv+" in this dotenv file (created if missing)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the key in config.yaml as server_api_key")
	return cmd
}

func printKeyUsage(w io.Writer, key string) {
	_, _ = fmt.Fprintln(w, "Use it:")
	_, _ = fmt.Fprintf(w, "  server:  export %s=%s\n", serverAPIKeyEnv, key)
	_, _ = fmt.Fprintln(w, "  clients: VEXUM_API_KEY=<key> (sent as header X-API-Key)")
}

func newApikeyShowCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether this instance requires an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(config.MustHomeFrom(cmd.Context()), ro.overrides())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.ServerAPIKey == "" {
				_, _ = fmt.Fprintln(out, "No server API key; the HTTP API accepts unauthenticated requests.")
				return nil
			}
			_, _ = fmt.Fprintf(out, "Server API key set (fingerprint %s).\n", fingerprint(cfg.ServerAPIKey))
			return nil
		},
	}
}
