package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/daemon"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store/backend"
	"github.com/kshoda-lgtm/vexum-management/pkg/client"
	"github.com/spf13/cobra"
)

// resolveConfig returns the effective backend configuration. While a daemon is running
// for this home, commands read through its HTTP API (the remote backend) and report
// viaDaemon so writes can use its entity routes; --direct opts out.
func resolveConfig(cmd *cobra.Command, ro *rootOptions) (cfg config.Config, viaDaemon bool, err error) {
	ctx := cmd.Context()
	home := config.MustHomeFrom(ctx)
	cfg, err = config.Resolve(home, ro.overrides())
	if err != nil {
		return config.Config{}, false, err
	}
	if ro.direct {
		return cfg, false, nil
	}
	info, err := daemon.Status(ctx, home)
	if err != nil || !info.Running {
		return cfg, false, nil
	}
	return config.Config{
		Backend:  config.BackendRemote,
		URL:      daemon.BaseURL(info.Addr),
		APIKey:   cfg.ServerAPIKey,
		Timezone: cfg.Timezone,
	}, true, nil
}

// openState opens the configured backend and loads the state store. Callers close it.
func openState(cmd *cobra.Command, ro *rootOptions) (*state.Store, error) {
	cfg, _, err := resolveConfig(cmd, ro)
	if err != nil {
		return nil, err
	}
	return loadState(cmd, cfg)
}

func loadState(cmd *cobra.Command, cfg config.Config) (*state.Store, error) {
	ctx := cmd.Context()
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	adapter, err := backend.Open(ctx, config.MustHomeFrom(ctx), cfg)
	if err != nil {
		return nil, err
	}
	st := state.New(adapter, state.Options{Location: loc})
	if err := st.Load(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// withState runs fn against a freshly loaded state store and closes it afterwards.
func withState(cmd *cobra.Command, ro *rootOptions, fn func(st *state.Store) error) error {
	st, err := openState(cmd, ro)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

// daemonClient returns an API client for the running daemon, or nil when none is running.
func daemonClient(cmd *cobra.Command) (*client.Client, error) {
	ctx := cmd.Context()
	home := config.MustHomeFrom(ctx)
	info, err := daemon.Status(ctx, home)
	if err != nil || !info.Running {
		return nil, err
	}
	cfg, err := config.Resolve(home, config.Overrides{})
	if err != nil {
		return nil, err
	}
	return client.New(daemon.BaseURL(info.Addr), cfg.ServerAPIKey), nil
}

// confirm prints prompt and reports whether the next input line is exactly word.
func confirm(cmd *cobra.Command, prompt, word string) (bool, error) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Type %q to confirm:\n", prompt, word)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimSpace(line) == word, nil
}
