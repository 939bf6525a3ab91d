// Package backend selects and opens the configured store.Adapter. It is the only place
// that knows every concrete adapter.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	storegrpc "github.com/kshoda-lgtm/vexum-management/internal/store/grpc"
	"github.com/kshoda-lgtm/vexum-management/internal/store/postgres"
	"github.com/kshoda-lgtm/vexum-management/internal/store/remote"
	"github.com/kshoda-lgtm/vexum-management/internal/store/sqlite"
)

// Open returns the adapter named by cfg.Backend. home is used for the default SQLite path.
func Open(ctx context.Context, home string, cfg config.Config) (store.Adapter, error) {
	var (
		a   store.Adapter
		err error
	)
	switch cfg.Backend {
	case config.BackendSQLite, "":
		path := cfg.Path
		if path == "" {
			path = sqlite.DefaultPath(home)
		}
		a, err = sqlite.Open(path)
	case config.BackendPostgres:
		a, err = postgres.Open(ctx, cfg.DSN)
	case config.BackendRemote:
		a, err = remote.New(cfg.URL, cfg.APIKey)
	case config.BackendRemoteLive:
		a, err = remote.NewLive(cfg.URL, cfg.APIKey)
	case config.BackendGRPC:
		a, err = storegrpc.Dial(cfg.GRPCAddr)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	_, live := a.(store.Subscriber)
	slog.Info("backend opened", "backend", cfg.Backend, "push", live)
	return a, nil
}
