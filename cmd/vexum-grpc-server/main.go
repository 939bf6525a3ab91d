// vexum-grpc-server serves the collections of a local store over gRPC.
// Example: go run ./cmd/vexum-grpc-server --addr=:50051
// Then point a client at it with: VEXUM_BACKEND=grpc VEXUM_GRPC_ADDR=localhost:50051 vexum start
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	grpcgo "google.golang.org/grpc"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/grpcapi"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store/backend"
)

func main() {
	addr := flag.String("addr", ":50051", "gRPC listen address")
	homeFlag := flag.String("home", "", "vexum home directory (default: $VEXUM_HOME or ~/.vexum)")
	envFile := flag.String("env-file", "", "load environment variables from this file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, *addr, *homeFlag, *envFile)
	stop()
	if err != nil {
		slog.Error("vexum-grpc-server exiting", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, homeFlag, envFile string) error {
	home, err := config.ResolveHome(homeFlag)
	if err != nil {
		return fmt.Errorf("home: %w", err)
	}
	if err := config.LoadEnv(home, envFile); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	cfg, err := config.Resolve(home, config.Overrides{})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Backend == config.BackendGRPC {
		return fmt.Errorf("backend %q would serve itself; configure sqlite, postgres or remote", cfg.Backend)
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	adapter, err := backend.Open(ctx, home, cfg)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	st := state.New(adapter, state.Options{Location: loc})
	defer func() { _ = st.Close() }()
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := grpcgo.NewServer()
	grpcapi.Register(srv, &grpcapi.Server{State: st})
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	slog.Info("collections gRPC server listening", "addr", addr, "backend", cfg.Backend)
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpcgo.ErrServerStopped) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
