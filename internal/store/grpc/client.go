// Package grpc implements store.Adapter as a client of the vexum.v1.Collections gRPC
// service. Watch is consumed as a push subscription.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kshoda-lgtm/vexum-management/internal/grpcapi"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

var (
	_ store.Adapter    = (*Store)(nil)
	_ store.Subscriber = (*Store)(nil)
)

// Store talks to a Collections server over one client connection.
type Store struct {
	// Addr is the server address (e.g. "localhost:50051").
	Addr string
	conn *grpcgo.ClientConn
}

// Dial connects to addr. With no options the connection is insecure (plaintext), which
// suits a loopback or private-network server.
func Dial(addr string, opts ...grpcgo.DialOption) (*Store, error) {
	if addr == "" {
		return nil, errors.New("grpc backend: address is required")
	}
	if len(opts) == 0 {
		opts = []grpcgo.DialOption{grpcgo.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpcgo.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{Addr: addr, conn: conn}, nil
}

func (s *Store) LoadAll(ctx context.Context) (models.Snapshot, error) {
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, grpcapi.MethodLoadAll, &emptypb.Empty{}, out); err != nil {
		return models.Snapshot{}, classify("load", "", err)
	}
	snap, err := grpcapi.StructToSnapshot(out)
	if err != nil {
		return models.Snapshot{}, &store.PersistenceError{Op: "load", Err: err}
	}
	return snap, nil
}

func (s *Store) SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	req, err := grpcapi.SaveRequest(kind, items)
	if err != nil {
		return &store.ValidationError{Field: string(kind), Reason: err.Error()}
	}
	if err := s.conn.Invoke(ctx, grpcapi.MethodSaveCollection, req, &emptypb.Empty{}); err != nil {
		return classify("save", kind, err)
	}
	return nil
}

// Subscribe opens a Watch stream. The server's first message is the current snapshot;
// it is received before Subscribe returns so a dead server fails the call. A dropped
// stream is reopened with backoff.
func (s *Store) Subscribe(ctx context.Context, onChange func(models.Snapshot)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	stream, initial, err := s.watch(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		onChange(initial)
		backoff := 250 * time.Millisecond
		for {
			for {
				snap, err := recvSnapshot(stream)
				if err != nil {
					if subCtx.Err() == nil {
						slog.Warn("grpc watch stream lost; reconnecting", "addr", s.Addr, "err", err)
					}
					break
				}
				onChange(snap)
			}
			for {
				select {
				case <-subCtx.Done():
					return
				case <-time.After(backoff):
				}
				if backoff < 10*time.Second {
					backoff *= 2
				}
				stream, initial, err = s.watch(subCtx)
				if err == nil {
					break
				}
			}
			backoff = 250 * time.Millisecond
			onChange(initial)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *Store) watch(ctx context.Context) (grpcgo.ClientStream, models.Snapshot, error) {
	stream, err := s.conn.NewStream(ctx, grpcapi.WatchStreamDesc, grpcapi.MethodWatch)
	if err != nil {
		return nil, models.Snapshot{}, classify("subscribe", "", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, models.Snapshot{}, classify("subscribe", "", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, models.Snapshot{}, classify("subscribe", "", err)
	}
	snap, err := recvSnapshot(stream)
	if err != nil {
		return nil, models.Snapshot{}, classify("subscribe", "", err)
	}
	return stream, snap, nil
}

func recvSnapshot(stream grpcgo.ClientStream) (models.Snapshot, error) {
	msg := new(structpb.Struct)
	if err := stream.RecvMsg(msg); err != nil {
		return models.Snapshot{}, err
	}
	return grpcapi.StructToSnapshot(msg)
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// classify maps gRPC status codes onto the store error types.
func classify(op string, kind models.Kind, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &store.PersistenceError{Op: op, Kind: kind, Transient: true, Err: err}
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return &store.QuotaExceededError{Kind: kind, Err: err}
	case codes.InvalidArgument:
		return &store.ValidationError{Field: string(kind), Reason: st.Message()}
	case codes.NotFound:
		return &store.NotFoundError{Kind: kind, ID: st.Message()}
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted:
		return &store.PersistenceError{Op: op, Kind: kind, Transient: true, Err: err}
	}
	return &store.PersistenceError{Op: op, Kind: kind, Err: err}
}
