package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Collections is the state the server exposes. *state.Store implements it.
type Collections interface {
	Snapshot() models.Snapshot
	ReplaceCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error
	Watch(fn func(models.Snapshot)) (cancel func())
}

// Server implements CollectionsServer over a Collections.
type Server struct {
	State Collections
}

var _ CollectionsServer = (*Server)(nil)

func (s *Server) LoadAll(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.State == nil {
		return nil, status.Error(codes.Internal, "state not set")
	}
	out, err := SnapshotToStruct(s.State.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) SaveCollection(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if s.State == nil {
		return nil, status.Error(codes.Internal, "state not set")
	}
	kind, items, err := ParseSaveRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.State.ReplaceCollection(ctx, kind, items); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Watch sends the current snapshot, then a fresh snapshot after each change. Changes that
// land while a send is in flight are coalesced into the next one.
func (s *Server) Watch(_ *emptypb.Empty, stream grpcgo.ServerStream) error {
	if s.State == nil {
		return status.Error(codes.Internal, "state not set")
	}
	ctx := stream.Context()
	changed := make(chan struct{}, 1)
	cancel := s.State.Watch(func(models.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		if err := sendSnapshot(stream, s.State.Snapshot()); err != nil {
			slog.Debug("grpc watch send failed", "err", err)
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

func sendSnapshot(stream grpcgo.ServerStream, snap models.Snapshot) error {
	msg, err := SnapshotToStruct(snap)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(msg)
}

// toStatus maps store errors onto gRPC codes. The client adapter maps them back.
func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, store.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case store.IsTransient(err):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
