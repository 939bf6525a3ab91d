// Package grpcapi serves the collection backend contract over gRPC as the service
// vexum.v1.Collections. Messages are well-known protobuf types (Empty, Struct), so no
// generated code is involved; the service descriptor is declared by hand below.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	grpcgo "google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Fully qualified names.
const (
	ServiceName          = "vexum.v1.Collections"
	MethodLoadAll        = "/" + ServiceName + "/LoadAll"
	MethodSaveCollection = "/" + ServiceName + "/SaveCollection"
	MethodWatch          = "/" + ServiceName + "/Watch"
)

// CollectionsServer is the server API for vexum.v1.Collections.
type CollectionsServer interface {
	// LoadAll returns the snapshot as a Struct keyed by collection kind.
	LoadAll(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// SaveCollection takes {"kind": "...", "items": [...]}.
	SaveCollection(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// Watch streams the current snapshot, then one snapshot per applied change.
	Watch(*emptypb.Empty, grpcgo.ServerStream) error
}

// ServiceDesc describes vexum.v1.Collections for grpc.Server.RegisterService.
var ServiceDesc = grpcgo.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionsServer)(nil),
	Methods: []grpcgo.MethodDesc{
		{MethodName: "LoadAll", Handler: loadAllHandler},
		{MethodName: "SaveCollection", Handler: saveCollectionHandler},
	},
	Streams: []grpcgo.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "vexum/v1/collections.proto",
}

// WatchStreamDesc is the client-side descriptor for Watch.
var WatchStreamDesc = &ServiceDesc.Streams[0]

// Register registers srv on s.
func Register(s grpcgo.ServiceRegistrar, srv CollectionsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func loadAllHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcgo.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).LoadAll(ctx, in)
	}
	info := &grpcgo.UnaryServerInfo{Server: srv, FullMethod: MethodLoadAll}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).LoadAll(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func saveCollectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcgo.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).SaveCollection(ctx, in)
	}
	info := &grpcgo.UnaryServerInfo{Server: srv, FullMethod: MethodSaveCollection}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).SaveCollection(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpcgo.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CollectionsServer).Watch(in, stream)
}

// SnapshotToStruct encodes snap as a Struct with one list per kind.
func SnapshotToStruct(snap models.Snapshot) (*structpb.Struct, error) {
	snap.Normalize()
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StructToSnapshot decodes a Struct produced by SnapshotToStruct.
func StructToSnapshot(s *structpb.Struct) (models.Snapshot, error) {
	b, err := protojson.Marshal(s)
	if err != nil {
		return models.Snapshot{}, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Normalize()
	return snap, nil
}

// SaveRequest builds the SaveCollection request message.
func SaveRequest(kind models.Kind, items json.RawMessage) (*structpb.Struct, error) {
	list := new(structpb.ListValue)
	if err := protojson.Unmarshal(items, list); err != nil {
		return nil, fmt.Errorf("%s items must be a JSON array: %w", kind, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":  structpb.NewStringValue(string(kind)),
		"items": structpb.NewListValue(list),
	}}, nil
}

// ParseSaveRequest is the inverse of SaveRequest. Items are returned as a JSON array.
func ParseSaveRequest(req *structpb.Struct) (models.Kind, json.RawMessage, error) {
	kind, ok := models.ParseKind(req.GetFields()["kind"].GetStringValue())
	if !ok {
		return "", nil, fmt.Errorf("unknown collection kind %q", req.GetFields()["kind"].GetStringValue())
	}
	items := req.GetFields()["items"].GetListValue()
	if items == nil {
		return "", nil, fmt.Errorf("%s items must be a list", kind)
	}
	b, err := protojson.Marshal(items)
	if err != nil {
		return "", nil, err
	}
	return kind, b, nil
}
