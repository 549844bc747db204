// Package grpcapi exposes the intake dialogue over gRPC. Messages are
// google.protobuf.Struct so no generated code is needed.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"voice-intake-service/internal/service/dialog"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "voice.intake.v1.IntakeService"

const (
	methodStartSession = "/" + ServiceName + "/StartSession"
	methodProcessTurn  = "/" + ServiceName + "/ProcessTurn"
	methodResetSession = "/" + ServiceName + "/ResetSession"
)

// IntakeServer is the server API for the intake service.
type IntakeServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessTurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Dialog is the part of dialog.Serial the server drives.
type Dialog interface {
	Start(ctx context.Context, id string) (*dialog.TurnResult, error)
	ProcessTurn(ctx context.Context, id, text string) (*dialog.TurnResult, error)
	Reset(ctx context.Context, id string)
}

type Server struct {
	dialog Dialog
}

// Register adds the intake service to g.
func Register(g *grpc.Server, d Dialog) {
	g.RegisterService(&serviceDesc, &Server{dialog: d})
}

func (s *Server) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.dialog.Start(ctx, stringField(req, "session_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) ProcessTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "session_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	res, err := s.dialog.ProcessTurn(ctx, id, stringField(req, "text"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) ResetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "session_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	s.dialog.Reset(ctx, id)
	return structpb.NewStruct(map[string]any{"session_id": id, "status": "reset"})
}

func stringField(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

// toStruct converts a turn result through its JSON form so field names match
// the HTTP API.
func toStruct(res *dialog.TurnResult) (*structpb.Struct, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	log.Error().Err(err).Msg("gRPC turn failed")
	switch {
	case errors.Is(err, dialog.ErrPersistence):
		return status.Error(codes.Unavailable, "failed to save record, please confirm again")
	case errors.Is(err, dialog.ErrSynthesis):
		return status.Error(codes.Unavailable, "failed to synthesize prompt")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "turn failed")
	}
}

func unaryHandler(method string, call func(IntakeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IntakeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(IntakeServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler(methodStartSession, IntakeServer.StartSession)},
		{MethodName: "ProcessTurn", Handler: unaryHandler(methodProcessTurn, IntakeServer.ProcessTurn)},
		{MethodName: "ResetSession", Handler: unaryHandler(methodResetSession, IntakeServer.ResetSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "voice/intake/v1/intake.proto",
}
