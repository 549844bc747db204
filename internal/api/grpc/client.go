package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the intake service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// StartSession begins a session; an empty id lets the server pick one.
func (c *Client) StartSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodStartSession, map[string]any{"session_id": sessionID}, opts...)
}

// ProcessTurn sends one transcribed answer.
func (c *Client) ProcessTurn(ctx context.Context, sessionID, text string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodProcessTurn, map[string]any{"session_id": sessionID, "text": text}, opts...)
}

func (c *Client) ResetSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodResetSession, map[string]any{"session_id": sessionID}, opts...)
}

func (c *Client) call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
