package grpcstore

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/custodia-sh/custodia/model"
	"github.com/custodia-sh/custodia/store"
)

// Server exposes a store.Store over the AccountStore gRPC service. Apply is
// delegated to the wrapped store in one call, so its atomicity guarantee
// carries through unchanged.
type Server struct {
	UnimplementedAccountStoreServer
	Store store.Store
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	a, err := s.Store.Get(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode account failed")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Exists(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	ok, err := s.Store.Exists(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	var a model.Account
	if err := json.Unmarshal(in.GetValue(), &a); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed account record")
	}
	if err := s.Store.Put(ctx, &a); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(a.ID), nil
}

func (s *Server) Scan(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	all, err := s.Store.Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(all)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode accounts failed")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Apply(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	var batch []*model.Account
	if err := json.Unmarshal(in.GetValue(), &batch); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed account batch")
	}
	if err := s.Store.Apply(ctx, batch); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case store.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case err == store.ErrInvalidID:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
