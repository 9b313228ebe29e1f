// Package grpcserver exposes the dashboard session over gRPC.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"carddash/internal/dashboard"
	"carddash/internal/filter"
)

type Server struct {
	Session *dashboard.Session
	Health  *health.Server
	Logger  *zap.Logger
}

func NewServer(s *dashboard.Session, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{Session: s, Health: health.NewServer(), Logger: logger.Named("grpc")}
	srv.syncHealth()
	return srv
}

// NewGRPCServer builds a grpc.Server with the dashboard and health services
// registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(srv.logUnary))
	gs := grpc.NewServer(opts...)
	RegisterDashboardServer(gs, srv)
	healthpb.RegisterHealthServer(gs, srv.Health)
	return gs
}

// OnReload is a dashboard observer keeping the health status current.
func (s *Server) OnReload(dashboard.ReloadEvent) {
	s.syncHealth()
}

func (s *Server) syncHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if _, ok := s.Session.Loaded(); ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus(ServiceName, st)
	s.Health.SetServingStatus("", st)
}

func (s *Server) GetDashboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c := criteriaFrom(req)

	var v dashboard.View
	if c.IsEmpty() && len(req.GetFields()) == 0 {
		v = s.Session.Current()
	} else {
		v = s.Session.View(c)
	}

	out, err := toStruct(map[string]any{
		"criteria": v.Criteria,
		"summary":  v.Summary,
		"charts":   v.Charts(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode dashboard")
	}
	return out, nil
}

func (s *Server) GetOptions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.Session.Options())
	if err != nil {
		return nil, status.Error(codes.Internal, "encode options")
	}
	return out, nil
}

func (s *Server) Reload(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	v, err := s.Session.OnReload(ctx)
	switch {
	case errors.Is(err, dashboard.ErrStaleReload):
		return nil, status.Error(codes.Aborted, err.Error())
	case errors.Is(err, dashboard.ErrNoLoader):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case err != nil:
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	info, _ := s.Session.Loaded()
	out, err := toStruct(map[string]any{
		"snapshot": info,
		"summary":  v.Summary,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode summary")
	}
	return out, nil
}

func criteriaFrom(req *structpb.Struct) filter.Criteria {
	f := req.GetFields()
	return filter.Criteria{
		Search:  f["q"].GetStringValue(),
		Rarity:  f["rarity"].GetStringValue(),
		Feature: f["feature"].GetStringValue(),
		Section: f["section"].GetStringValue(),
	}
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("new struct: %w", err)
	}
	return out, nil
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.Logger.Info("rpc",
		zap.String("method", info.FullMethod),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, err
}
