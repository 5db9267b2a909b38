package rpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/metrics"
)

const surface = "grpc"

// Server implements FidelityServer on top of fidelity.ComputeFidelity.
type Server struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewServer creates a Server. logger and m may be nil.
func NewServer(logger *zap.Logger, m *metrics.Metrics) *Server {
	return &Server{logger: logging.OrNop(logger), metrics: m}
}

// Score validates the request, scores the pair and maps scoring errors to
// InvalidArgument or FailedPrecondition.
func (s *Server) Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	model, surrogate, err := ParseScoreRequest(in)
	if err == nil {
		var res fidelity.Result
		res, err = fidelity.ComputeFidelity(model, surrogate)
		if err == nil {
			s.metrics.Observe(surface, "ok", &res)
			return NewScoreResponse(res), nil
		}
	}

	s.metrics.Observe(surface, fidelity.Kind(err), nil)
	s.logger.Debug("score rejected", zap.Error(err))
	return nil, toStatus(err)
}

func toStatus(err error) error {
	var invalid *fidelity.InvalidInputError
	var degenerate *fidelity.DegenerateInputError
	switch {
	case errors.As(err, &invalid):
		return status.Error(codes.InvalidArgument, invalid.Reason)
	case errors.As(err, &degenerate):
		return status.Error(codes.FailedPrecondition, degenerate.Reason)
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// NewGRPCServer builds a grpc.Server carrying the fidelity and health services.
func NewGRPCServer(srv FidelityServer, logger *zap.Logger) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(unaryLogger(logging.OrNop(logger))))
	RegisterFidelityServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func unaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resp, err
	}
}
