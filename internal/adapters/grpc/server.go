package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/cp25sy5-modjot/ledger-service/internal/ledger"
	"github.com/cp25sy5-modjot/ledger-service/internal/pkg/grpcserver"
)

// RegisterLedgerHealth registers reflection and marks the ledger service as
// serving. The reconciler flips it to NOT_SERVING when it halts.
func RegisterLedgerHealth(s *grpcserver.Server) {
	reflection.Register(s.Server)
	s.SetServing("", true)
	s.SetServing(ledger.HealthService, true)
}

// UnaryLogger logs every unary call with its latency.
func UnaryLogger() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug().Err(err).Str("method", info.FullMethod).Dur("latency", time.Since(start)).Msg("grpc call")
		return resp, err
	}
}
