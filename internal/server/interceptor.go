package server

import (
	"context"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpclogrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// serverInterceptors tags, logs, times and recovers every unary call.
func serverInterceptors() grpc.ServerOption {
	entry := logrus.NewEntry(logrus.StandardLogger())

	return grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
		grpcctxtags.UnaryServerInterceptor(),
		grpclogrus.UnaryServerInterceptor(entry),
		grpcrecovery.UnaryServerInterceptor(grpcrecovery.WithRecoveryHandler(func(p any) error {
			logrus.Errorf("grpc handler panic: %v", p)
			return status.Errorf(codes.Internal, "internal error")
		})),
		UnaryGrpcRequestTimeInterceptor(),
	))
}

func UnaryGrpcRequestTimeInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logrus.Debugf("request time: %v: %v", info.FullMethod, time.Since(start))
		return resp, err
	}
}

// UnaryRequestTimeInterceptor logs the duration of client calls.
func UnaryRequestTimeInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req any,
		reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logrus.Debugf("request time: %v: %v", method, time.Since(start))
		return err
	}
}
