package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor 記錄每個 unary RPC 的方法、狀態碼與耗時
// Internal 以上的錯誤記為 Error，其餘為 Info
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			log.Error("grpc request", append(fields, zap.Error(err))...)
		default:
			log.Info("grpc request", fields...)
		}
		return resp, err
	}
}
