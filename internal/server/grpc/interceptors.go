package grpcserver

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/filekeeper/internal/errs"
)

// RequestIDHeader is the response header carrying the request id.
const RequestIDHeader = "x-request-id"

// LoggingUnary returns a unary server interceptor for structured logging.
// Each call gets a UUIDv4 request id, returned to the caller as a header.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := uuid.Must(uuid.NewV4()).String()
		// fails outside a real server transport; logging still proceeds
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		resp, err := next(ctx, req)
		code := status.Code(err)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		// metadata only, never payloads
		fields := []zap.Field{
			zap.String("requestID", reqID),
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		}
		if kind := ErrorKind(err); kind != "" {
			fields = append(fields, zap.String("kind", kind))
		}
		log.Info("grpc", fields...)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = toStatus(errs.Server("internal error"))
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary verifies the bearer token of file service calls and stores its
// subject in the context. Other services (health, reflection) pass through.
func AuthUnary(signKey []byte) grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return next(ctx, req)
		}
		sub, err := userIDFromToken(ctx, signKey)
		if err != nil {
			// no Unauthenticated kind exists; the caller is refused like a foreign owner
			return nil, kindStatus(codes.Unauthenticated, errs.KindForbidden, err.Error())
		}
		return next(WithUserID(ctx, sub), req)
	}
}
