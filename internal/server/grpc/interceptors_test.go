package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/filekeeper/internal/errs"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: CreateFileMethod}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestLoggingUnary_Fields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ic := LoggingUnary(zap.New(core))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: CreateFileMethod}

	h := func(ctx context.Context, req any) (any, error) {
		return nil, toStatus(errs.Conflict("file already exists"))
	}
	if _, err := ic(ctx, "req", info, h); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("want AlreadyExists, got %v", err)
	}

	entries := logs.FilterMessage("grpc").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(entries))
	}
	f := entries[0].ContextMap()
	if f["method"] != CreateFileMethod || f["code"] != "AlreadyExists" || f["peer"] != "127.0.0.1:12345" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if f["kind"] != errs.KindConflict {
		t.Fatalf("want kind %s, got %v", errs.KindConflict, f["kind"])
	}
	id, err := uuid.FromString(f["requestID"].(string))
	if err != nil || id.Version() != uuid.V4 {
		t.Fatalf("requestID must be a uuid v4: %v", f["requestID"])
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	info := &grpc.UnaryServerInfo{FullMethod: "/fk.Service/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(context.Background(), "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	info := &grpc.UnaryServerInfo{FullMethod: "/fk.Service/Panic"}
	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
	if kind := ErrorKind(err); kind != errs.KindServer {
		t.Fatalf("want kind %s, got %q", errs.KindServer, kind)
	}
	if st.Message() != "internal error" {
		t.Fatalf("panic reason leaked: %q", st.Message())
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/fk.Service/Ok"}
	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ic := AuthUnary(key)
	info := &grpc.UnaryServerInfo{FullMethod: CreateFileMethod}

	var seen string
	h := func(ctx context.Context, req any) (any, error) {
		seen, _ = UserIDFromCtx(ctx)
		return "ok", nil
	}

	tok := makeJWT(t, "alice", key, jwt.SigningMethodHS256, time.Now().UTC(), time.Hour)
	if _, err := ic(ctxWithAuth(tok), "req", info, h); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if seen != "alice" {
		t.Fatalf("subject not propagated: %q", seen)
	}

	_, err := ic(context.Background(), "req", info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", err)
	}
	if kind := ErrorKind(err); kind != errs.KindForbidden {
		t.Fatalf("want kind %s, got %q", errs.KindForbidden, kind)
	}

	health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	if _, err := ic(context.Background(), "req", health, h); err != nil {
		t.Fatalf("health must bypass auth: %v", err)
	}
}
