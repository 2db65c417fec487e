package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ditrix/ditrix-server/internal/health"
)

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, gs *grpc.Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return cc
}

func TestHealth_E2E(t *testing.T) {
	t.Parallel()

	var redisErr error
	checker := health.New(time.Second, 0)
	checker.Register("db", health.PingFunc(func(context.Context) error { return nil }))
	checker.Register("redis", health.PingFunc(func(context.Context) error { return redisErr }))

	gs := New(checker, zaptest.NewLogger(t), Options{Reflection: true})
	cl := healthpb.NewHealthClient(startBufGRPC(t, gs))
	ctx := context.Background()

	res, err := cl.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	redisErr = errors.New("down")
	res, err = cl.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())

	res, err = cl.Check(ctx, &healthpb.HealthCheckRequest{Service: "db"})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	_, err = cl.Check(ctx, &healthpb.HealthCheckRequest{Service: "queue"})
	require.Equal(t, codes.NotFound, status.Code(err))

	list, err := cl.List(ctx, &healthpb.HealthListRequest{})
	require.NoError(t, err)
	require.Len(t, list.GetStatuses(), 3)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, list.GetStatuses()["redis"].GetStatus())
}
