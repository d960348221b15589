package api

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/trendpulse/trendpulse/internal/config"
	"github.com/trendpulse/trendpulse/internal/models"
	"github.com/trendpulse/trendpulse/internal/services"
	"github.com/trendpulse/trendpulse/internal/utils"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	logger := utils.NewLoggerTo(io.Discard, "error", false)
	service := services.NewTrendService(logger, nil, nil, services.CacheOptions{})

	lis := bufconn.Listen(1 << 20)
	srv, _ := newGRPCServer(NewGRPCHandler(service))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCAnalyze(t *testing.T) {
	conn := newTestConn(t)

	in, err := structpb.NewStruct(map[string]any{
		"keyword":  "oat milk",
		"values":   []any{1, 2, 3, 4, 5},
		"category": "drinks",
	})
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), AnalyzeMethod, in, out))

	var res models.AnalysisResult
	require.NoError(t, FromStruct(out, &res))
	assert.Equal(t, "oat milk", res.Keyword)
	assert.Equal(t, models.PhaseEmerging, res.Phase)
	assert.Equal(t, "drinks", res.Category)
	assert.Equal(t, models.NoPeakDays, res.PeakDays)
}

func TestGRPCAnalyzeInvalid(t *testing.T) {
	conn := newTestConn(t)

	in, err := structpb.NewStruct(map[string]any{"keyword": "k", "values": []any{1, 2}})
	require.NoError(t, err)

	err = conn.Invoke(context.Background(), AnalyzeMethod, in, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "at least 5 data points required, got 2", status.Convert(err).Message())

	in, err = structpb.NewStruct(map[string]any{"keyword": "k", "values": "nope"})
	require.NoError(t, err)
	err = conn.Invoke(context.Background(), AnalyzeMethod, in, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCAnalyzeBatch(t *testing.T) {
	conn := newTestConn(t)

	in, err := structpb.NewStruct(map[string]any{
		"trends": []any{
			map[string]any{"keyword": "flat", "values": []any{10, 10, 10, 10, 10, 10}},
			map[string]any{"keyword": "short", "values": []any{1}},
			map[string]any{"keyword": "rising", "values": []any{1, 2, 3, 4, 5}},
		},
	})
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), AnalyzeBatchMethod, in, out))

	var res models.BatchResult
	require.NoError(t, FromStruct(out, &res))
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "flat", res.Results[0].Keyword)
	assert.Equal(t, "rising", res.Results[1].Keyword)
}

func TestGRPCHealth(t *testing.T) {
	conn := newTestConn(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: TrendAnalyzerServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServerRunStopsOnCancel(t *testing.T) {
	logger := utils.NewLoggerTo(io.Discard, "error", false)
	service := services.NewTrendService(logger, nil, nil, services.CacheOptions{})

	srv, err := NewServer(config.ServerConfig{GRPCAddress: "127.0.0.1:0", GracefulTimeout: time.Second}, NewGRPCHandler(service))
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Address())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
