package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/trendpulse/trendpulse/internal/models"
	"github.com/trendpulse/trendpulse/internal/services"
	"github.com/trendpulse/trendpulse/internal/utils"
)

// Fully qualified gRPC names of the analyzer service.
const (
	TrendAnalyzerServiceName = "trendpulse.v1.TrendAnalyzer"
	AnalyzeMethod            = "/" + TrendAnalyzerServiceName + "/Analyze"
	AnalyzeBatchMethod       = "/" + TrendAnalyzerServiceName + "/AnalyzeBatch"
)

// TrendAnalyzerServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct values shaped like the REST JSON bodies.
type TrendAnalyzerServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnalyzeBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTrendAnalyzerServer attaches srv to s.
func RegisterTrendAnalyzerServer(s grpc.ServiceRegistrar, srv TrendAnalyzerServer) {
	s.RegisterService(&trendAnalyzerServiceDesc, srv)
}

var trendAnalyzerServiceDesc = grpc.ServiceDesc{
	ServiceName: TrendAnalyzerServiceName,
	HandlerType: (*TrendAnalyzerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
		{MethodName: "AnalyzeBatch", Handler: analyzeBatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trendpulse/v1/trend_analyzer.proto",
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrendAnalyzerServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrendAnalyzerServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func analyzeBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrendAnalyzerServer).AnalyzeBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeBatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrendAnalyzerServer).AnalyzeBatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCHandler adapts TrendService to TrendAnalyzerServer.
type GRPCHandler struct {
	service *services.TrendService
}

// NewGRPCHandler constructs the gRPC adapter.
func NewGRPCHandler(service *services.TrendService) *GRPCHandler {
	return &GRPCHandler{service: service}
}

// Analyze handles a single {keyword, values, brand?, category?} request.
func (h *GRPCHandler) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	var in models.TrendInput
	if err := FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := h.service.Analyze(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(res)
}

// AnalyzeBatch handles a {"trends": [...]} request.
func (h *GRPCHandler) AnalyzeBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	var in batchRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := h.service.AnalyzeBatch(ctx, in.Trends)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(res)
}

// FromStruct decodes a Struct into dst through its JSON form.
func FromStruct(src *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// ToStruct encodes v as a Struct through its JSON form. v must encode to a
// JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case utils.IsInvalidInput(err):
		return status.Error(codes.InvalidArgument, utils.PublicMessage(err, "invalid request"))
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "analysis failed")
	}
}
