package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey      = "estimator"
	serviceName       = "reltone.estimator.v1.Estimator"
	jsonCodecName     = "json"
	methodGetMetadata = "/" + serviceName + "/GetMetadata"
	methodEstimate    = "/" + serviceName + "/Estimate"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "RELTONE_ESTIMATOR",
	MagicCookieValue: "reltone",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Algorithm string `json:"algorithm"`
}

type EstimateRequest struct {
	Samples    []float64 `json:"samples"`
	SampleRate int32     `json:"sample_rate"`
}

type EstimateResponse struct {
	FrequencyHz float64 `json:"frequency_hz"`
	Clarity     float64 `json:"clarity"`
}

type EstimatorServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	Estimate(ctx context.Context, in *EstimateRequest) (*EstimateResponse, error)
}

type EstimatorClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	Estimate(ctx context.Context, in *EstimateRequest) (*EstimateResponse, error)
}

type estimatorClient struct {
	conn *grpc.ClientConn
}

func NewEstimatorClient(conn *grpc.ClientConn) EstimatorClient {
	return &estimatorClient{conn: conn}
}

func (c *estimatorClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *estimatorClient) Estimate(ctx context.Context, in *EstimateRequest) (*EstimateResponse, error) {
	out := &EstimateResponse{}
	if err := c.conn.Invoke(ctx, methodEstimate, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterEstimatorServer(server grpc.ServiceRegistrar, impl EstimatorServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*EstimatorServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "Estimate",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &EstimateRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.Estimate(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodEstimate}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*EstimateRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.Estimate(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "estimator-rpc-v1",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl EstimatorServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterEstimatorServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewEstimatorClient(conn), nil
}

func PluginMap(impl EstimatorServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
