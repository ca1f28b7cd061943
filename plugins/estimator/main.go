package main

import (
	"context"
	"time"

	pitchadapter "reltone/internal/modules/pitch/adapter/out"
	pluginrpc "reltone/internal/modules/pitch/adapter/out/rpc"
	"reltone/internal/modules/pitch/domain"

	"github.com/hashicorp/go-plugin"
)

type server struct {
	estimator interface {
		Estimate(ctx context.Context, frame domain.Frame) (domain.PitchObservation, error)
	}
}

func (s *server) GetMetadata(_ context.Context, _ *pluginrpc.Empty) (*pluginrpc.Metadata, error) {
	return &pluginrpc.Metadata{Name: "reltone-nsdf", Version: "1.0.0", Algorithm: "nsdf"}, nil
}

func (s *server) Estimate(ctx context.Context, in *pluginrpc.EstimateRequest) (*pluginrpc.EstimateResponse, error) {
	obs, err := s.estimator.Estimate(ctx, domain.Frame{
		Samples:    in.Samples,
		SampleRate: int(in.SampleRate),
		Timestamp:  time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &pluginrpc.EstimateResponse{FrequencyHz: obs.RawFrequencyHz, Clarity: obs.Clarity}, nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: pluginrpc.HandshakeConfig,
		Plugins:         pluginrpc.PluginMap(&server{estimator: pitchadapter.NewNSDFEstimator()}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
