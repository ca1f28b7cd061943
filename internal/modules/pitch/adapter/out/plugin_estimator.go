package out

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	pluginrpc "reltone/internal/modules/pitch/adapter/out/rpc"
	"reltone/internal/modules/pitch/domain"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 250 * time.Millisecond
)

var ErrChecksumMismatch = errors.New("estimator plugin checksum mismatch")

type PluginInfo struct {
	Name      string
	Version   string
	Algorithm string
}

// PluginEstimator forwards frames to an out-of-process estimator over go-plugin.
// The plugin process is started lazily and kept until Close.
type PluginEstimator struct {
	binary string
	sha256 string
	logger *slog.Logger

	mu     sync.Mutex
	client *plugin.Client
	rpc    pluginrpc.EstimatorClient
}

func NewPluginEstimator(binary, checksum string, logger *slog.Logger) *PluginEstimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginEstimator{binary: binary, sha256: checksum, logger: logger}
}

func (p *PluginEstimator) Estimate(ctx context.Context, frame domain.Frame) (domain.PitchObservation, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return domain.PitchObservation{}, err
	}
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	response, err := client.Estimate(callCtx, &pluginrpc.EstimateRequest{
		Samples:    frame.Samples,
		SampleRate: int32(frame.SampleRate),
	})
	if err != nil {
		return domain.PitchObservation{}, fmt.Errorf("estimate via plugin: %w", err)
	}
	return domain.PitchObservation{
		RawFrequencyHz: response.FrequencyHz,
		Clarity:        response.Clarity,
		Timestamp:      frame.Timestamp,
	}, nil
}

func (p *PluginEstimator) Info(ctx context.Context) (PluginInfo, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return PluginInfo{}, err
	}
	callCtx, cancel := callContext(ctx, defaultStartTimeout)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return PluginInfo{}, fmt.Errorf("get metadata: %w", err)
	}
	return PluginInfo{Name: meta.Name, Version: meta.Version, Algorithm: meta.Algorithm}, nil
}

func (p *PluginEstimator) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Kill()
		p.client = nil
		p.rpc = nil
	}
	return nil
}

func (p *PluginEstimator) connect(ctx context.Context) (pluginrpc.EstimatorClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rpc != nil && p.client != nil && !p.client.Exited() {
		return p.rpc, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := verifyChecksum(p.binary, p.sha256); err != nil {
		return nil, err
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  pluginrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          pluginrpc.PluginMap(nil),
		Cmd:              exec.Command(p.binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel}),
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start estimator plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(pluginrpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense estimator plugin: %w", err)
	}
	typed, ok := raw.(pluginrpc.EstimatorClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("estimator rpc client type mismatch")
	}
	p.logger.Debug("estimator plugin started", slog.String("binary", p.binary))
	p.client = client
	p.rpc = typed
	return typed, nil
}

func verifyChecksum(path, want string) error {
	if want == "" {
		return nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read estimator plugin: %w", err)
	}
	sum := sha256.Sum256(payload)
	if got := hex.EncodeToString(sum[:]); got != want {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
	}
	return nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
