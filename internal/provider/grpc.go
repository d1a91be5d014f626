package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vietddude/atelier/internal/core/domain"
)

// GenerateFunc executes a render call against a gRPC connection and returns
// the image URL. Callers supply it wrapping their generated client, which
// keeps this adapter free of any specific render-farm proto.
type GenerateFunc func(ctx context.Context, conn grpc.ClientConnInterface, prompt string) (string, error)

// GRPCProvider adapts an internal render farm reachable over gRPC.
type GRPCProvider struct {
	name     string
	endpoint string
	conn     *grpc.ClientConn
	generate GenerateFunc

	monitor *Monitor
}

// NewGRPCProvider dials the endpoint and wraps the given generate closure.
func NewGRPCProvider(ctx context.Context, name, endpoint string, generate GenerateFunc) (*GRPCProvider, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial grpc endpoint %s: %w", target, err)
	}

	return &GRPCProvider{
		name:     name,
		endpoint: endpoint,
		conn:     conn,
		generate: generate,
		monitor:  NewMonitor(),
	}, nil
}

// Name returns the provider's name.
func (p *GRPCProvider) Name() string {
	return p.name
}

// GenerateImage renders the prompt through the injected closure.
func (p *GRPCProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if p.generate == nil {
		return "", domain.NewInvalidRequest(fmt.Sprintf("%s: no generate handler configured", p.name))
	}

	start := time.Now()
	url, err := p.generate(ctx, p.conn, prompt)
	if err != nil {
		p.monitor.RecordFailure()
		return "", domain.Classify(fmt.Errorf("%s: %w", p.name, err))
	}

	p.monitor.RecordSuccess(time.Since(start))
	return url, nil
}

// Status returns the monitor's current snapshot.
func (p *GRPCProvider) Status(ctx context.Context) Status {
	return p.monitor.Snapshot()
}

// Close releases the underlying connection.
func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}
