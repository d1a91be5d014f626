// Package provider implements image-generation provider adapters.
//
// This package contains:
//   - Provider interface: core abstraction for generation backends
//   - HTTPProvider: JSON REST implementation
//   - GRPCProvider: gRPC implementation with injected invoke closures
//   - Monitor: per-provider health and latency tracking
package provider

import (
	"context"
	"time"
)

// Provider is the capability every generation backend exposes. Errors
// returned by GenerateImage must be classifiable into the generation error
// taxonomy; adapters normalize at their own boundary.
type Provider interface {
	// Name returns the provider identifier (e.g. "flux", "sdxl-farm")
	Name() string

	// GenerateImage renders the prompt and returns the image URL
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// Status returns a point-in-time health snapshot
	Status(ctx context.Context) Status
}

// Status is a provider health snapshot.
type Status struct {
	Available     bool          `json:"available"`
	ResponseTime  time.Duration `json:"response_time"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}
