package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/atelier/internal/core/config"
	"github.com/vietddude/atelier/internal/core/domain"
)

func paramsFor(pose, outfit, footwear string) domain.ParameterSet {
	return domain.ParameterSet{Pose: pose, Outfit: outfit, Footwear: footwear}
}

const testCatalogYAML = `
poses:
  arms-crossed:
    description: standing with arms crossed
    camera: full-body
    compatible_outfits: [hoodie-sweatpants]
outfits:
  hoodie-sweatpants:
    description: an oversized hoodie and sweatpants
    style: street
    compatible_footwear: [jordan-1]
footwear:
  jordan-1:
    description: red and black high-top sneakers
    style: street
    compatible_outfits: [hoodie-sweatpants]
`

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	return &config.AppConfig{
		Server:  config.ServerConfig{Port: 0},
		Catalog: config.CatalogConfig{Path: catalogPath},
		Cache:   config.CacheConfig{Backend: "memory"},
		Providers: []config.ProviderConfig{
			{Name: "provider-1", Type: "http", URL: "https://api.provider-1.test/v1/generate"},
		},
	}
}

func TestNewAppMemoryBackend(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), Options{}, nil)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Orchestrator() == nil {
		t.Fatal("expected a composed orchestrator")
	}

	if err := app.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestNewAppUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "etcd"

	if _, err := NewApp(context.Background(), cfg, Options{}, nil); err == nil {
		t.Fatal("expected error for unknown cache backend")
	}
}

func TestNewAppGRPCRequiresHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers = []config.ProviderConfig{
		{Name: "farm-1", Type: "grpc", URL: "http://localhost:50051"},
	}

	if _, err := NewApp(context.Background(), cfg, Options{}, nil); err == nil {
		t.Fatal("expected error for grpc provider without a generate handler")
	}
}

func TestNewAppMissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := NewApp(context.Background(), cfg, Options{}, nil); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}

func TestNewAppValidatesOrchestration(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), Options{}, nil)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	defer app.Stop(context.Background())

	report := app.Orchestrator().ValidateOnly(paramsFor("arms-crossed", "hoodie-sweatpants", "jordan-1"))
	if !report.IsValid {
		t.Errorf("expected catalog-backed validation to pass, got %v", report.Errors)
	}

	report = app.Orchestrator().ValidateOnly(paramsFor("no-such-pose", "hoodie-sweatpants", "jordan-1"))
	if report.IsValid {
		t.Error("expected unknown pose to fail validation")
	}
}
