package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after positionals are moved first",
			args:     []string{"Ford", "F-150", "-year", "2018"},
			expected: []string{"-year", "2018", "Ford", "F-150"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-year", "2018", "Ford", "F-150"},
			expected: []string{"-year", "2018", "Ford", "F-150"},
		},
		{
			name:     "positionals only returns unchanged",
			args:     []string{"Ford", "F-150"},
			expected: []string{"Ford", "F-150"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBrandAndModel(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantBrand string
		wantModel string
	}{
		{"brand and model", []string{"Ford", "F-150"}, "Ford", "F-150"},
		{"multi-word model", []string{"Ford", "F-150", "XLT"}, "Ford", "F-150 XLT"},
		{"quoted model", []string{"Land", "Rover Range Rover Sport"}, "Land", "Rover Range Rover Sport"},
		{"brand only", []string{"Tesla"}, "Tesla", ""},
		{"empty", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brand, model := brandAndModel(tt.args)
			if brand != tt.wantBrand || model != tt.wantModel {
				t.Errorf("brandAndModel(%v) = %q, %q; want %q, %q", tt.args, brand, model, tt.wantBrand, tt.wantModel)
			}
		})
	}
}

func TestOptionalFloat(t *testing.T) {
	v, err := optionalFloat("mileage", "45,000")
	if err != nil || v == nil || *v != 45000 {
		t.Fatalf("optionalFloat(45,000) = %v, %v", v, err)
	}
	v, err = optionalFloat("mileage", "  ")
	if err != nil || v != nil {
		t.Errorf("blank should be missing, got %v, %v", v, err)
	}
	if _, err := optionalFloat("hp", "lots"); err == nil {
		t.Error("expected parse error")
	}
}

func TestOptionalInt(t *testing.T) {
	v, err := optionalInt("year", "2018")
	if err != nil || v == nil || *v != 2018 {
		t.Fatalf("optionalInt(2018) = %v, %v", v, err)
	}
	v, err = optionalInt("year", "")
	if err != nil || v != nil {
		t.Errorf("empty should be missing, got %v, %v", v, err)
	}
	if _, err := optionalInt("year", "2018.5"); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
registry:
  database_path: "./carprice.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
features:
  reference_year: 2025
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Features.ReferenceYear != 2025 {
		t.Errorf("reference year = %d, want 2025", cfg.Features.ReferenceYear)
	}
}

func TestLoadConfig_rejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
inference:
  display_margin: 1.5
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(configPath); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEstimateViaHTTP(t *testing.T) {
	var got models.EstimateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/estimate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(models.Estimate{Estimate: 30000, Low: 28500, High: 31500, Margin: 0.05, Currency: "USD"})
	}))
	defer srv.Close()

	year := 2018
	est, err := estimateViaHTTP(srv.URL+"/", &models.EstimateRequest{Brand: "Ford", Model: "F-150", ModelYear: &year})
	if err != nil {
		t.Fatal(err)
	}
	if est.Estimate != 30000 || est.Low != 28500 {
		t.Errorf("unexpected estimate: %+v", est)
	}
	if got.Brand != "Ford" || got.ModelYear == nil || *got.ModelYear != 2018 {
		t.Errorf("server saw %+v", got)
	}
}

func TestEstimateViaHTTP_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	}))
	defer srv.Close()

	if _, err := estimateViaHTTP(srv.URL, &models.EstimateRequest{Brand: "Ford"}); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestStatusViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":{"status":"loaded","path":"/m.gob","version":"v1"},"inference_enabled":true,"reference_year":2026,"display_margin":0.05,"comparables_enabled":false,"predictions":3}`))
	}))
	defer srv.Close()

	st, err := statusViaHTTP(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if st.Model.Status != artifact.StatusLoaded || !st.InferenceEnabled || st.ReferenceYear != 2026 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Predictions == nil || *st.Predictions != 3 {
		t.Errorf("predictions = %v, want 3", st.Predictions)
	}
}

func TestInitializeComponents_missingArtifact(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
model:
  artifact_path: "./models/car_price_model.gob"
registry:
  database_path: "./db/carprice.db"
comparables:
  enabled: true
  index_path: "./indices/listings"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Comparables != nil || c.searcher() != nil {
		t.Error("comparables should be disabled when the index is missing")
	}
	if _, err := c.Adapter.Estimate(ctx, models.EstimateRequest{Brand: "Ford", Model: "F-150"}); err == nil {
		t.Error("expected model unavailable error")
	}

	st := buildStatus(ctx, cfg, c)
	if st.InferenceEnabled {
		t.Error("inference should be disabled")
	}
	if st.Model.Status != artifact.StatusUnavailable {
		t.Errorf("model status = %s, want %s", st.Model.Status, artifact.StatusUnavailable)
	}
	if st.Predictions == nil || *st.Predictions != 0 {
		t.Errorf("predictions = %v, want 0", st.Predictions)
	}
	if st.LatestRun != nil {
		t.Errorf("latest run = %+v, want nil", st.LatestRun)
	}
}
