package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:   HTTPConfig{Port: 8080},
		Qdrant: QdrantConfig{Endpoint: "http://localhost:6333"},
		Source: SourceConfig{Driver: "preview"},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingQdrantEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Qdrant.Endpoint = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing qdrant endpoint")
	}
}

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Driver = "spreadsheet"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown source driver")
	}

	expected := `source.driver must be "warehouse" or "preview", got "spreadsheet"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_WarehouseRequiresDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Driver = "warehouse"
	cfg.Warehouse.DSN = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing warehouse dsn")
	}

	cfg.Warehouse.DSN = "postgres://localhost/sales"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with dsn set: %v", err)
	}
}

func TestValidate_PreviewRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_ScoreThresholdRange(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.ScoreThreshold = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for score threshold above 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Source.Driver != "preview" {
		t.Errorf("expected Driver='preview', got %q", cfg.Source.Driver)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected embedding model default, got %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected Dimensions=1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Completion.Model != "gpt-4o-mini" {
		t.Errorf("expected completion model default, got %q", cfg.Completion.Model)
	}
	if cfg.Engine.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Engine.TopK)
	}
	if cfg.Engine.ScoreThreshold != 0.7 {
		t.Errorf("expected ScoreThreshold=0.7, got %v", cfg.Engine.ScoreThreshold)
	}
	if cfg.Rebuild.Concurrency != 4 {
		t.Errorf("expected Concurrency=4, got %d", cfg.Rebuild.Concurrency)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Source:  SourceConfig{Driver: "warehouse", Table: "orders"},
		Engine:  EngineConfig{TopK: 10, ScoreThreshold: 0.85},
		Rebuild: RebuildConfig{Concurrency: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Source.Driver != "warehouse" {
		t.Errorf("expected Driver='warehouse', got %q", cfg.Source.Driver)
	}
	if cfg.Source.Table != "orders" {
		t.Errorf("expected Table='orders', got %q", cfg.Source.Table)
	}
	if cfg.Engine.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Engine.TopK)
	}
	if cfg.Engine.ScoreThreshold != 0.85 {
		t.Errorf("expected ScoreThreshold=0.85, got %v", cfg.Engine.ScoreThreshold)
	}
	if cfg.Rebuild.Concurrency != 8 {
		t.Errorf("expected Concurrency=8, got %d", cfg.Rebuild.Concurrency)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DP_TEST_KEY", "secret")

	in := []byte("api_key: ${DP_TEST_KEY}\nendpoint: ${DP_TEST_MISSING:-http://localhost:6333}\nempty: ${DP_TEST_UNSET}")
	got := string(expandEnvVars(in))
	want := "api_key: secret\nendpoint: http://localhost:6333\nempty: "
	if got != want {
		t.Errorf("expansion:\n got %q\nwant %q", got, want)
	}
}
