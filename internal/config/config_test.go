package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var configKeys = []string{
	"PORT", "DATABASE_PATH", "LOG_LEVEL", "LOG_FORMAT", "GCP_PROJECT",
	"BIGQUERY_DATASET", "BIGQUERY_TABLE", "GCS_BUCKET", "EXPORT_QUEUE_SIZE", "EXPORT_WORKERS",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// chdir switches the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 || cfg.DatabasePath != "./data/ledger.db" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("Unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.GCP.BigQueryDataset != "finance" || cfg.GCP.BigQueryTable != "ledger_transactions" {
		t.Errorf("Unexpected BigQuery defaults: %+v", cfg.GCP)
	}
	if cfg.Export.QueueSize != 100 || cfg.Export.Workers != 2 {
		t.Errorf("Unexpected export defaults: %+v", cfg.Export)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "PORT=9090\nLOG_FORMAT=json\nGCS_BUCKET=ledger-exports\nEXPORT_WORKERS=4\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}
	t.Setenv("GCP_PROJECT", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 || cfg.Log.Format != "json" || cfg.GCP.Bucket != "ledger-exports" || cfg.Export.Workers != 4 {
		t.Errorf("Values from env file not applied: %+v", cfg)
	}
	if cfg.GCP.Project != "from-env" {
		t.Errorf("GCP.Project = %q, want from-env", cfg.GCP.Project)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "http"},
		{"PORT", "70000"},
		{"LOG_FORMAT", "xml"},
		{"EXPORT_WORKERS", "0"},
		{"EXPORT_QUEUE_SIZE", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("Expected error for a missing env file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{DatabasePath: "x.db", GCP: GCPConfig{BigQueryDataset: "finance", BigQueryTable: "t"}}

	if err := cfg.Validate("database.path", "bigquery.dataset"); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	err := cfg.Validate("gcp.project", "gcp.bucket")
	if err == nil {
		t.Fatal("Expected missing keys error")
	}
	if !strings.Contains(err.Error(), "gcp.project") || !strings.Contains(err.Error(), "gcp.bucket") {
		t.Errorf("Error should name both keys: %v", err)
	}

	if err := cfg.Validate("bogus"); err == nil {
		t.Error("Expected error for unknown key")
	}
}
