package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KOORDINATOR_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIPort != DefaultAPIPort || cfg.DatabaseDriver != DefaultDatabaseDriver || cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes || cfg.InternalEmailDomain != DefaultInternalEmailDomain {
		t.Errorf("unexpected mail defaults: %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "koordinator.yaml")
	yamlConfig := `
api_port: "9090"
database_driver: mysql
database_dsn: "user:pw@tcp(db:3306)/mail"
smtp_listen: ":25"
storage:
  backend: s3
  s3_bucket: mail-attachments
  s3_region: eu-central-1
`
	if err := os.WriteFile(path, []byte(yamlConfig), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KOORDINATOR_CONFIG", path)
	t.Setenv("KOORDINATOR_API_PORT", "7070")
	t.Setenv("KOORDINATOR_MAX_MESSAGE_BYTES", "1048576")
	t.Setenv("KOORDINATOR_S3_PREFIX", "inbound/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIPort != "7070" {
		t.Errorf("environment should win over the file, got %q", cfg.APIPort)
	}
	if cfg.DatabaseDriver != "mysql" || cfg.DatabaseDSN != "user:pw@tcp(db:3306)/mail" || cfg.SMTPListen != ":25" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.S3Bucket != "mail-attachments" || cfg.Storage.S3Prefix != "inbound/" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.MaxMessageBytes != 1<<20 {
		t.Errorf("unexpected max message bytes %d", cfg.MaxMessageBytes)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("unset values keep defaults, got %q", cfg.LogLevel)
	}
}

func TestLoadJSONAndSave(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{APIPort: "8181", DataDir: dir, Storage: StorageConfig{Backend: "disk", AttachmentsDir: "/srv/att"}}
	path := filepath.Join(dir, "config.json")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	t.Setenv("KOORDINATOR_CONFIG", path)

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.APIPort != "8181" || loaded.GetAttachmentsDir() != "/srv/att" {
		t.Errorf("unexpected config %+v", loaded)
	}
}

func TestGetCORSOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"https://a.example, https://b.example ,", []string{"https://a.example", "https://b.example"}},
	}
	for _, tt := range tests {
		got := (&Config{CORSOrigins: tt.in}).GetCORSOrigins()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GetCORSOrigins(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetAttachmentsDirDefault(t *testing.T) {
	cfg := &Config{DataDir: "data"}
	if got := cfg.GetAttachmentsDir(); got != filepath.Join("data", "uploads", "email_attachments") {
		t.Errorf("unexpected attachments dir %q", got)
	}
}
