package gcp

import (
	"errors"
	"testing"
)

func TestStorageConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("GCS_ARTIFACT_BUCKET", "ontology-releases")
	t.Setenv("GCS_ARTIFACT_PREFIX", "")

	cfg, err := StorageConfigFromEnv()
	if err != nil {
		t.Fatalf("StorageConfigFromEnv: %v", err)
	}
	if cfg.Mode != StorageModeGCS || cfg.Bucket != "ontology-releases" || cfg.Prefix != "releases" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestStorageConfigFromEnvEmulatorFallback(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443/")

	cfg, err := StorageConfigFromEnv()
	if err != nil {
		t.Fatalf("StorageConfigFromEnv: %v", err)
	}
	if !cfg.IsEmulator() || cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestStorageConfigFromEnvRejectsBadMode(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "s3")
	_, err := StorageConfigFromEnv()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Setting != "OBJECT_STORAGE_MODE" {
		t.Fatalf("expected ConfigError for OBJECT_STORAGE_MODE, got %v", err)
	}
}

func TestEmulatorModeNeedsAbsoluteHost(t *testing.T) {
	t.Parallel()
	err := ValidateStorageConfig(StorageConfig{Mode: StorageModeEmulator, EmulatorHost: "fake-gcs:4443"})
	if err == nil {
		t.Fatalf("expected error for relative emulator host")
	}
}

func TestObjectKeyAndPublicURL(t *testing.T) {
	t.Parallel()
	key := objectKey("releases", "HumanBehaviourChangeProject/ontologies", "2026-10-19", "/work/out/addicto.owl")
	if key != "releases/HumanBehaviourChangeProject_ontologies/2026-10-19/addicto.owl" {
		t.Fatalf("key = %q", key)
	}
	tests := []struct {
		name string
		cfg  StorageConfig
		want string
	}{
		{"gcs", StorageConfig{Mode: StorageModeGCS, Bucket: "b"}, "https://storage.googleapis.com/b/" + key},
		{"public base", StorageConfig{Mode: StorageModeGCS, Bucket: "b", PublicBase: "http://localhost:4443"}, "http://localhost:4443/b/" + key},
		{"emulator", StorageConfig{Mode: StorageModeEmulator, Bucket: "b", EmulatorHost: "http://fake-gcs:4443"},
			"http://fake-gcs:4443/storage/v1/b/b/o/releases%2FHumanBehaviourChangeProject_ontologies%2F2026-10-19%2Faddicto.owl?alt=media"},
	}
	for _, tc := range tests {
		if got := publicURL(tc.cfg, key); got != tc.want {
			t.Errorf("%s: publicURL = %q, want %q", tc.name, got, tc.want)
		}
	}
}
