package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/ontorelease/internal/platform/envutil"
)

type StorageMode string

const (
	StorageModeGCS      StorageMode = "gcs"
	StorageModeEmulator StorageMode = "gcs_emulator"
)

type StorageConfig struct {
	Mode         StorageMode
	Bucket       string
	Prefix       string
	EmulatorHost string
	PublicBase   string
}

func (cfg StorageConfig) IsEmulator() bool { return cfg.Mode == StorageModeEmulator }

// ConfigError names the offending setting.
type ConfigError struct {
	Setting string
	Value   string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s=%q: %s", e.Setting, e.Value, e.Reason)
}

// StorageConfigFromEnv reads GCS_ARTIFACT_BUCKET and friends. An empty bucket
// means publishing to a bucket is disabled.
func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		Bucket:       envutil.String("GCS_ARTIFACT_BUCKET", ""),
		Prefix:       strings.Trim(envutil.String("GCS_ARTIFACT_PREFIX", "releases"), "/"),
		EmulatorHost: strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
		PublicBase:   strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
	}
	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch StorageMode(strings.ToLower(raw)) {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeEmulator
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeEmulator:
		cfg.Mode = StorageModeEmulator
	default:
		return cfg, &ConfigError{Setting: "OBJECT_STORAGE_MODE", Value: raw, Reason: "expected gcs or gcs_emulator"}
	}
	return cfg, ValidateStorageConfig(cfg)
}

func ValidateStorageConfig(cfg StorageConfig) error {
	if cfg.IsEmulator() {
		if cfg.EmulatorHost == "" {
			return &ConfigError{Setting: "STORAGE_EMULATOR_HOST", Reason: "required in emulator mode"}
		}
		if !absoluteURL(cfg.EmulatorHost) {
			return &ConfigError{Setting: "STORAGE_EMULATOR_HOST", Value: cfg.EmulatorHost, Reason: "expected absolute URL like http://fake-gcs:4443"}
		}
	}
	if cfg.PublicBase != "" && !absoluteURL(cfg.PublicBase) {
		return &ConfigError{Setting: "OBJECT_STORAGE_PUBLIC_BASE_URL", Value: cfg.PublicBase, Reason: "expected absolute URL"}
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
