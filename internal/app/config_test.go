package app

import (
	"testing"

	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

func TestPolicyFromEnvDefaults(t *testing.T) {
	p := PolicyFromEnv()
	if !p.Ignore.Has(term.StatusObsolete) || !p.Ignore.Has(term.StatusPreProposed) {
		t.Fatalf("default ignore set = %v", p.Ignore)
	}
	if len(p.Discard) != 0 {
		t.Fatalf("default discard set = %v", p.Discard)
	}
}

func TestPolicyFromEnvOverrides(t *testing.T) {
	t.Setenv("CURATION_DISCARD", "obsolete")
	t.Setenv("CURATION_IGNORE", "Proposed, to be discussed")

	p := PolicyFromEnv()
	if !p.Discard.Has(term.StatusObsolete) || len(p.Discard) != 1 {
		t.Fatalf("discard = %v", p.Discard)
	}
	if !p.Ignore.Has(term.StatusProposed) || !p.Ignore.Has(term.StatusToBeDiscussed) || p.Ignore.Has(term.StatusObsolete) {
		t.Fatalf("ignore = %v", p.Ignore)
	}
}

func TestPolicyFromEnvExplicitEmptyClears(t *testing.T) {
	t.Setenv("CURATION_IGNORE", "")
	if p := PolicyFromEnv(); len(p.Ignore) != 0 {
		t.Fatalf("ignore = %v, want empty", p.Ignore)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("WORKER_ID", "release-a")
	t.Setenv("OBJECT_STORAGE_MODE", "ftp")

	cfg := LoadConfig(logger.Nop())
	if cfg.Port != "9090" || cfg.DB.Driver != "sqlite" || cfg.Worker.IDPrefix != "release-a" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.StorageErr == nil {
		t.Fatalf("expected storage config error for bad mode")
	}
}
