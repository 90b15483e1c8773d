package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/ontorelease/internal/domain/release"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&release.Release{},
		&release.Artifact{},
		&release.ScriptRecord{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
