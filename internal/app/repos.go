package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type Repos struct {
	Release  repos.ReleaseRepo
	Artifact repos.ArtifactRepo
	Script   repos.ScriptRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Release:  repos.NewReleaseRepo(db, log),
		Artifact: repos.NewArtifactRepo(db, log),
		Script:   repos.NewScriptRepo(db, log),
	}
}
