package release

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArtifactKind string

const (
	ArtifactSource       ArtifactKind = "source"
	ArtifactIntermediate ArtifactKind = "intermediate"
	ArtifactFinal        ArtifactKind = "final"
)

var ErrArtifactTarget = errors.New("final artifacts need a target path and only final artifacts may have one")

// Artifact is a file produced by a step. Artifacts are never updated once
// stored; a later step supersedes one by storing a new path.
type Artifact struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"release_id"`
	Step         int          `gorm:"column:step;not null" json:"step"`
	Kind         ArtifactKind `gorm:"column:kind;not null;index" json:"kind"`
	LocalPath    string       `gorm:"column:local_path;not null" json:"local_path"`
	TargetPath   *string      `gorm:"column:target_path" json:"target_path,omitempty"`
	Downloadable bool         `gorm:"column:downloadable;not null;default:false" json:"downloadable"`
	CreatedAt    time.Time    `gorm:"not null;index" json:"created_at"`
}

func (Artifact) TableName() string { return "release_artifact" }

// NewArtifact enforces that kind is final exactly when targetPath is set.
func NewArtifact(releaseID uuid.UUID, step int, kind ArtifactKind, localPath string, targetPath *string, downloadable bool) (*Artifact, error) {
	a := &Artifact{
		ID:           uuid.New(),
		ReleaseID:    releaseID,
		Step:         step,
		Kind:         kind,
		LocalPath:    localPath,
		TargetPath:   targetPath,
		Downloadable: downloadable,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Artifact) Validate() error {
	switch a.Kind {
	case ArtifactSource, ArtifactIntermediate, ArtifactFinal:
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	hasTarget := a.TargetPath != nil && *a.TargetPath != ""
	if (a.Kind == ArtifactFinal) != hasTarget {
		return fmt.Errorf("%w: kind=%s", ErrArtifactTarget, a.Kind)
	}
	if a.LocalPath == "" {
		return errors.New("artifact local path is required")
	}
	return nil
}

func (a *Artifact) BeforeSave(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return a.Validate()
}

func (a *Artifact) FileName() string { return filepath.Base(a.LocalPath) }

func (a *Artifact) Target() string {
	if a.TargetPath == nil {
		return ""
	}
	return *a.TargetPath
}
