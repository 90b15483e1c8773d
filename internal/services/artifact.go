package services

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type ArtifactService interface {
	ListForRelease(dbc dbctx.Context, releaseID uuid.UUID) ([]*release.Artifact, error)
	// Open returns the artifact and its content. Only downloadable
	// artifacts can be opened.
	Open(dbc dbctx.Context, artifactID uuid.UUID) (*release.Artifact, io.ReadCloser, error)
}

type artifactService struct {
	log       *logger.Logger
	releases  repos.ReleaseRepo
	artifacts repos.ArtifactRepo
}

func NewArtifactService(baseLog *logger.Logger, releases repos.ReleaseRepo, artifacts repos.ArtifactRepo) ArtifactService {
	return &artifactService{
		log:       baseLog.With("service", "ArtifactService"),
		releases:  releases,
		artifacts: artifacts,
	}
}

func (s *artifactService) ListForRelease(dbc dbctx.Context, releaseID uuid.UUID) ([]*release.Artifact, error) {
	if _, err := s.releases.GetByID(dbc, releaseID); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, fmt.Errorf("release %s: %w", releaseID, ErrNotFound)
		}
		return nil, err
	}
	return s.artifacts.ListByRelease(dbc, releaseID)
}

func (s *artifactService) Open(dbc dbctx.Context, artifactID uuid.UUID) (*release.Artifact, io.ReadCloser, error) {
	a, err := s.artifacts.GetByID(dbc, artifactID)
	if errors.Is(err, repos.ErrArtifactNotFound) {
		return nil, nil, fmt.Errorf("artifact %s: %w", artifactID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	if !a.Downloadable {
		return nil, nil, fmt.Errorf("%w: artifact %s is not downloadable", ErrInvalidArgument, artifactID)
	}
	f, err := os.Open(a.LocalPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("artifact file %s: %w", a.FileName(), ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return a, f, nil
}
