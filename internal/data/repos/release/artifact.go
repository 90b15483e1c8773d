package release

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactRepo is append-only: artifacts are created and read, never updated.
type ArtifactRepo interface {
	Create(dbc dbctx.Context, a *domain.Artifact) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Artifact, error)
	ListByRelease(dbc dbctx.Context, releaseID uuid.UUID) ([]*domain.Artifact, error)
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{
		db:  db,
		log: baseLog.With("repo", "ArtifactRepo"),
	}
}

func (r *artifactRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *artifactRepo) Create(dbc dbctx.Context, a *domain.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return r.tx(dbc).Create(a).Error
}

func (r *artifactRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Artifact, error) {
	var a domain.Artifact
	err := r.tx(dbc).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *artifactRepo) ListByRelease(dbc dbctx.Context, releaseID uuid.UUID) ([]*domain.Artifact, error) {
	var out []*domain.Artifact
	err := r.tx(dbc).
		Where("release_id = ?", releaseID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
