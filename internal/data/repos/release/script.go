package release

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type ScriptRepo interface {
	// Get returns nil, nil when the repository has no stored script.
	Get(dbc dbctx.Context, repositoryKey string) (*domain.ScriptRecord, error)
	Upsert(dbc dbctx.Context, rec *domain.ScriptRecord) error
}

type scriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScriptRepo(db *gorm.DB, baseLog *logger.Logger) ScriptRepo {
	return &scriptRepo{
		db:  db,
		log: baseLog.With("repo", "ScriptRepo"),
	}
}

func (r *scriptRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *scriptRepo) Get(dbc dbctx.Context, repositoryKey string) (*domain.ScriptRecord, error) {
	var rec domain.ScriptRecord
	err := r.tx(dbc).Where("repository_key = ?", repositoryKey).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *scriptRepo) Upsert(dbc dbctx.Context, rec *domain.ScriptRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_by", "updated_at"}),
	}).Create(rec).Error
}
