package release

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

var ErrNotFound = errors.New("release not found")

type ReleaseRepo interface {
	Create(dbc dbctx.Context, r *domain.Release) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Release, error)
	ListByRepository(dbc dbctx.Context, repositoryKey string, limit int) ([]*domain.Release, error)
	HasRunning(dbc dbctx.Context, repositoryKey string) (bool, error)
	ClaimNextRunnable(dbc dbctx.Context, workerID string, staleAfter time.Duration) (*domain.Release, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessState(dbc dbctx.Context, id uuid.UUID, disallowed []domain.State, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID, workerID string) error
}

type releaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReleaseRepo(db *gorm.DB, baseLog *logger.Logger) ReleaseRepo {
	return &releaseRepo{
		db:  db,
		log: baseLog.With("repo", "ReleaseRepo"),
	}
}

func (r *releaseRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *releaseRepo) Create(dbc dbctx.Context, rel *domain.Release) error {
	now := time.Now().UTC()
	if rel.StartedAt.IsZero() {
		rel.StartedAt = now
	}
	return r.tx(dbc).Create(rel).Error
}

func (r *releaseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Release, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	var rel domain.Release
	err := r.tx(dbc).Where("id = ?", id).First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *releaseRepo) ListByRepository(dbc dbctx.Context, repositoryKey string, limit int) ([]*domain.Release, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*domain.Release
	err := r.tx(dbc).
		Where("repository_key = ?", repositoryKey).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *releaseRepo) HasRunning(dbc dbctx.Context, repositoryKey string) (bool, error) {
	var count int64
	err := r.tx(dbc).
		Model(&domain.Release{}).
		Where("repository_key = ? AND running = ?", repositoryKey, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimNextRunnable hands a running release without a live worker to
// workerID: freshly started ones and ones whose worker stopped heartbeating.
func (r *releaseRepo) ClaimNextRunnable(dbc dbctx.Context, workerID string, staleAfter time.Duration) (*domain.Release, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleAfter)
	var claimed *domain.Release
	err := r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		var rel domain.Release
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        running = ?
        AND state IN ?
        AND (
          worker_id = ''
          OR worker_id IS NULL
          OR heartbeat_at IS NULL
          OR heartbeat_at < ?
        )
      `, true, []domain.State{domain.StateStarting, domain.StateRunning}, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&rel).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&domain.Release{}).
			Where("id = ?", rel.ID).
			Updates(map[string]interface{}{
				"state":        domain.StateRunning,
				"worker_id":    workerID,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		rel.State = domain.StateRunning
		rel.WorkerID = workerID
		rel.HeartbeatAt = &now
		claimed = &rel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *releaseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).
		Model(&domain.Release{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsUnlessState applies updates only while the release is not in
// one of the disallowed states; it reports whether a row changed.
func (r *releaseRepo) UpdateFieldsUnlessState(dbc dbctx.Context, id uuid.UUID, disallowed []domain.State, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	q := r.tx(dbc).
		Model(&domain.Release{}).
		Where("id = ?", id)
	if len(disallowed) == 1 {
		q = q.Where("state <> ?", disallowed[0])
	} else if len(disallowed) > 1 {
		q = q.Where("state NOT IN ?", disallowed)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *releaseRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID, workerID string) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return r.tx(dbc).
		Model(&domain.Release{}).
		Where("id = ? AND worker_id = ? AND running = ?", id, workerID, true).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
