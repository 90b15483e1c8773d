package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/observability"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/redislock"
)

const repoLockTTL = 30 * time.Second

// Canceler stops an in-process execution. The worker driver implements it.
type Canceler interface {
	Cancel(id uuid.UUID) bool
}

type ReleaseService interface {
	Start(dbc dbctx.Context, repositoryKey, startedBy string) (*release.Release, error)
	Continue(dbc dbctx.Context, id uuid.UUID) (*release.Release, error)
	RerunStep(dbc dbctx.Context, id uuid.UUID) (*release.Release, error)
	Cancel(dbc dbctx.Context, id uuid.UUID) (*release.Release, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*release.Release, error)
	ListForRepository(dbc dbctx.Context, repositoryKey string, limit int) ([]*release.Release, error)
}

type releaseService struct {
	log      *logger.Logger
	releases repos.ReleaseRepo
	scripts  ScriptService
	locker   redislock.Locker
	bus      redislock.Bus
	canceler Canceler
}

func NewReleaseService(baseLog *logger.Logger, releases repos.ReleaseRepo, scripts ScriptService,
	locker redislock.Locker, bus redislock.Bus, canceler Canceler) ReleaseService {
	if locker == nil {
		locker = redislock.NewLocalLocker()
	}
	if bus == nil {
		bus = redislock.NewLocalBus()
	}
	return &releaseService{
		log:      baseLog.With("service", "ReleaseService"),
		releases: releases,
		scripts:  scripts,
		locker:   locker,
		bus:      bus,
		canceler: canceler,
	}
}

func (s *releaseService) Get(dbc dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := s.releases.GetByID(dbc, id)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, fmt.Errorf("release %s: %w", id, ErrNotFound)
	}
	return rel, err
}

func (s *releaseService) ListForRepository(dbc dbctx.Context, repositoryKey string, limit int) ([]*release.Release, error) {
	if repositoryKey == "" {
		return nil, fmt.Errorf("%w: missing repository", ErrInvalidArgument)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.releases.ListByRepository(dbc, repositoryKey, limit)
}

// withRepoLock serialises the "is anything running" check and the write that
// makes a release runnable for one repository.
func (s *releaseService) withRepoLock(dbc dbctx.Context, repositoryKey string, fn func() error) error {
	ctx := dbc.Ctx
	lock, err := s.locker.Acquire(ctx, "repository:"+repositoryKey, repoLockTTL)
	if errors.Is(err, redislock.ErrLocked) {
		return ErrReleaseActive
	}
	if err != nil {
		return fmt.Errorf("acquire repository lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release repository lock failed", "repository", repositoryKey, "error", err)
		}
	}()
	running, err := s.releases.HasRunning(dbc, repositoryKey)
	if err != nil {
		return err
	}
	if running {
		return ErrReleaseActive
	}
	return fn()
}

func (s *releaseService) Start(dbc dbctx.Context, repositoryKey, startedBy string) (*release.Release, error) {
	script, _, err := s.scripts.GetScript(dbc, repositoryKey)
	if err != nil {
		return nil, err
	}
	if err := s.scripts.Check(script); err != nil {
		return nil, err
	}
	doc, err := script.JSON()
	if err != nil {
		return nil, err
	}

	var rel *release.Release
	err = s.withRepoLock(dbc, repositoryKey, func() error {
		now := time.Now().UTC()
		rel = &release.Release{
			ID:            uuid.New(),
			RepositoryKey: repositoryKey,
			State:         release.StateStarting,
			Step:          0,
			Running:       true,
			Script:        doc,
			StartedBy:     startedBy,
			StartedAt:     now,
		}
		return s.releases.Create(dbc, rel)
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncReleaseStarted(repositoryKey)
	s.log.Info("release started", "release_id", rel.ID, "repository", repositoryKey, "steps", len(script.Steps))
	s.publish(dbc.Ctx, rel, "release started")
	return rel, nil
}

// resume makes a paused or errored release runnable again at step.
func (s *releaseService) resume(dbc dbctx.Context, rel *release.Release, from []release.State, updates map[string]interface{}) (*release.Release, error) {
	allowed := map[release.State]bool{}
	for _, st := range from {
		allowed[st] = true
	}
	if !allowed[rel.State] {
		return nil, fmt.Errorf("%w: release is %s", ErrInvalidState, rel.State)
	}
	var disallowed []release.State
	for _, st := range []release.State{
		release.StateStarting, release.StateRunning, release.StateWaitingForUser,
		release.StateErrored, release.StateCanceled, release.StateCompleted,
	} {
		if !allowed[st] {
			disallowed = append(disallowed, st)
		}
	}
	updates["state"] = release.StateStarting
	updates["running"] = true
	updates["worker_id"] = ""
	updates["heartbeat_at"] = nil

	err := s.withRepoLock(dbc, rel.RepositoryKey, func() error {
		ok, err := s.releases.UpdateFieldsUnlessState(dbc, rel.ID, disallowed, updates)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: release changed state concurrently", ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out, err := s.Get(dbc, rel.ID)
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Ctx, out, "release resumed")
	return out, nil
}

// Continue resumes a release waiting for the operator from its current
// step. A step that paused with errors runs again; a deliberate pause has
// already moved the release past its step.
func (s *releaseService) Continue(dbc dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if d, ok := rel.StepDetails(rel.Step); ok && d.ErrorCount > 0 {
		s.log.Info("continuing into a step that reported errors", "release_id", id, "step", rel.Step, "errors", d.ErrorCount)
	}
	return s.resume(dbc, rel, []release.State{release.StateWaitingForUser}, map[string]interface{}{})
}

// RerunStep executes the current step again.
func (s *releaseService) RerunStep(dbc dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	return s.resume(dbc, rel, []release.State{release.StateWaitingForUser, release.StateErrored}, map[string]interface{}{})
}

func (s *releaseService) Cancel(dbc dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if rel.State.Terminal() {
		return nil, fmt.Errorf("%w: release is %s", ErrInvalidState, rel.State)
	}
	now := time.Now().UTC()
	ok, err := s.releases.UpdateFieldsUnlessState(dbc, id,
		[]release.State{release.StateCanceled, release.StateCompleted},
		map[string]interface{}{
			"state":     release.StateCanceled,
			"running":   false,
			"worker_id": "",
			"ended_at":  now,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: release already finished", ErrInvalidState)
	}
	if s.canceler != nil && s.canceler.Cancel(id) {
		s.log.Info("in-process execution canceled", "release_id", id)
	}
	observability.Current().IncReleaseFinished(rel.RepositoryKey, string(release.StateCanceled))
	out, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	s.publish(dbc.Ctx, out, "release canceled")
	return out, nil
}

func (s *releaseService) publish(ctx context.Context, rel *release.Release, msg string) {
	ev := redislock.Event{
		ReleaseID:  rel.ID.String(),
		Repository: rel.RepositoryKey,
		State:      string(rel.State),
		Step:       rel.Step,
		Message:    msg,
		At:         time.Now().UTC(),
	}
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("publish release event failed", "release_id", rel.ID, "error", err)
	}
}
