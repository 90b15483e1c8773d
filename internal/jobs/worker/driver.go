package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/registry"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/observability"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/redislock"
)

var notCanceled = []release.State{release.StateCanceled}

// Driver executes the steps of one claimed release until it pauses, fails,
// completes or is canceled.
type Driver struct {
	log       *logger.Logger
	releases  repos.ReleaseRepo
	artifacts repos.ArtifactRepo
	registry  *registry.Registry
	services  *runtime.Services
	bus       redislock.Bus

	workRoot       string
	heartbeatEvery time.Duration

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

type DriverConfig struct {
	// WorkRoot holds one working directory per release.
	WorkRoot       string
	HeartbeatEvery time.Duration
}

func NewDriver(baseLog *logger.Logger, releases repos.ReleaseRepo, artifacts repos.ArtifactRepo, reg *registry.Registry,
	services *runtime.Services, bus redislock.Bus, cfg DriverConfig) *Driver {
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = filepath.Join(os.TempDir(), "ontorelease")
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 20 * time.Second
	}
	if bus == nil {
		bus = redislock.NewLocalBus()
	}
	return &Driver{
		log:            baseLog.With("component", "ReleaseDriver"),
		releases:       releases,
		artifacts:      artifacts,
		registry:       reg,
		services:       services,
		bus:            bus,
		workRoot:       cfg.WorkRoot,
		heartbeatEvery: cfg.HeartbeatEvery,
		cancels:        map[uuid.UUID]context.CancelFunc{},
	}
}

// Cancel stops an in-process execution of the release. It reports whether
// one was running here.
func (d *Driver) Cancel(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancel, ok := d.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

func (d *Driver) track(id uuid.UUID, cancel context.CancelFunc) func() {
	d.mu.Lock()
	d.cancels[id] = cancel
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.cancels, id)
		d.mu.Unlock()
		cancel()
	}
}

// Execute runs rel from its current step. The returned error is only for
// bookkeeping failures; step outcomes are persisted on the release.
func (d *Driver) Execute(ctx context.Context, rel *release.Release, workerID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer d.track(rel.ID, cancel)()
	log := d.log.With("release_id", rel.ID, "repository", rel.RepositoryKey, "worker_id", workerID)

	script, err := rel.ScriptDoc()
	if err != nil {
		return d.fail(ctx, log, rel, "", time.Time{}, fmt.Errorf("release script snapshot: %w", err), "")
	}
	if rel.LocalWorkingDir == "" {
		rel.LocalWorkingDir = filepath.Join(d.workRoot, rel.ID.String())
		if _, err := d.update(ctx, rel, map[string]interface{}{"local_working_dir": rel.LocalWorkingDir}); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(rel.LocalWorkingDir, 0o755); err != nil {
		return d.fail(ctx, log, rel, "", time.Time{}, err, "")
	}

	for {
		if rel.Step >= len(script.Steps) {
			return d.complete(ctx, log, rel)
		}
		spec := script.Steps[rel.Step]
		stepLog := log.With("step", spec.Name, "step_index", rel.Step)

		step, ok := d.registry.Get(spec.Name)
		if !ok {
			return d.fail(ctx, stepLog, rel, spec.Name, time.Now(), fmt.Errorf("no step registered for name=%s", spec.Name), "")
		}
		if missing := d.services.Missing(registry.Requirements(step)); len(missing) > 0 {
			return d.fail(ctx, stepLog, rel, spec.Name, time.Now(), fmt.Errorf("step %s needs %v which this deployment does not provide", spec.Name, missing), "")
		}

		stepCtx, span := observability.StartSpan(runCtx, "release.step",
			attribute.String("release.id", rel.ID.String()),
			attribute.String("release.repository", rel.RepositoryKey),
			attribute.String("release.step", spec.Name),
			attribute.Int("release.step_index", rel.Step),
		)
		sc := &runtime.Context{
			Ctx:        stepCtx,
			Release:    rel,
			Script:     script,
			StepIndex:  rel.Step,
			Args:       spec.Args,
			Log:        stepLog,
			WorkDir:    rel.LocalWorkingDir,
			SourceRoot: filepath.Join(rel.LocalWorkingDir, "src"),
			Services:   d.services,
			Releases:   d.releases,
			Artifacts:  d.artifacts,
			WorkerID:   workerID,
		}
		d.publish(ctx, rel, spec.Name, "step started")
		stepLog.Info("step started")
		started := time.Now()
		stopBeat := d.heartbeat(runCtx, rel.ID, workerID)
		res, trace, runErr := runStep(step, sc)
		stopBeat()
		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, runErr.Error())
		}
		span.SetAttributes(attribute.Int("release.step_errors", len(res.Diagnostics.Errors)))
		span.End()
		dur := time.Since(started)

		if errors.Is(runErr, runtime.ErrCanceled) || runCtx.Err() != nil {
			observability.Current().ObserveStep(spec.Name, "canceled", dur)
			if ctx.Err() != nil {
				// Shutdown: leave the claim to go stale so another worker resumes.
				stepLog.Warn("step interrupted by shutdown")
				return nil
			}
			return d.canceled(ctx, stepLog, rel, spec.Name)
		}
		if runErr != nil {
			observability.Current().ObserveStep(spec.Name, "failed", dur)
			return d.fail(ctx, stepLog, rel, spec.Name, started, runErr, trace)
		}

		details, err := stepDetails(rel.Step, spec.Name, started, res)
		if err != nil {
			return d.fail(ctx, stepLog, rel, spec.Name, started, err, "")
		}
		encoded, err := rel.WithStepDetails(rel.Step, details)
		if err != nil {
			return d.fail(ctx, stepLog, rel, spec.Name, started, err, "")
		}
		for _, diag := range res.Diagnostics.All() {
			observability.Current().AddDiagnostics(spec.Name, string(diag.Kind), string(diag.Severity), 1)
		}
		stepLog.Info("step finished", "elapsed", runtime.Elapsed(started),
			"errors", len(res.Diagnostics.Errors), "warnings", len(res.Diagnostics.Warnings))

		if !res.Advances() {
			observability.Current().ObserveStep(spec.Name, "paused", dur)
			step := rel.Step
			if res.Finished() {
				step++
			}
			ok, err := d.update(ctx, rel, map[string]interface{}{
				"details":   encoded,
				"step":      step,
				"state":     release.StateWaitingForUser,
				"running":   false,
				"worker_id": "",
			})
			if err != nil || !ok {
				return err
			}
			rel.Details, rel.Step, rel.State, rel.Running, rel.WorkerID = encoded, step, release.StateWaitingForUser, false, ""
			d.publish(ctx, rel, spec.Name, firstNonEmpty(res.Message, "waiting for user"))
			return nil
		}

		observability.Current().ObserveStep(spec.Name, "advanced", dur)
		next := rel.Step + 1
		ok, err = d.update(ctx, rel, map[string]interface{}{
			"details": encoded,
			"step":    next,
			"state":   release.StateRunning,
		})
		if err != nil || !ok {
			return err
		}
		rel.Details, rel.Step, rel.State = encoded, next, release.StateRunning
	}
}

// runStep calls the step and turns a panic into an error with its stack.
func runStep(step runtime.Step, sc *runtime.Context) (res runtime.Result, trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{Val: r}
			trace = string(debug.Stack())
		}
	}()
	res, err = step.Run(sc)
	return res, "", err
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

func stepDetails(step int, name string, started time.Time, res runtime.Result) (release.StepDetails, error) {
	ended := time.Now().UTC()
	d := release.StepDetails{
		Step:       step,
		Name:       name,
		StartedAt:  started.UTC(),
		EndedAt:    &ended,
		ErrorCount: len(res.Diagnostics.Errors),
		Message:    res.Message,
	}
	var err error
	if d.Errors, err = rawJSON(res.Diagnostics.Errors); err != nil {
		return d, err
	}
	if d.Warnings, err = rawJSON(res.Diagnostics.Warnings); err != nil {
		return d, err
	}
	if d.Infos, err = rawJSON(res.Diagnostics.Infos); err != nil {
		return d, err
	}
	if res.Data != nil {
		if d.Data, err = json.Marshal(res.Data); err != nil {
			return d, fmt.Errorf("encode step data: %w", err)
		}
	}
	return d, nil
}

func rawJSON[T any](items []T) (json.RawMessage, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

func (d *Driver) update(ctx context.Context, rel *release.Release, updates map[string]interface{}) (bool, error) {
	ok, err := d.releases.UpdateFieldsUnlessState(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, rel.ID, notCanceled, updates)
	if err != nil {
		d.log.Error("release update failed", "release_id", rel.ID, "error", err)
		return false, err
	}
	if !ok {
		d.log.Info("release was canceled concurrently", "release_id", rel.ID)
	}
	return ok, nil
}

func (d *Driver) complete(ctx context.Context, log *logger.Logger, rel *release.Release) error {
	now := time.Now().UTC()
	ok, err := d.update(ctx, rel, map[string]interface{}{
		"state":     release.StateCompleted,
		"running":   false,
		"worker_id": "",
		"ended_at":  now,
	})
	if err != nil || !ok {
		return err
	}
	rel.State, rel.Running, rel.WorkerID, rel.EndedAt = release.StateCompleted, false, "", &now
	observability.Current().IncReleaseFinished(rel.RepositoryKey, string(release.StateCompleted))
	log.Info("release completed")
	d.publish(ctx, rel, "", "release completed")
	return nil
}

// fail marks the release errored. With a step name the cause and trace are
// kept in that step's details.
func (d *Driver) fail(ctx context.Context, log *logger.Logger, rel *release.Release, stepName string, started time.Time, cause error, trace string) error {
	log.Error("release errored", "error", cause)
	updates := map[string]interface{}{
		"state":     release.StateErrored,
		"running":   false,
		"worker_id": "",
	}
	if stepName != "" {
		ended := time.Now().UTC()
		details := release.StepDetails{
			Step:       rel.Step,
			Name:       stepName,
			StartedAt:  started.UTC(),
			EndedAt:    &ended,
			ErrorCount: 1,
			Message:    cause.Error(),
			Trace:      trace,
		}
		encoded, err := rel.WithStepDetails(rel.Step, details)
		if err == nil {
			updates["details"] = encoded
			rel.Details = encoded
		}
	}
	ok, err := d.update(ctx, rel, updates)
	if err != nil || !ok {
		return err
	}
	rel.State, rel.Running, rel.WorkerID = release.StateErrored, false, ""
	observability.Current().IncReleaseFinished(rel.RepositoryKey, string(release.StateErrored))
	d.publish(ctx, rel, stepName, cause.Error())
	return nil
}

// canceled makes sure the slot is released after a cooperative stop.
func (d *Driver) canceled(ctx context.Context, log *logger.Logger, rel *release.Release, stepName string) error {
	log.Info("release canceled")
	err := d.releases.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, rel.ID, map[string]interface{}{
		"state":     release.StateCanceled,
		"running":   false,
		"worker_id": "",
	})
	if err != nil {
		return err
	}
	rel.State, rel.Running, rel.WorkerID = release.StateCanceled, false, ""
	d.publish(ctx, rel, stepName, "release canceled")
	return nil
}

func (d *Driver) heartbeat(ctx context.Context, id uuid.UUID, workerID string) func() {
	beatCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(d.heartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-beatCtx.Done():
				return
			case <-t.C:
				if err := d.releases.Heartbeat(dbctx.Context{Ctx: beatCtx}, id, workerID); err != nil && beatCtx.Err() == nil {
					d.log.Warn("heartbeat failed", "release_id", id, "error", err)
				}
			}
		}
	}()
	return func() {
		stop()
		<-done
	}
}

func (d *Driver) publish(ctx context.Context, rel *release.Release, stepName, msg string) {
	ev := redislock.Event{
		ReleaseID:  rel.ID.String(),
		Repository: rel.RepositoryKey,
		State:      string(rel.State),
		Step:       rel.Step,
		StepName:   stepName,
		Message:    msg,
		At:         time.Now().UTC(),
	}
	if err := d.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		d.log.Warn("publish release event failed", "release_id", rel.ID, "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
