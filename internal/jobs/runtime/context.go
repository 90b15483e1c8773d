package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

var (
	// ErrCanceled aborts a step when its release was canceled.
	ErrCanceled = errors.New("release canceled")
	// ErrMissingPrerequisite aborts a step whose input artifact was never produced.
	ErrMissingPrerequisite = errors.New("missing prerequisite artifact")
)

// Result is what a step hands back to the driver. The release only advances
// when Continue is set and Diagnostics holds no errors.
type Result struct {
	Diagnostics diagnostics.Result
	Continue    bool
	// PauseAfter marks a finished step that still waits for the operator.
	// Without errors the driver moves past it before pausing, so a later
	// continue starts the next step.
	PauseAfter bool
	Message    string
	Data       any
}

func Continue(d diagnostics.Result) Result { return Result{Diagnostics: d, Continue: true} }

func Pause(d diagnostics.Result, msg string) Result {
	return Result{Diagnostics: d, Message: msg}
}

// PauseAfterStep finishes the step and then waits for the operator.
func PauseAfterStep(d diagnostics.Result, msg string) Result {
	return Result{Diagnostics: d, PauseAfter: true, Message: msg}
}

// Advances reports whether the release moves on to the next step.
func (r Result) Advances() bool { return r.Continue && !r.Diagnostics.HasErrors() }

// Finished reports whether the step pointer moves past this step.
func (r Result) Finished() bool {
	return (r.Continue || r.PauseAfter) && !r.Diagnostics.HasErrors()
}

type Step interface {
	Name() string
	Run(ctx *Context) (Result, error)
}

// CapabilityRequirer is implemented by steps that only run where certain
// collaborators are wired.
type CapabilityRequirer interface {
	Requires() []Capability
}

/*
Context is the capability-scoped handle a step runs with. Steps never touch
the release row directly; they report progress, store artifacts and check for
cancellation through it.
*/
type Context struct {
	Ctx       context.Context
	Release   *release.Release
	Script    *release.Script
	StepIndex int
	Args      map[string]any
	Log       *logger.Logger

	// WorkDir holds everything the release produces; SourceRoot holds the
	// downloaded (or checked out) source files.
	WorkDir    string
	SourceRoot string

	Services  *Services
	Releases  repos.ReleaseRepo
	Artifacts repos.ArtifactRepo
	WorkerID  string
}

func (c *Context) dbc() dbctx.Context { return dbctx.Context{Ctx: c.Ctx} }

func (c *Context) ReleaseID() uuid.UUID {
	if c.Release == nil {
		return uuid.Nil
	}
	return c.Release.ID
}

// Has reports whether a capability is wired for this run.
func (c *Context) Has(want Capability) bool { return c.Services.Has(want) }

/*
CheckCanceled is the cooperative cancellation point. Steps call it between
discrete units of work (one sheet, one upload, one build unit). The context
carries in-process cancellation; the persisted state covers a cancel issued
from another process.
*/
func (c *Context) CheckCanceled() error {
	if err := c.Ctx.Err(); err != nil {
		return ErrCanceled
	}
	if c.Releases == nil || c.Release == nil {
		return nil
	}
	cur, err := c.Releases.GetByID(c.dbc(), c.Release.ID)
	if err != nil {
		return nil
	}
	if cur.State == release.StateCanceled {
		return ErrCanceled
	}
	return nil
}

func (c *Context) Heartbeat() {
	if c.Releases == nil || c.Release == nil || c.WorkerID == "" {
		return
	}
	if err := c.Releases.Heartbeat(c.dbc(), c.Release.ID, c.WorkerID); err != nil {
		c.Log.Warn("heartbeat failed", "error", err)
	}
}

// Path joins rel onto the release working directory and makes sure the
// parent directory exists.
func (c *Context) Path(rel ...string) (string, error) {
	p := filepath.Join(append([]string{c.WorkDir}, rel...)...)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	return p, nil
}

// StoreArtifact records a produced file. Final artifacts need a target path.
func (c *Context) StoreArtifact(kind release.ArtifactKind, localPath, target string, downloadable bool) (*release.Artifact, error) {
	var tp *string
	if target != "" {
		tp = &target
	}
	a, err := release.NewArtifact(c.ReleaseID(), c.StepIndex, kind, localPath, tp, downloadable)
	if err != nil {
		return nil, err
	}
	if c.Artifacts == nil {
		return a, nil
	}
	if err := c.Artifacts.Create(c.dbc(), a); err != nil {
		return nil, fmt.Errorf("store artifact %s: %w", localPath, err)
	}
	return a, nil
}

// ArtifactsOf lists this release's artifacts of one kind. When a path was
// stored more than once the latest record wins.
func (c *Context) ArtifactsOf(kind release.ArtifactKind) ([]*release.Artifact, error) {
	if c.Artifacts == nil {
		return nil, nil
	}
	all, err := c.Artifacts.ListByRelease(c.dbc(), c.ReleaseID())
	if err != nil {
		return nil, err
	}
	latest := map[string]int{}
	var out []*release.Artifact
	for _, a := range all {
		if a.Kind != kind {
			continue
		}
		if i, ok := latest[a.LocalPath]; ok {
			out[i] = a
			continue
		}
		latest[a.LocalPath] = len(out)
		out = append(out, a)
	}
	return out, nil
}

// FindArtifact returns the latest artifact stored for localPath.
func (c *Context) FindArtifact(localPath string) (*release.Artifact, error) {
	if c.Artifacts == nil {
		if _, err := os.Stat(localPath); err != nil {
			return nil, nil
		}
		return &release.Artifact{LocalPath: localPath}, nil
	}
	all, err := c.Artifacts.ListByRelease(c.dbc(), c.ReleaseID())
	if err != nil {
		return nil, err
	}
	var found *release.Artifact
	for _, a := range all {
		if a.LocalPath == localPath {
			found = a
		}
	}
	return found, nil
}

func (c *Context) ArgString(key, def string) string {
	if v, ok := c.Args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (c *Context) ArgBool(key string, def bool) bool {
	if v, ok := c.Args[key].(bool); ok {
		return v
	}
	return def
}

func (c *Context) ArgStrings(key string) []string {
	switch v := c.Args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// DecodeArg re-decodes an argument into out through JSON.
func (c *Context) DecodeArg(key string, out any) (bool, error) {
	v, ok := c.Args[key]
	if !ok || v == nil {
		return false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("argument %s: %w", key, err)
	}
	return true, nil
}

// Elapsed is a small helper for step timing in logs.
func Elapsed(start time.Time) string { return time.Since(start).Round(time.Millisecond).String() }
