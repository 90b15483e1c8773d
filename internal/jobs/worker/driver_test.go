package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/datatypes"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/registry"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type memReleases struct {
	mu    sync.Mutex
	items map[uuid.UUID]*release.Release
}

func newMemReleases() *memReleases { return &memReleases{items: map[uuid.UUID]*release.Release{}} }

func (m *memReleases) Create(_ dbctx.Context, r *release.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	c := *r
	m.items[r.ID] = &c
	return nil
}

func (m *memReleases) GetByID(_ dbctx.Context, id uuid.UUID) (*release.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, repos.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *memReleases) ListByRepository(_ dbctx.Context, key string, _ int) ([]*release.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*release.Release
	for _, r := range m.items {
		if r.RepositoryKey == key {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memReleases) HasRunning(_ dbctx.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.RepositoryKey == key && r.Running {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReleases) ClaimNextRunnable(_ dbctx.Context, workerID string, _ time.Duration) (*release.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.Running && r.WorkerID == "" && (r.State == release.StateStarting || r.State == release.StateRunning) {
			r.State, r.WorkerID = release.StateRunning, workerID
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memReleases) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return repos.ErrNotFound
	}
	apply(r, updates)
	return nil
}

func (m *memReleases) UpdateFieldsUnlessState(_ dbctx.Context, id uuid.UUID, disallowed []release.State, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return false, repos.ErrNotFound
	}
	for _, s := range disallowed {
		if r.State == s {
			return false, nil
		}
	}
	apply(r, updates)
	return true, nil
}

func (m *memReleases) Heartbeat(dbctx.Context, uuid.UUID, string) error { return nil }

func apply(r *release.Release, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "state":
			r.State = v.(release.State)
		case "step":
			r.Step = v.(int)
		case "running":
			r.Running = v.(bool)
		case "worker_id":
			r.WorkerID = v.(string)
		case "details":
			r.Details = v.(datatypes.JSON)
		case "local_working_dir":
			r.LocalWorkingDir = v.(string)
		case "ended_at":
			t := v.(time.Time)
			r.EndedAt = &t
		}
	}
}

type funcStep struct {
	name string
	run  func(*runtime.Context) (runtime.Result, error)
	reqs []runtime.Capability
}

func (s *funcStep) Name() string                                  { return s.name }
func (s *funcStep) Run(c *runtime.Context) (runtime.Result, error) { return s.run(c) }

type requiringStep struct{ funcStep }

func (s *requiringStep) Requires() []runtime.Capability { return s.reqs }

func clean(*runtime.Context) (runtime.Result, error) {
	return runtime.Continue(diagnostics.Result{}), nil
}

func withErrors(*runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	res.Add(diagnostics.New(diagnostics.MissingLabel, term.Identifier{ID: "X:1"}, term.Origin{File: "a.csv", Row: 2}, "no label"))
	res.Add(diagnostics.New(diagnostics.NoParent, term.Identifier{ID: "X:1"}, term.Origin{File: "a.csv", Row: 2}, "no parent"))
	return runtime.Continue(res), nil
}

func warningsOnly(*runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	res.Add(diagnostics.New(diagnostics.NoParent, term.Identifier{ID: "X:1"}, term.Origin{File: "a.csv", Row: 2}, "no parent"))
	return runtime.Continue(res), nil
}

type harness struct {
	releases *memReleases
	reg      *registry.Registry
	driver   *Driver
}

func newHarness(t *testing.T, steps ...runtime.Step) *harness {
	t.Helper()
	reg := registry.New()
	for _, s := range steps {
		s := s
		if err := reg.Register(func() runtime.Step { return s }); err != nil {
			t.Fatal(err)
		}
	}
	mem := newMemReleases()
	d := NewDriver(logger.Nop(), mem, nil, reg, &runtime.Services{}, nil, DriverConfig{WorkRoot: t.TempDir()})
	return &harness{releases: mem, reg: reg, driver: d}
}

func (h *harness) start(t *testing.T, names ...string) *release.Release {
	t.Helper()
	s := &release.Script{FullRepositoryName: "example/bcio"}
	for _, n := range names {
		s.Steps = append(s.Steps, release.StepSpec{Name: n})
	}
	doc, err := s.JSON()
	if err != nil {
		t.Fatal(err)
	}
	rel := &release.Release{
		ID:            uuid.New(),
		RepositoryKey: "bcio",
		State:         release.StateStarting,
		Running:       true,
		Script:        doc,
		StartedAt:     time.Now(),
	}
	if err := h.releases.Create(dbctx.Context{}, rel); err != nil {
		t.Fatal(err)
	}
	claimed, err := h.releases.ClaimNextRunnable(dbctx.Context{}, "w-1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	return claimed
}

func (h *harness) run(t *testing.T, rel *release.Release) *release.Release {
	t.Helper()
	if err := h.driver.Execute(context.Background(), rel, "w-1"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, err := h.releases.GetByID(dbctx.Context{}, rel.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestErrorsStopAtCurrentStep(t *testing.T) {
	h := newHarness(t,
		&funcStep{name: "A", run: clean},
		&funcStep{name: "B", run: withErrors},
		&funcStep{name: "C", run: clean},
	)
	got := h.run(t, h.start(t, "A", "B", "C"))

	if got.State != release.StateWaitingForUser || got.Step != 1 {
		t.Fatalf("state=%s step=%d, want waiting-for-user at 1", got.State, got.Step)
	}
	if got.Running || got.WorkerID != "" {
		t.Fatalf("worker slot not released: running=%v worker=%q", got.Running, got.WorkerID)
	}
	d, ok := got.StepDetails(1)
	if !ok || d.ErrorCount != 1 || d.Name != "B" || len(d.Warnings) == 0 {
		t.Fatalf("details = %+v", d)
	}
}

func TestWarningsDoNotBlock(t *testing.T) {
	h := newHarness(t,
		&funcStep{name: "A", run: warningsOnly},
		&funcStep{name: "B", run: clean},
	)
	got := h.run(t, h.start(t, "A", "B"))
	if got.State != release.StateCompleted || got.Step != 2 || got.EndedAt == nil {
		t.Fatalf("state=%s step=%d ended=%v", got.State, got.Step, got.EndedAt)
	}
}

func TestPauseLeavesStepUnchanged(t *testing.T) {
	h := newHarness(t, &funcStep{name: "A", run: func(*runtime.Context) (runtime.Result, error) {
		return runtime.Pause(diagnostics.Result{}, "look at it"), nil
	}})
	got := h.run(t, h.start(t, "A"))
	if got.State != release.StateWaitingForUser || got.Step != 0 {
		t.Fatalf("state=%s step=%d", got.State, got.Step)
	}
	if d, _ := got.StepDetails(0); d.Message != "look at it" {
		t.Fatalf("message = %q", d.Message)
	}
}

// resume puts a paused release back in the queue the way the release
// service does and claims it again.
func (h *harness) resume(t *testing.T, id uuid.UUID) *release.Release {
	t.Helper()
	if err := h.releases.UpdateFields(dbctx.Context{}, id, map[string]interface{}{
		"state":   release.StateStarting,
		"running": true,
	}); err != nil {
		t.Fatal(err)
	}
	claimed, err := h.releases.ClaimNextRunnable(dbctx.Context{}, "w-1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	return claimed
}

func TestPauseAfterStepMovesPastIt(t *testing.T) {
	var runs int
	h := newHarness(t,
		&funcStep{name: "REVIEW", run: func(*runtime.Context) (runtime.Result, error) {
			runs++
			return runtime.PauseAfterStep(diagnostics.Result{}, "check the files"), nil
		}},
		&funcStep{name: "B", run: clean},
	)
	got := h.run(t, h.start(t, "REVIEW", "B"))
	if got.State != release.StateWaitingForUser || got.Step != 1 {
		t.Fatalf("state=%s step=%d, want waiting-for-user at 1", got.State, got.Step)
	}
	if d, ok := got.StepDetails(0); !ok || d.Message != "check the files" {
		t.Fatalf("details = %+v", d)
	}

	got = h.run(t, h.resume(t, got.ID))
	if got.State != release.StateCompleted || got.Step != 2 || runs != 1 {
		t.Fatalf("state=%s step=%d runs=%d", got.State, got.Step, runs)
	}
}

func TestPauseAfterWithErrorsStaysOnStep(t *testing.T) {
	h := newHarness(t, &funcStep{name: "A", run: func(c *runtime.Context) (runtime.Result, error) {
		res, _ := withErrors(c)
		return runtime.PauseAfterStep(res.Diagnostics, "fix it"), nil
	}})
	got := h.run(t, h.start(t, "A"))
	if got.State != release.StateWaitingForUser || got.Step != 0 {
		t.Fatalf("state=%s step=%d", got.State, got.Step)
	}
}

func TestResumedErrorStepRunsAgain(t *testing.T) {
	fail := true
	h := newHarness(t,
		&funcStep{name: "A", run: func(c *runtime.Context) (runtime.Result, error) {
			if fail {
				return withErrors(c)
			}
			return clean(c)
		}},
		&funcStep{name: "B", run: clean},
	)
	got := h.run(t, h.start(t, "A", "B"))
	if got.Step != 0 || got.State != release.StateWaitingForUser {
		t.Fatalf("state=%s step=%d", got.State, got.Step)
	}
	fail = false
	got = h.run(t, h.resume(t, got.ID))
	if got.State != release.StateCompleted || got.Step != 2 {
		t.Fatalf("state=%s step=%d", got.State, got.Step)
	}
	if d, _ := got.StepDetails(0); d.ErrorCount != 0 {
		t.Fatalf("rerun details kept old errors: %+v", d)
	}
}

func TestPanicMarksErrored(t *testing.T) {
	h := newHarness(t, &funcStep{name: "A", run: func(*runtime.Context) (runtime.Result, error) {
		panic("boom")
	}})
	got := h.run(t, h.start(t, "A"))
	if got.State != release.StateErrored || got.Running {
		t.Fatalf("state=%s running=%v", got.State, got.Running)
	}
	d, _ := got.StepDetails(0)
	if d.Message != "panic: boom" || d.Trace == "" {
		t.Fatalf("details = %+v", d)
	}
}

func TestMissingPrerequisiteIsFatal(t *testing.T) {
	h := newHarness(t, &funcStep{name: "A", run: func(*runtime.Context) (runtime.Result, error) {
		return runtime.Result{}, runtime.ErrMissingPrerequisite
	}})
	got := h.run(t, h.start(t, "A"))
	if got.State != release.StateErrored {
		t.Fatalf("state = %s", got.State)
	}
}

func TestMissingCapabilityIsErrored(t *testing.T) {
	h := newHarness(t, &requiringStep{funcStep{name: "A", run: clean, reqs: []runtime.Capability{runtime.CapGraphStore}}})
	got := h.run(t, h.start(t, "A"))
	if got.State != release.StateErrored {
		t.Fatalf("state = %s", got.State)
	}
	if d, _ := got.StepDetails(0); d.Message == "" {
		t.Fatalf("expected a message naming the missing capability")
	}
}

func TestCancelStopsCooperatively(t *testing.T) {
	var h *harness
	var id uuid.UUID
	h = newHarness(t,
		&funcStep{name: "A", run: func(c *runtime.Context) (runtime.Result, error) {
			_ = h.releases.UpdateFields(dbctx.Context{}, id, map[string]interface{}{"state": release.StateCanceled})
			if !h.driver.Cancel(id) {
				return runtime.Result{}, errors.New("release not tracked")
			}
			if err := c.CheckCanceled(); err != nil {
				return runtime.Result{}, err
			}
			return runtime.Continue(diagnostics.Result{}), nil
		}},
		&funcStep{name: "B", run: clean},
	)
	rel := h.start(t, "A", "B")
	id = rel.ID
	got := h.run(t, rel)
	if got.State != release.StateCanceled || got.Running || got.WorkerID != "" || got.Step != 0 {
		t.Fatalf("state=%s running=%v worker=%q step=%d", got.State, got.Running, got.WorkerID, got.Step)
	}
}

func TestCanceledReleaseIsNeverOverwritten(t *testing.T) {
	var h *harness
	var id uuid.UUID
	h = newHarness(t, &funcStep{name: "A", run: func(*runtime.Context) (runtime.Result, error) {
		// Canceled from another process; the step does not notice.
		_ = h.releases.UpdateFields(dbctx.Context{}, id, map[string]interface{}{"state": release.StateCanceled, "running": false})
		return runtime.Continue(diagnostics.Result{}), nil
	}})
	rel := h.start(t, "A")
	id = rel.ID
	got := h.run(t, rel)
	if got.State != release.StateCanceled || got.Step != 0 {
		t.Fatalf("state=%s step=%d", got.State, got.Step)
	}
}

func TestUnknownStepIsErrored(t *testing.T) {
	h := newHarness(t)
	got := h.run(t, h.start(t, "NOPE"))
	if got.State != release.StateErrored {
		t.Fatalf("state = %s", got.State)
	}
}

func TestWorkerClaimsAndDrives(t *testing.T) {
	h := newHarness(t, &funcStep{name: "A", run: clean})
	s := &release.Script{FullRepositoryName: "example/bcio", Steps: []release.StepSpec{{Name: "A"}}}
	doc, _ := s.JSON()
	rel := &release.Release{ID: uuid.New(), RepositoryKey: "bcio", State: release.StateStarting, Running: true, Script: doc}
	if err := h.releases.Create(dbctx.Context{}, rel); err != nil {
		t.Fatal(err)
	}
	w := NewWorker(logger.Nop(), h.releases, h.driver, Config{Concurrency: 1})
	if !w.claimAndRun(context.Background(), "w-9") {
		t.Fatalf("nothing claimed")
	}
	got, _ := h.releases.GetByID(dbctx.Context{}, rel.ID)
	if got.State != release.StateCompleted {
		t.Fatalf("state = %s", got.State)
	}
	if w.claimAndRun(context.Background(), "w-9") {
		t.Fatalf("completed release claimed again")
	}
}

func TestEachStepRunsInASpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := newHarness(t,
		&funcStep{name: "A", run: clean},
		&funcStep{name: "B", run: withErrors},
	)
	h.run(t, h.start(t, "A", "B"))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	want := map[string]int{"A": 0, "B": 1}
	for _, sp := range spans {
		if sp.Name() != "release.step" {
			t.Fatalf("span name = %q", sp.Name())
		}
		var step string
		errs := -1
		for _, kv := range sp.Attributes() {
			switch kv.Key {
			case attribute.Key("release.step"):
				step = kv.Value.AsString()
			case attribute.Key("release.step_errors"):
				errs = int(kv.Value.AsInt64())
			}
		}
		if n, ok := want[step]; !ok || n != errs {
			t.Fatalf("span for step %q has %d errors", step, errs)
		}
	}
}
