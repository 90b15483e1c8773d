package steps

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/robot"
)

// fakeRobot records every call and writes a placeholder at --output.
type fakeRobot struct {
	mu       sync.Mutex
	calls    [][]string
	failWith string
}

func (f *fakeRobot) Run(_ context.Context, _ string, args, _ []string) (string, string, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	if f.failWith != "" {
		return "", f.failWith, 1, nil
	}
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--output" {
			_ = os.MkdirAll(filepath.Dir(args[i+1]), 0o755)
			_ = os.WriteFile(args[i+1], []byte("<owl/>"), 0o644)
		}
	}
	return "", "", 0, nil
}

func (f *fakeRobot) commands(sub string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if len(c) > 0 && c[0] == sub {
			out = append(out, c)
		}
	}
	return out
}

func argValues(args []string, flag string) []string {
	var out []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			out = append(out, args[i+1])
		}
	}
	return out
}

type memArtifacts struct {
	mu    sync.Mutex
	items []*release.Artifact
}

func (m *memArtifacts) Create(_ dbctx.Context, a *release.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, a)
	return nil
}

func (m *memArtifacts) GetByID(_ dbctx.Context, id uuid.UUID) (*release.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repos.ErrArtifactNotFound
}

func (m *memArtifacts) ListByRelease(_ dbctx.Context, id uuid.UUID) ([]*release.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*release.Artifact
	for _, a := range m.items {
		if a.ReleaseID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// twoUnitScript has "upper" and "lower", where lower needs upper.
func twoUnitScript() *release.Script {
	return &release.Script{
		IRIPrefix:           "http://example.org/",
		ShortRepositoryName: "bcio",
		FullRepositoryName:  "example/bcio",
		Files: map[string]release.BuildUnit{
			"upper": {
				Sources: []release.Source{{File: "upper/*.csv", Type: release.SourceClasses}},
				Target:  release.Target{File: "upper.owl", IRI: "http://example.org/upper.owl"},
			},
			"lower": {
				Sources: []release.Source{{File: "lower.csv", Type: release.SourceClasses}},
				Target:  release.Target{File: "lower.owl", IRI: "http://example.org/lower.owl"},
				Needs:   []string{"upper"},
			},
		},
		Steps: []release.StepSpec{{Name: NameValidation}},
	}
}

const (
	upperSheet = "ID,Label,Parent\nBCIO:0000001,intervention,\nBCIO:0000002,behaviour change technique,intervention\n"
	lowerSheet = "ID,Label,Parent\nBCIO:0000010,goal setting,behaviour change technique\n"
)

type testEnv struct {
	ctx       *runtime.Context
	robot     *fakeRobot
	artifacts *memArtifacts
}

func newTestEnv(t *testing.T, script *release.Script) *testEnv {
	t.Helper()
	dir := t.TempDir()
	fr := &fakeRobot{}
	arts := &memArtifacts{}
	rel := &release.Release{ID: uuid.New(), RepositoryKey: "bcio", State: release.StateRunning}
	return &testEnv{
		robot:     fr,
		artifacts: arts,
		ctx: &runtime.Context{
			Ctx:        context.Background(),
			Release:    rel,
			Script:     script,
			Log:        logger.Nop(),
			WorkDir:    dir,
			SourceRoot: filepath.Join(dir, "src"),
			Services: &runtime.Services{
				Robot: robot.New(robot.Config{}, logger.Nop()).WithRunner(fr),
			},
			Artifacts: arts,
		},
	}
}

func (e *testEnv) source(t *testing.T, rel, content string) {
	writeFile(t, filepath.Join(e.ctx.SourceRoot, filepath.FromSlash(rel)), content)
}
