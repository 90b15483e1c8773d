package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ontorelease/internal/domain/release"
	httpH "github.com/yungbote/ontorelease/internal/http/handlers"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/searchindex"
	"github.com/yungbote/ontorelease/internal/services"
)

type fakeReleases struct {
	byID      map[uuid.UUID]*release.Release
	startedBy string
	startErr  error
}

func newFakeReleases() *fakeReleases {
	return &fakeReleases{byID: map[uuid.UUID]*release.Release{}}
}

func (f *fakeReleases) add(state release.State, step int) *release.Release {
	script := &release.Script{FullRepositoryName: "acme/onto", Steps: []release.StepSpec{{Name: "VALIDATION"}, {Name: "BUILD"}}}
	doc, _ := script.JSON()
	rel := &release.Release{ID: uuid.New(), RepositoryKey: "onto", State: state, Step: step, Script: doc, StartedAt: time.Now()}
	f.byID[rel.ID] = rel
	return rel
}

func (f *fakeReleases) Start(_ dbctx.Context, repo, startedBy string) (*release.Release, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.startedBy = startedBy
	rel := f.add(release.StateStarting, 0)
	rel.RepositoryKey = repo
	rel.Running = true
	return rel, nil
}

func (f *fakeReleases) get(id uuid.UUID) (*release.Release, error) {
	rel, ok := f.byID[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return rel, nil
}

func (f *fakeReleases) Continue(_ dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if rel.State != release.StateWaitingForUser {
		return nil, fmt.Errorf("%w: release is %s", services.ErrInvalidState, rel.State)
	}
	rel.State = release.StateStarting
	return rel, nil
}

func (f *fakeReleases) RerunStep(_ dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := f.get(id)
	if err != nil {
		return nil, err
	}
	rel.State = release.StateStarting
	return rel, nil
}

func (f *fakeReleases) Cancel(_ dbctx.Context, id uuid.UUID) (*release.Release, error) {
	rel, err := f.get(id)
	if err != nil {
		return nil, err
	}
	rel.State = release.StateCanceled
	return rel, nil
}

func (f *fakeReleases) Get(_ dbctx.Context, id uuid.UUID) (*release.Release, error) {
	return f.get(id)
}

func (f *fakeReleases) ListForRepository(_ dbctx.Context, repo string, _ int) ([]*release.Release, error) {
	var out []*release.Release
	for _, rel := range f.byID {
		if rel.RepositoryKey == repo {
			out = append(out, rel)
		}
	}
	return out, nil
}

type fakeArtifacts struct {
	list []*release.Artifact
}

func (f *fakeArtifacts) ListForRelease(_ dbctx.Context, releaseID uuid.UUID) ([]*release.Artifact, error) {
	var out []*release.Artifact
	for _, a := range f.list {
		if a.ReleaseID == releaseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArtifacts) Open(_ dbctx.Context, id uuid.UUID) (*release.Artifact, io.ReadCloser, error) {
	for _, a := range f.list {
		if a.ID != id {
			continue
		}
		if !a.Downloadable {
			return nil, nil, services.ErrInvalidArgument
		}
		rc, err := os.Open(a.LocalPath)
		return a, rc, err
	}
	return nil, nil, services.ErrNotFound
}

type fakeScripts struct {
	stored map[string]*release.Script
}

func (f *fakeScripts) GetScript(_ dbctx.Context, repo string) (*release.Script, bool, error) {
	if s, ok := f.stored[repo]; ok {
		return s, true, nil
	}
	return &release.Script{FullRepositoryName: repo}, false, nil
}

func (f *fakeScripts) PutScript(_ dbctx.Context, repo string, doc []byte, _ string) (*release.Script, error) {
	s, err := release.ParseScript(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrInvalidArgument, err)
	}
	f.stored[repo] = s
	return s, nil
}

func (f *fakeScripts) Check(*release.Script) error { return nil }

type testAPI struct {
	engine    *gin.Engine
	releases  *fakeReleases
	artifacts *fakeArtifacts
	scripts   *fakeScripts
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		releases:  newFakeReleases(),
		artifacts: &fakeArtifacts{},
		scripts:   &fakeScripts{stored: map[string]*release.Script{}},
	}
	ix := searchindex.New()
	ix.ReplaceRepository("onto", []searchindex.Document{{ID: "EX:0001", Label: "cell membrane"}})
	api.engine = NewRouter(RouterConfig{
		HealthHandler:   httpH.NewHealthHandler(nil),
		ReleaseHandler:  httpH.NewReleaseHandler(api.releases, api.artifacts),
		ScriptHandler:   httpH.NewScriptHandler(api.scripts),
		TermHandler:     httpH.NewTermHandler(services.NewTermSearchService(ix)),
		ArtifactHandler: httpH.NewArtifactHandler(api.artifacts),
	})
	return api
}

func (a *testAPI) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env, _ := decode(t, rec)["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func TestHealthcheck(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestStartRelease(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/repositories/onto/releases", "", "X-User", "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d body=%s", rec.Code, rec.Body.String())
	}
	rel, _ := decode(t, rec)["release"].(map[string]any)
	if rel["repository_key"] != "onto" || rel["current_step"] != "VALIDATION" {
		t.Fatalf("release view = %+v", rel)
	}
	if api.releases.startedBy != "alice" {
		t.Fatalf("startedBy = %q", api.releases.startedBy)
	}

	rec = api.do(http.MethodPost, "/api/repositories/onto/releases", `{"started_by":"bob"}`)
	if rec.Code != http.StatusCreated || api.releases.startedBy != "bob" {
		t.Fatalf("start with body = %d, startedBy=%q", rec.Code, api.releases.startedBy)
	}

	api.releases.startErr = services.ErrReleaseActive
	rec = api.do(http.MethodPost, "/api/repositories/onto/releases", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "release_active" {
		t.Fatalf("active start = %d %s", rec.Code, rec.Body.String())
	}
}

func TestReleaseTransitions(t *testing.T) {
	api := newTestAPI(t)
	waiting := api.releases.add(release.StateWaitingForUser, 0)
	running := api.releases.add(release.StateRunning, 1)

	cases := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"continue waiting", "/api/releases/" + waiting.ID.String() + "/continue", http.StatusOK, ""},
		{"continue running", "/api/releases/" + running.ID.String() + "/continue", http.StatusConflict, "invalid_state"},
		{"rerun", "/api/releases/" + running.ID.String() + "/rerun", http.StatusOK, ""},
		{"cancel unknown", "/api/releases/" + uuid.NewString() + "/cancel", http.StatusNotFound, "not_found"},
		{"bad id", "/api/releases/not-a-uuid/cancel", http.StatusBadRequest, "invalid_release_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, tc.path, "")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.code != "" && errorCode(t, rec) != tc.code {
				t.Fatalf("code = %q, want %q", errorCode(t, rec), tc.code)
			}
		})
	}
	if waiting.Step != 0 || waiting.State != release.StateStarting {
		t.Fatalf("continue should resume the current step: step=%d state=%s", waiting.Step, waiting.State)
	}

	rec := api.do(http.MethodGet, "/api/releases/"+waiting.ID.String(), "")
	rel, _ := decode(t, rec)["release"].(map[string]any)
	if rec.Code != http.StatusOK || rel["current_step"] != "VALIDATION" {
		t.Fatalf("get = %d %+v", rec.Code, rel)
	}

	rec = api.do(http.MethodGet, "/api/repositories/onto/releases", "")
	list, _ := decode(t, rec)["releases"].([]any)
	if rec.Code != http.StatusOK || len(list) != 2 {
		t.Fatalf("list = %d %d", rec.Code, len(list))
	}
}

func TestScriptRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/repositories/onto/script", "")
	if rec.Code != http.StatusOK || decode(t, rec)["stored"] != false {
		t.Fatalf("get default = %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(http.MethodPut, "/api/repositories/onto/script", `{"fullRepositoryName":"acme/onto","steps":[{"name":"VALIDATION"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put = %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(http.MethodPut, "/api/repositories/onto/script", `{`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_argument" {
		t.Fatalf("put invalid = %d %s", rec.Code, rec.Body.String())
	}
}

func TestTermSearchRoute(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/repositories/onto/terms/search?q=membr", "")
	terms, _ := decode(t, rec)["terms"].([]any)
	if rec.Code != http.StatusOK || len(terms) != 1 {
		t.Fatalf("search = %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(http.MethodGet, "/api/repositories/onto/terms/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty query = %d", rec.Code)
	}
}

func TestArtifactRoutes(t *testing.T) {
	api := newTestAPI(t)
	rel := api.releases.add(release.StateWaitingForUser, 1)
	dir := t.TempDir()
	path := filepath.Join(dir, "onto.owl")
	if err := os.WriteFile(path, []byte("<rdf:RDF/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := "ontology/onto.owl"
	final, _ := release.NewArtifact(rel.ID, 1, release.ArtifactFinal, path, &target, true)
	tmp, _ := release.NewArtifact(rel.ID, 1, release.ArtifactIntermediate, filepath.Join(dir, "x.owl"), nil, false)
	api.artifacts.list = []*release.Artifact{final, tmp}

	rec := api.do(http.MethodGet, "/api/releases/"+rel.ID.String()+"/artifacts", "")
	list, _ := decode(t, rec)["artifacts"].([]any)
	if rec.Code != http.StatusOK || len(list) != 2 {
		t.Fatalf("artifacts = %d %s", rec.Code, rec.Body.String())
	}
	first, _ := list[0].(map[string]any)
	if first["download_url"] != "/api/artifacts/"+final.ID.String()+"/download" {
		t.Fatalf("download url = %v", first["download_url"])
	}

	rec = api.do(http.MethodGet, first["download_url"].(string), "")
	if rec.Code != http.StatusOK || rec.Body.String() != "<rdf:RDF/>" {
		t.Fatalf("download = %d %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="onto.owl"`) {
		t.Fatalf("content disposition = %q", cd)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/rdf+xml" {
		t.Fatalf("content type = %q", ct)
	}

	rec = api.do(http.MethodGet, "/api/artifacts/"+tmp.ID.String()+"/download", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-downloadable = %d", rec.Code)
	}
}
