package steps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/apierr"
	"github.com/yungbote/ontorelease/internal/platform/githost"
)

type fakeGit struct {
	branches []string
	releases []githost.Release
	commits  map[string][]byte
	created  []string
	merged   []int
	failPR   bool
}

func (f *fakeGit) DefaultBranch(context.Context, githost.Repo) (string, error) { return "main", nil }

func (f *fakeGit) GetFile(_ context.Context, _ githost.Repo, path, _ string) (*githost.File, error) {
	return &githost.File{Path: path, Content: []byte(upperSheet)}, nil
}

func (f *fakeGit) ListTree(context.Context, githost.Repo, string) ([]string, error) {
	return []string{"upper/a.csv", "upper/b.csv", "lower.csv", "README.md"}, nil
}

func (f *fakeGit) ListBranches(context.Context, githost.Repo) ([]string, error) { return f.branches, nil }

func (f *fakeGit) CreateBranch(_ context.Context, _ githost.Repo, branch, _ string) error {
	f.created = append(f.created, branch)
	f.branches = append(f.branches, branch)
	return nil
}

func (f *fakeGit) CommitFile(_ context.Context, _ githost.Repo, _, path string, content []byte, _ string) error {
	if f.commits == nil {
		f.commits = map[string][]byte{}
	}
	f.commits[path] = content
	return nil
}

func (f *fakeGit) OpenPullRequest(context.Context, githost.Repo, string, string, string, string) (*githost.PullRequest, error) {
	if f.failPR {
		return nil, apierr.New(422, `{"message":"Validation Failed"}`)
	}
	return &githost.PullRequest{Number: 7}, nil
}

func (f *fakeGit) MergePullRequest(_ context.Context, _ githost.Repo, number int, _ string) error {
	f.merged = append(f.merged, number)
	return nil
}

func (f *fakeGit) ListReleases(context.Context, githost.Repo) ([]githost.Release, error) {
	return f.releases, nil
}

func (f *fakeGit) CreateRelease(_ context.Context, _ githost.Repo, tag, _, _, _ string) (*githost.Release, error) {
	r := githost.Release{TagName: tag, HTMLURL: "https://example.org/releases/" + tag}
	f.releases = append(f.releases, r)
	return &r, nil
}

func storeFinal(t *testing.T, env *testEnv, target string) {
	t.Helper()
	p := filepath.Join(env.ctx.WorkDir, buildDir, finalDir, target)
	writeFile(t, p, "<owl>"+target+"</owl>")
	if _, err := env.ctx.StoreArtifact(release.ArtifactFinal, p, target, true); err != nil {
		t.Fatal(err)
	}
}

func TestPreparationDownloadsMatchedSources(t *testing.T) {
	env := newTestEnv(t, twoUnitScript())
	env.ctx.Services.GitHost = &fakeGit{}

	out, err := NewPreparation().Run(env.ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Advances() {
		t.Fatalf("preparation should advance: %v", out.Diagnostics.All())
	}
	data := out.Data.(preparationData)
	if len(data.Files) != 3 || data.Ref != "main" {
		t.Fatalf("data = %+v", data)
	}
	if !fileExists(filepath.Join(env.ctx.SourceRoot, "upper", "b.csv")) {
		t.Fatalf("glob match was not downloaded")
	}
	sources, _ := env.ctx.ArtifactsOf(release.ArtifactSource)
	if len(sources) != 3 {
		t.Fatalf("source artifacts = %d", len(sources))
	}
}

func TestHumanVerificationAlwaysPauses(t *testing.T) {
	env := newTestEnv(t, twoUnitScript())
	storeFinal(t, env, "bcio.owl")

	out, err := NewHumanVerification().Run(env.ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Advances() || !out.Finished() {
		t.Fatalf("human verification must finish its step and pause")
	}
	links := out.Data.([]DownloadLink)
	if len(links) != 1 || links[0].Target != "bcio.owl" || links[0].URL != DownloadURL(links[0].ArtifactID) {
		t.Fatalf("links = %+v", links)
	}
}

func TestGithubPublishTagsDatedRelease(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	env := newTestEnv(t, twoUnitScript())
	gh := &fakeGit{releases: []githost.Release{{TagName: "v2024-05-02"}}}
	env.ctx.Services.GitHost = gh
	storeFinal(t, env, "bcio.owl")
	storeFinal(t, env, "addicto.owl")

	out, err := NewGithubPublish().Run(env.ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Advances() {
		t.Fatalf("publish should advance: %v", out.Diagnostics.All())
	}
	data := out.Data.(PublishData)
	if data.Tag != "v2024-05-02.2" {
		t.Fatalf("tag = %q", data.Tag)
	}
	if len(gh.created) != 1 || gh.created[0] != "release-v2024-05-02.2" {
		t.Fatalf("branches created = %v", gh.created)
	}
	if !bytes.Equal(gh.commits["bcio.owl"], []byte("<owl>bcio.owl</owl>")) || len(gh.commits) != 2 {
		t.Fatalf("commits = %v", gh.commits)
	}
	if len(gh.merged) != 1 || gh.merged[0] != 7 {
		t.Fatalf("merged = %v", gh.merged)
	}
}

func TestGithubPublishTransportErrorPauses(t *testing.T) {
	env := newTestEnv(t, twoUnitScript())
	env.ctx.Services.GitHost = &fakeGit{failPR: true}
	storeFinal(t, env, "bcio.owl")

	out, err := NewGithubPublish().Run(env.ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	errs := out.Diagnostics.OfKind(diagnostics.TransportError)
	if len(errs) != 1 || out.Advances() {
		t.Fatalf("expected a transport error pause, got %v", out.Diagnostics.All())
	}
}

func TestGithubPublishHonoursCancellation(t *testing.T) {
	env := newTestEnv(t, twoUnitScript())
	env.ctx.Services.GitHost = &fakeGit{}
	storeFinal(t, env, "bcio.owl")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.ctx.Ctx = ctx

	_, err := NewGithubPublish().Run(env.ctx)
	if !errors.Is(err, runtime.ErrCanceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

type fakeBucket struct{ objects map[string][]byte }

func (b *fakeBucket) Upload(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) Download(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.objects[key])), nil
}

func (b *fakeBucket) ListKeys(context.Context, string) ([]string, error) { return nil, nil }

func (b *fakeBucket) ObjectKey(repository, rel, name string) string {
	return repository + "/" + rel + "/" + name
}

func (b *fakeBucket) PublicURL(key string) string { return "https://storage.example/" + key }

func TestBucketPublishUploadsFinals(t *testing.T) {
	env := newTestEnv(t, twoUnitScript())
	bucket := &fakeBucket{objects: map[string][]byte{}}
	env.ctx.Services.Bucket = bucket
	storeFinal(t, env, "bcio.owl")

	out, err := NewBucketPublish().Run(env.ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ups := out.Data.([]UploadedObject)
	key := "bcio/" + env.ctx.ReleaseID().String() + "/bcio.owl"
	if len(ups) != 1 || ups[0].Key != key || string(bucket.objects[key]) != "<owl>bcio.owl</owl>" {
		t.Fatalf("uploads = %+v", ups)
	}
}
