package steps

import (
	"fmt"
	"os"
	"time"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/githost"
)

var now = time.Now

// GithubPublish commits the final artifacts on a new branch, merges it
// through a pull request and tags a dated release.
type GithubPublish struct{}

func NewGithubPublish() runtime.Step { return &GithubPublish{} }

func (*GithubPublish) Name() string { return NameGithubPublish }

func (*GithubPublish) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapSourceControl}
}

type PublishData struct {
	Tag         string   `json:"tag"`
	Branch      string   `json:"branch"`
	Files       []string `json:"files"`
	PullRequest int      `json:"pull_request,omitempty"`
	ReleaseURL  string   `json:"release_url,omitempty"`
}

func (s *GithubPublish) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	gh := ctx.Services.GitHost
	repo := githost.Repo(ctx.Script.FullRepositoryName)
	data := PublishData{}

	finals, err := ctx.ArtifactsOf(release.ArtifactFinal)
	if err != nil {
		return runtime.Result{}, err
	}
	if len(finals) == 0 {
		return runtime.Result{}, fmt.Errorf("%w: no final artifacts (run %s first)", runtime.ErrMissingPrerequisite, NameMerge)
	}

	// fail records a transport failure and pauses the release.
	fail := func(what string, err error) (runtime.Result, error) {
		d, cerr := transportDiagnostic(ctx, what, err)
		if cerr != nil {
			return runtime.Result{}, cerr
		}
		res.Add(d)
		out := runtime.Pause(res, what+" failed")
		out.Data = data
		return out, nil
	}

	base := ctx.ArgString("base", "")
	if base == "" {
		if base, err = gh.DefaultBranch(ctx.Ctx, repo); err != nil {
			return fail("default branch lookup", err)
		}
	}
	existing, err := gh.ListReleases(ctx.Ctx, repo)
	if err != nil {
		return fail("release listing", err)
	}
	data.Tag = githost.NextReleaseTag(now(), existing)
	data.Branch = ctx.ArgString("branch_prefix", "release-") + data.Tag

	branches, err := gh.ListBranches(ctx.Ctx, repo)
	if err != nil {
		return fail("branch listing", err)
	}
	if !contains(branches, data.Branch) {
		if err := gh.CreateBranch(ctx.Ctx, repo, data.Branch, base); err != nil {
			return fail("branch creation", err)
		}
	}

	message := ctx.ArgString("commit_message", "Release "+data.Tag)
	for _, a := range finals {
		if err := ctx.CheckCanceled(); err != nil {
			return runtime.Result{}, err
		}
		content, err := os.ReadFile(a.LocalPath)
		if err != nil {
			return runtime.Result{}, fmt.Errorf("%w: %s", runtime.ErrMissingPrerequisite, a.LocalPath)
		}
		if err := gh.CommitFile(ctx.Ctx, repo, data.Branch, a.Target(), content, message); err != nil {
			return fail("upload "+a.Target(), err)
		}
		data.Files = append(data.Files, a.Target())
		ctx.Heartbeat()
	}

	if err := ctx.CheckCanceled(); err != nil {
		return runtime.Result{}, err
	}
	pr, err := gh.OpenPullRequest(ctx.Ctx, repo, data.Branch, base, "Release "+data.Tag, releaseBody(data))
	if err != nil {
		return fail("pull request", err)
	}
	data.PullRequest = pr.Number
	if err := gh.MergePullRequest(ctx.Ctx, repo, pr.Number, message); err != nil {
		return fail("pull request merge", err)
	}
	rel, err := gh.CreateRelease(ctx.Ctx, repo, data.Tag, data.Tag, base, releaseBody(data))
	if err != nil {
		return fail("release creation", err)
	}
	data.ReleaseURL = rel.HTMLURL
	ctx.Log.Info("release published", "tag", data.Tag, "files", len(data.Files))

	out := runtime.Continue(res)
	out.Data = data
	return out, nil
}

func releaseBody(d PublishData) string {
	body := "Released files:\n"
	for _, f := range d.Files {
		body += "- " + f + "\n"
	}
	return body
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
