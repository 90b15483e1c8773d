package steps

import (
	"os"
	"path/filepath"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/githost"
)

// Preparation downloads every source and side file the script references
// into the release's source root.
type Preparation struct{}

func NewPreparation() runtime.Step { return &Preparation{} }

func (*Preparation) Name() string { return NamePreparation }

func (*Preparation) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapSourceControl}
}

type preparationData struct {
	Ref   string   `json:"ref"`
	Files []string `json:"files"`
}

func (p *Preparation) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	gh := ctx.Services.GitHost
	repo := githost.Repo(ctx.Script.FullRepositoryName)

	ref := ctx.ArgString("ref", "")
	if ref == "" {
		branch, err := gh.DefaultBranch(ctx.Ctx, repo)
		if err != nil {
			d, cerr := transportDiagnostic(ctx, "default branch lookup", err)
			if cerr != nil {
				return runtime.Result{}, cerr
			}
			res.Add(d)
			return runtime.Pause(res, "could not reach the repository"), nil
		}
		ref = branch
	}

	tree, err := gh.ListTree(ctx.Ctx, repo, ref)
	if err != nil {
		d, cerr := transportDiagnostic(ctx, "tree listing", err)
		if cerr != nil {
			return runtime.Result{}, cerr
		}
		res.Add(d)
		return runtime.Pause(res, "could not list repository files"), nil
	}

	root := sourceRoot(ctx)
	data := preparationData{Ref: ref}
	fetched := map[string]bool{}
	for _, pattern := range referencedFiles(ctx.Script) {
		paths := matchTree(pattern, tree)
		if len(paths) == 0 {
			res.Add(diagnostics.New(diagnostics.SourceMissing, term.Identifier{}, term.Origin{File: pattern},
				"%s not found on %s", pattern, ref))
			continue
		}
		for _, path := range paths {
			if fetched[path] {
				continue
			}
			if err := ctx.CheckCanceled(); err != nil {
				return runtime.Result{}, err
			}
			f, err := gh.GetFile(ctx.Ctx, repo, path, ref)
			if err != nil {
				d, cerr := transportDiagnostic(ctx, "download "+path, err)
				if cerr != nil {
					return runtime.Result{}, cerr
				}
				res.Add(d)
				continue
			}
			local := filepath.Join(root, filepath.FromSlash(path))
			if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
				return runtime.Result{}, err
			}
			if err := os.WriteFile(local, f.Content, 0o644); err != nil {
				return runtime.Result{}, err
			}
			if _, err := ctx.StoreArtifact(release.ArtifactSource, local, "", false); err != nil {
				return runtime.Result{}, err
			}
			fetched[path] = true
			data.Files = append(data.Files, path)
			ctx.Heartbeat()
		}
	}
	ctx.Log.Info("sources downloaded", "ref", ref, "files", len(data.Files))
	out := runtime.Continue(res)
	out.Data = data
	return out, nil
}
