package steps

import (
	"os"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
)

// BucketPublish uploads the final artifacts to the object store.
type BucketPublish struct{}

func NewBucketPublish() runtime.Step { return &BucketPublish{} }

func (*BucketPublish) Name() string { return NameBucketPublish }

func (*BucketPublish) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapObjectStore}
}

type UploadedObject struct {
	Target string `json:"target"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

func (s *BucketPublish) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	bucket := ctx.Services.Bucket
	finals, err := ctx.ArtifactsOf(release.ArtifactFinal)
	if err != nil {
		return runtime.Result{}, err
	}
	repo := ctx.Script.ShortRepositoryName
	if ctx.Release != nil {
		repo = ctx.Release.RepositoryKey
	}
	var uploaded []UploadedObject
	for _, a := range finals {
		if err := ctx.CheckCanceled(); err != nil {
			return runtime.Result{}, err
		}
		f, err := os.Open(a.LocalPath)
		if err != nil {
			res.Add(diagnostics.New(diagnostics.SourceMissing, term.Identifier{}, term.Origin{File: a.LocalPath},
				"final artifact %s is missing: %v", a.Target(), err))
			continue
		}
		key := bucket.ObjectKey(repo, ctx.ReleaseID().String(), a.Target())
		err = bucket.Upload(ctx.Ctx, key, f)
		f.Close()
		if err != nil {
			d, cerr := transportDiagnostic(ctx, "upload "+key, err)
			if cerr != nil {
				return runtime.Result{}, cerr
			}
			res.Add(d)
			continue
		}
		uploaded = append(uploaded, UploadedObject{Target: a.Target(), Key: key, URL: bucket.PublicURL(key)})
		ctx.Heartbeat()
	}
	out := runtime.Continue(res)
	out.Data = uploaded
	if res.HasErrors() {
		out.Message = "some artifacts could not be uploaded"
	}
	return out, nil
}
