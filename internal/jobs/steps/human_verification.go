package steps

import (
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
)

// HumanVerification lists the final artifacts for download and always
// pauses until an operator continues the release. The step itself is done
// once it pauses, so continuing starts the step after it.
type HumanVerification struct{}

func NewHumanVerification() runtime.Step { return &HumanVerification{} }

func (*HumanVerification) Name() string { return NameHumanVerification }

type DownloadLink struct {
	ArtifactID string `json:"artifact_id"`
	File       string `json:"file"`
	Target     string `json:"target"`
	URL        string `json:"url"`
}

// DownloadURL is the API path an artifact is served from.
func DownloadURL(id string) string { return "/api/artifacts/" + id + "/download" }

func (s *HumanVerification) Run(ctx *runtime.Context) (runtime.Result, error) {
	finals, err := ctx.ArtifactsOf(release.ArtifactFinal)
	if err != nil {
		return runtime.Result{}, err
	}
	links := make([]DownloadLink, 0, len(finals))
	for _, a := range finals {
		links = append(links, DownloadLink{
			ArtifactID: a.ID.String(),
			File:       a.FileName(),
			Target:     a.Target(),
			URL:        DownloadURL(a.ID.String()),
		})
	}
	out := runtime.PauseAfterStep(diagnostics.Result{}, "review the release artifacts, then continue")
	out.Data = links
	return out, nil
}
