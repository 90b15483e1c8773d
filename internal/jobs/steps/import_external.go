package steps

import (
	"os"
	"path/filepath"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/robot"
)

// ImportExternal extracts every declared import and merges the fragments
// into one OWL file that later builds read labels from.
type ImportExternal struct{}

func NewImportExternal() runtime.Step { return &ImportExternal{} }

func (*ImportExternal) Name() string { return NameImportExternal }

func (*ImportExternal) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapBuildTool}
}

type ImportData struct {
	Output  string   `json:"output,omitempty"`
	Imports []string `json:"imports,omitempty"`
	Reused  bool     `json:"reused,omitempty"`
	// Empty is set when no import had terms to extract and no file was written.
	Empty bool `json:"empty,omitempty"`
}

func (s *ImportExternal) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	if !hasExternalImports(ctx) {
		out := runtime.Continue(res)
		out.Message = "no external imports declared"
		return out, nil
	}
	output := externalOutput(ctx)
	data := ImportData{Output: output}

	if ctx.ArgBool("reuse", true) && fileExists(output) {
		if a, err := ctx.FindArtifact(output); err == nil && a != nil {
			data.Reused = true
			out := runtime.Continue(res)
			out.Data = data
			return out, nil
		}
	}

	srcs, missing := expandSources(sourceRoot(ctx), ctx.Script.External.Sources)
	res.Merge(missing)
	var owl []string
	for _, src := range srcs {
		if src.Type == release.SourceOWL {
			owl = append(owl, filepath.Join(sourceRoot(ctx), filepath.FromSlash(src.File)))
		}
	}

	var parts []string
	if len(owl) > 0 {
		parts = owl
	} else {
		w, err := newWorkspace(ctx)
		if err != nil {
			res.Add(diagnostics.New(diagnostics.InvalidScript, term.Identifier{}, term.Origin{}, "%v", err))
			return runtime.Pause(res, "release script is invalid"), nil
		}
		extRes, err := w.loadExternal()
		res.Merge(extRes)
		if err != nil {
			return runtime.Result{}, err
		}
		if res.HasErrors() {
			return runtime.Pause(res, "import declarations have errors"), nil
		}
		workDir := filepath.Join(ctx.WorkDir, buildDir, "imports")
		for _, imp := range w.external.Imports() {
			if err := ctx.CheckCanceled(); err != nil {
				return runtime.Result{}, err
			}
			lower := lowerTerms(imp)
			if len(lower) == 0 {
				continue
			}
			part, err := ctx.Path(buildDir, "imports", imp.ID+".owl")
			if err != nil {
				return runtime.Result{}, err
			}
			err = ctx.Services.Robot.Extract(ctx.Ctx, robot.ExtractRequest{
				InputIRI:      imp.IRI,
				UpperTerm:     imp.Root.ID,
				LowerTerms:    lower,
				Intermediates: robot.Intermediates(imp.Intermediates),
				Output:        part,
				Work:          workDir,
			})
			if err != nil {
				d, cerr := toolDiagnostic(ctx, "import "+imp.ID, err)
				if cerr != nil {
					return runtime.Result{}, cerr
				}
				res.Add(d)
				continue
			}
			parts = append(parts, part)
			data.Imports = append(data.Imports, imp.ID)
			ctx.Heartbeat()
		}
	}
	if res.HasErrors() {
		return runtime.Pause(res, "external imports could not be extracted"), nil
	}
	if len(parts) == 0 {
		data.Empty = true
		out := runtime.Continue(res)
		out.Message = "no import terms to extract"
		out.Data = data
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return runtime.Result{}, err
	}
	if len(parts) == 1 && len(owl) == 1 {
		if err := copyFile(parts[0], output); err != nil {
			return runtime.Result{}, err
		}
		data.Reused = true
	} else {
		target := ctx.Script.External.Target
		err := ctx.Services.Robot.Merge(ctx.Ctx, robot.MergeRequest{
			Inputs:      parts,
			OntologyIRI: target.IRI,
			Annotations: target.OntologyAnnotations,
			Output:      output,
		})
		if err != nil {
			d, cerr := toolDiagnostic(ctx, "merge external imports", err)
			if cerr != nil {
				return runtime.Result{}, cerr
			}
			res.Add(d)
			return runtime.Pause(res, "external imports could not be merged"), nil
		}
	}
	if _, err := ctx.StoreArtifact(release.ArtifactIntermediate, output, "", true); err != nil {
		return runtime.Result{}, err
	}
	out := runtime.Continue(res)
	out.Data = data
	return out, nil
}

func lowerTerms(imp *term.Import) []string {
	var out []string
	for _, t := range imp.ImportedTerms {
		if t.ID != "" && imp.Includes(t) {
			out = append(out, t.ID)
		}
	}
	return out
}
