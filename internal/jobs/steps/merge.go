package steps

import (
	"fmt"
	"path/filepath"

	"github.com/yungbote/ontorelease/internal/buildorder"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/robot"
)

// Merge produces the final artifacts. With a "merge" argument it combines
// selected units into named files; with "collapse" it inlines the import
// closure of the listed units. Without arguments every unit is collapsed
// into its own target file.
type Merge struct{}

func NewMerge() runtime.Step { return &Merge{} }

func (*Merge) Name() string { return NameMerge }

func (*Merge) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapBuildTool}
}

// MergeSpec is one entry of the "merge" argument.
type MergeSpec struct {
	File        string            `json:"file"`
	IRI         string            `json:"iri"`
	Units       []string          `json:"units"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type FinalArtifact struct {
	Target string   `json:"target"`
	Output string   `json:"output"`
	Inputs []string `json:"inputs"`
}

func (s *Merge) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	var specs []MergeSpec
	if _, err := ctx.DecodeArg("merge", &specs); err != nil {
		res.Add(diagnostics.New(diagnostics.InvalidScript, term.Identifier{}, term.Origin{}, "%v", err))
		return runtime.Pause(res, "merge arguments are invalid"), nil
	}
	plans, err := s.plan(ctx, specs)
	if err != nil {
		return runtime.Result{}, err
	}

	var finals []FinalArtifact
	for _, p := range plans {
		if err := ctx.CheckCanceled(); err != nil {
			return runtime.Result{}, err
		}
		output, err := ctx.Path(buildDir, finalDir, filepath.FromSlash(p.spec.File))
		if err != nil {
			return runtime.Result{}, err
		}
		err = ctx.Services.Robot.Merge(ctx.Ctx, robot.MergeRequest{
			Inputs:      p.inputs,
			OntologyIRI: p.spec.IRI,
			Annotations: p.spec.Annotations,
			Collapse:    true,
			Output:      output,
		})
		if err != nil {
			d, cerr := toolDiagnostic(ctx, "merge "+p.spec.File, err)
			if cerr != nil {
				return runtime.Result{}, cerr
			}
			res.Add(d)
			continue
		}
		if _, err := ctx.StoreArtifact(release.ArtifactFinal, output, p.spec.File, true); err != nil {
			return runtime.Result{}, err
		}
		finals = append(finals, FinalArtifact{Target: p.spec.File, Output: output, Inputs: p.inputs})
		ctx.Heartbeat()
	}
	if res.HasErrors() {
		out := runtime.Pause(res, "merge failed")
		out.Data = finals
		return out, nil
	}
	out := runtime.Continue(res)
	out.Data = finals
	return out, nil
}

type mergePlan struct {
	spec   MergeSpec
	inputs []string
}

func (s *Merge) plan(ctx *runtime.Context, specs []MergeSpec) ([]mergePlan, error) {
	files := ctx.Script.Files
	var plans []mergePlan
	if len(specs) > 0 {
		for _, spec := range specs {
			if spec.File == "" || len(spec.Units) == 0 {
				return nil, fmt.Errorf("merge entry needs a file and at least one unit")
			}
			var inputs []string
			for _, u := range spec.Units {
				in, err := builtInput(ctx, u)
				if err != nil {
					return nil, err
				}
				inputs = append(inputs, in)
			}
			plans = append(plans, mergePlan{spec: spec, inputs: inputs})
		}
		return plans, nil
	}

	units := ctx.ArgStrings("collapse")
	if len(units) == 0 {
		order, err := buildorder.OrderSources(files)
		if err != nil {
			return nil, err
		}
		units = order
	}
	for _, name := range units {
		unit, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("collapse: unknown unit %q", name)
		}
		var inputs []string
		for _, dep := range buildorder.Closure(name, files) {
			in, err := builtInput(ctx, dep)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, in)
		}
		if p := externalOutput(ctx); hasExternalImports(ctx) && fileExists(p) {
			inputs = append(inputs, p)
		}
		plans = append(plans, mergePlan{
			spec: MergeSpec{
				File:        unit.Target.File,
				IRI:         unit.Target.IRI,
				Units:       []string{name},
				Annotations: unit.Target.OntologyAnnotations,
			},
			inputs: inputs,
		})
	}
	return plans, nil
}

// builtInput is the built file of a unit; its absence means Build never ran.
func builtInput(ctx *runtime.Context, unit string) (string, error) {
	if _, ok := ctx.Script.Files[unit]; !ok {
		return "", fmt.Errorf("merge: unknown unit %q", unit)
	}
	p := unitOutput(ctx, unit)
	if !fileExists(p) {
		return "", fmt.Errorf("%w: %s (run %s first)", runtime.ErrMissingPrerequisite, filepath.Base(p), NameBuild)
	}
	return p, nil
}
