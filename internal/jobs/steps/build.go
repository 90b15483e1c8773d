package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/ontorelease/internal/buildorder"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/ontology"
	"github.com/yungbote/ontorelease/internal/platform/robot"
)

// Build turns each unit into an OWL file. Units of one wave do not depend
// on each other and are built concurrently.
type Build struct{}

func NewBuild() runtime.Step { return &Build{} }

func (*Build) Name() string { return NameBuild }

func (*Build) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapBuildTool}
}

type BuiltUnit struct {
	Unit   string   `json:"unit"`
	Output string   `json:"output"`
	Inputs []string `json:"inputs,omitempty"`
}

type BuildData struct {
	Waves [][]string  `json:"waves"`
	Units []BuiltUnit `json:"units"`
}

func (s *Build) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	w, err := newWorkspace(ctx)
	if err != nil {
		res.Add(diagnostics.New(diagnostics.InvalidScript, term.Identifier{}, term.Origin{}, "%v", err))
		return runtime.Pause(res, "release script is invalid"), nil
	}
	extRes, err := w.loadAll()
	if err != nil {
		return runtime.Result{}, err
	}
	res.Merge(extRes)
	for _, name := range w.order {
		res.Merge(*w.perUnit[name])
	}
	if res.HasErrors() {
		return runtime.Pause(res, "sources could not be read"), nil
	}
	if err := requireExternal(ctx, w); err != nil {
		return runtime.Result{}, err
	}

	data := BuildData{Waves: buildorder.Waves(w.order, ctx.Script.Files)}
	prefixes := w.prefixes()
	var mu sync.Mutex
	for _, wave := range data.Waves {
		g, gctx := errgroup.WithContext(ctx.Ctx)
		g.SetLimit(argInt(ctx, "parallelism", 4))
		for _, name := range wave {
			name := name
			g.Go(func() error {
				if err := ctx.CheckCanceled(); err != nil {
					return err
				}
				b := unitBuild{ctx: ctx, w: w, name: name, prefixes: prefixes}
				built, d, err := b.run(gctx)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if d != nil {
					res.Add(*d)
					return nil
				}
				data.Units = append(data.Units, built)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return runtime.Result{}, err
		}
		ctx.Heartbeat()
		if res.HasErrors() {
			out := runtime.Pause(res, "build failed")
			out.Data = data
			return out, nil
		}
	}

	out := runtime.Continue(res)
	out.Data = data
	return out, nil
}

type unitBuild struct {
	ctx      *runtime.Context
	w        *workspace
	name     string
	prefixes map[string]string
}

// run builds one unit. A returned diagnostic means the unit failed without
// the release being at fault.
func (b unitBuild) run(gctx context.Context) (BuiltUnit, *diagnostics.Diagnostic, error) {
	ctx := b.ctx
	unit := ctx.Script.Files[b.name]
	output := unitOutput(ctx, b.name)
	built := BuiltUnit{Unit: b.name, Output: output}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return built, nil, err
	}

	if unit.OnlyOWL() {
		srcs, missing := expandSources(sourceRoot(ctx), unit.Sources)
		if missing.HasErrors() {
			d := missing.Errors[0]
			return built, &d, nil
		}
		for _, src := range srcs {
			built.Inputs = append(built.Inputs, filepath.Join(sourceRoot(ctx), filepath.FromSlash(src.File)))
		}
		if len(built.Inputs) == 1 {
			if err := copyFile(built.Inputs[0], output); err != nil {
				return built, nil, err
			}
		} else if err := ctx.Services.Robot.Merge(gctx, robot.MergeRequest{
			Inputs:      built.Inputs,
			OntologyIRI: unit.Target.IRI,
			Annotations: unit.Target.OntologyAnnotations,
			Output:      output,
		}); err != nil {
			d, cerr := toolDiagnostic(ctx, "unit "+b.name, err)
			if cerr != nil {
				return built, nil, cerr
			}
			return built, &d, nil
		}
	} else {
		tmpl, err := ctx.Path(buildDir, "templates", b.name+".csv")
		if err != nil {
			return built, nil, err
		}
		if d := writeTemplateFile(tmpl, b.w.units[b.name]); d != nil {
			return built, d, nil
		}
		for _, dep := range buildorder.Closure(b.name, ctx.Script.Files) {
			if dep == b.name {
				continue
			}
			if p := unitOutput(ctx, dep); fileExists(p) {
				built.Inputs = append(built.Inputs, p)
			}
		}
		if p := externalOutput(ctx); fileExists(p) {
			built.Inputs = append(built.Inputs, p)
		}
		err = ctx.Services.Robot.Template(gctx, robot.TemplateRequest{
			Template:    tmpl,
			Prefixes:    b.prefixes,
			Inputs:      built.Inputs,
			OntologyIRI: unit.Target.IRI,
			Annotations: unit.Target.OntologyAnnotations,
			Output:      output,
		})
		if err != nil {
			d, cerr := toolDiagnostic(ctx, "unit "+b.name, err)
			if cerr != nil {
				return built, nil, cerr
			}
			return built, &d, nil
		}
	}

	if _, err := ctx.StoreArtifact(release.ArtifactIntermediate, output, "", true); err != nil {
		return built, nil, err
	}
	ctx.Log.Info("unit built", "unit", b.name, "output", output)
	return built, nil, nil
}

// requireExternal fails when imports declare terms to extract but
// ImportExternal has not written the merged file.
func requireExternal(ctx *runtime.Context, w *workspace) error {
	if !w.expectsExternal() || fileExists(externalOutput(ctx)) {
		return nil
	}
	return fmt.Errorf("%w: %s (run %s first)", runtime.ErrMissingPrerequisite,
		filepath.Base(externalOutput(ctx)), NameImportExternal)
}

// writeTemplateFile writes the unit's local records as a template. An
// unresolved record comes back as a diagnostic.
func writeTemplateFile(path string, o *ontology.Ontology) *diagnostics.Diagnostic {
	f, err := os.Create(path)
	if err != nil {
		d := diagnostics.New(diagnostics.ToolFailure, term.Identifier{}, term.Origin{File: path}, "create template: %v", err)
		return &d
	}
	defer f.Close()
	err = ontology.WriteTemplate(f, o, ontology.TemplateOptions{OnlyLocal: true})
	if err == nil {
		return nil
	}
	var ie *term.IncompleteError
	if errors.As(err, &ie) {
		d := diagnostics.New(diagnostics.IncompleteTerm, ie.Subject, ie.Origin, "%v", err)
		return &d
	}
	d := diagnostics.New(diagnostics.ToolFailure, term.Identifier{}, term.Origin{File: path}, "write template: %v", err)
	return &d
}

func argInt(ctx *runtime.Context, key string, def int) int {
	switch v := ctx.Args[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}
