package steps

import (
	"github.com/yungbote/ontorelease/internal/data/graph"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
)

// GraphExport writes the resolved terms and their subclass edges to the
// graph store.
type GraphExport struct{}

func NewGraphExport() runtime.Step { return &GraphExport{} }

func (*GraphExport) Name() string { return NameGraphExport }

func (*GraphExport) Requires() []runtime.Capability {
	return []runtime.Capability{runtime.CapGraphStore}
}

type GraphData struct {
	Terms     int `json:"terms"`
	Relations int `json:"relations"`
	Skipped   int `json:"skipped"`
}

func (s *GraphExport) Run(ctx *runtime.Context) (runtime.Result, error) {
	var res diagnostics.Result
	w, err := newWorkspace(ctx)
	if err != nil {
		res.Add(diagnostics.New(diagnostics.InvalidScript, term.Identifier{}, term.Origin{}, "%v", err))
		return runtime.Pause(res, "release script is invalid"), nil
	}
	if _, err := w.loadAll(); err != nil {
		return runtime.Result{}, err
	}

	var (
		data      GraphData
		terms     []term.Term
		relations []term.Relation
	)
	for _, name := range w.order {
		o := w.units[name]
		for _, d := range o.LocalTerms() {
			t, err := d.Resolve()
			if err != nil {
				data.Skipped++
				continue
			}
			terms = append(terms, t)
		}
		for _, d := range o.LocalRelations() {
			if d.PropertyType == term.Internal {
				continue
			}
			r, err := d.Resolve()
			if err != nil {
				data.Skipped++
				continue
			}
			relations = append(relations, r)
		}
	}
	if err := ctx.CheckCanceled(); err != nil {
		return runtime.Result{}, err
	}
	repo := ctx.Script.FullRepositoryName
	if ctx.Release != nil {
		repo = ctx.Release.RepositoryKey
	}
	if err := graph.UpsertOntologyGraph(ctx.Ctx, ctx.Services.Graph, ctx.Log, repo, ctx.ReleaseID().String(), terms, relations); err != nil {
		if c := canceled(ctx.Ctx, err); c != nil {
			return runtime.Result{}, c
		}
		return runtime.Result{}, err
	}
	data.Terms, data.Relations = len(terms), len(relations)
	out := runtime.Continue(res)
	out.Data = data
	return out, nil
}
