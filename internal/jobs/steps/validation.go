package steps

import (
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/platform/searchindex"
)

// Validation builds every unit's aggregate in dependency order and reports
// what it finds. Duplicates are checked once over the union of all units.
type Validation struct{}

func NewValidation() runtime.Step { return &Validation{} }

func (*Validation) Name() string { return NameValidation }

type UnitSummary struct {
	Unit     string `json:"unit"`
	Terms    int    `json:"terms"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

type ValidationData struct {
	Order []string      `json:"order"`
	Units []UnitSummary `json:"units"`
	// IndexGeneration is set when the term search index was refreshed.
	IndexGeneration uint64 `json:"index_generation,omitempty"`
}

func (v *Validation) Run(ctx *runtime.Context) (runtime.Result, error) {
	res, data, err := Validate(ctx)
	if err != nil {
		return runtime.Result{}, err
	}
	out := runtime.Continue(res)
	out.Data = data
	if res.HasErrors() {
		out.Message = "validation found errors"
	}
	return out, nil
}

// Validate runs the validation pass on its own. The offline CLI calls it
// directly with a context over a local checkout.
func Validate(ctx *runtime.Context) (diagnostics.Result, ValidationData, error) {
	var data ValidationData
	w, err := newWorkspace(ctx)
	if err != nil {
		var res diagnostics.Result
		res.Add(diagnostics.New(diagnostics.InvalidScript, term.Identifier{}, term.Origin{}, "%v", err))
		return res, data, nil
	}
	data.Order = w.order

	res, err := w.loadExternal()
	if err != nil {
		return res, data, err
	}
	perUnit := diagnostics.Filter{Exclude: []diagnostics.Kind{diagnostics.Duplicate}}
	for _, name := range w.order {
		o, err := w.loadUnit(name)
		if err != nil {
			return res, data, err
		}
		unitRes := *w.perUnit[name]
		unitRes.Merge(o.Validate(perUnit))
		res.Merge(unitRes)
		data.Units = append(data.Units, UnitSummary{
			Unit:     name,
			Terms:    len(o.LocalTerms()),
			Errors:   len(unitRes.Errors),
			Warnings: len(unitRes.Warnings),
		})
		ctx.Log.Debug("unit validated", "unit", name, "errors", len(unitRes.Errors), "warnings", len(unitRes.Warnings))
	}

	w.global.Resolve()
	res.Merge(w.global.Validate(diagnostics.Filter{Only: []diagnostics.Kind{diagnostics.Duplicate}}))
	res.Sort()

	if ctx.Has(runtime.CapSearchIndex) && ctx.Release != nil {
		data.IndexGeneration = ctx.Services.Index.ReplaceRepository(
			ctx.Release.RepositoryKey, searchindex.FromTerms(w.global.Terms()))
	}
	return res, data, nil
}
