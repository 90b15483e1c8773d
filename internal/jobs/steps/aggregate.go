package steps

import (
	"path/filepath"
	"strings"

	"github.com/yungbote/ontorelease/internal/buildorder"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/ontology"
	"github.com/yungbote/ontorelease/internal/platform/sheet"
)

// workspace assembles Ontology aggregates for the units of a script, in
// dependency order, from the files under the source root.
type workspace struct {
	ctx    *runtime.Context
	script *release.Script
	policy ontology.Policy

	order    []string
	external *ontology.Ontology
	units    map[string]*ontology.Ontology
	// global holds a copy of every unit's own records, taken after the
	// unit's side files were applied.
	global *ontology.Ontology
	// perUnit keeps the findings of sheet reading for each unit.
	perUnit map[string]*diagnostics.Result
}

func newWorkspace(ctx *runtime.Context) (*workspace, error) {
	order, err := buildorder.OrderSources(ctx.Script.Files)
	if err != nil {
		return nil, err
	}
	policy := ontology.DefaultPolicy()
	if ctx.Services != nil && (ctx.Services.Policy.Discard != nil || ctx.Services.Policy.Ignore != nil) {
		policy = ctx.Services.Policy
	}
	return &workspace{
		ctx:      ctx,
		script:   ctx.Script,
		policy:   policy,
		order:    order,
		units:    map[string]*ontology.Ontology{},
		global:   ontology.New(policy),
		perUnit:  map[string]*diagnostics.Result{},
	}, nil
}

func (w *workspace) readTable(file string, res *diagnostics.Result) *sheet.Table {
	t, err := sheet.ReadFile(filepath.Join(sourceRoot(w.ctx), filepath.FromSlash(file)))
	if err != nil {
		res.Add(diagnostics.New(diagnostics.UnreadableSheet, term.Identifier{}, term.Origin{File: file},
			"cannot read %s: %v", file, err))
		return nil
	}
	t.File = file
	return t
}

// loadExternal ingests the import sheets of the external unit.
func (w *workspace) loadExternal() (diagnostics.Result, error) {
	var res diagnostics.Result
	w.external = ontology.New(w.policy)
	if len(w.script.External.Sources) == 0 {
		return res, nil
	}
	srcs, missing := expandSources(sourceRoot(w.ctx), w.script.External.Sources)
	res.Merge(missing)
	for _, src := range srcs {
		if src.Type == release.SourceOWL {
			continue
		}
		if err := w.ctx.CheckCanceled(); err != nil {
			return res, err
		}
		if t := w.readTable(src.File, &res); t != nil {
			w.external.IngestImportSheet(t)
		}
	}
	res.Merge(w.external.Validate(diagnostics.Filter{Only: []diagnostics.Kind{
		diagnostics.InconsistentImport, diagnostics.MissingImport, diagnostics.UnknownColumn,
	}}))
	return res, nil
}

// expectsExternal reports whether ImportExternal writes a merged file: an
// OWL source is declared or some import has terms to extract. Call it after
// loadExternal.
func (w *workspace) expectsExternal() bool {
	for _, src := range w.script.External.Sources {
		if src.Type == release.SourceOWL {
			return true
		}
	}
	if w.external == nil {
		return false
	}
	for _, imp := range w.external.Imports() {
		if len(lowerTerms(imp)) > 0 {
			return true
		}
	}
	return false
}

// loadUnit builds the aggregate of one unit from the external imports, the
// already loaded dependencies and its own sheets, then resolves it.
func (w *workspace) loadUnit(name string) (*ontology.Ontology, error) {
	unit := w.script.Files[name]
	res := &diagnostics.Result{}
	w.perUnit[name] = res

	o := ontology.New(w.policy)
	if w.external != nil {
		o.Merge(w.external)
	}
	for _, need := range unit.Needs {
		if dep, ok := w.units[need]; ok {
			o.Merge(dep)
		}
	}

	srcs, missing := expandSources(sourceRoot(w.ctx), unit.Sources)
	res.Merge(missing)
	for _, src := range srcs {
		if err := w.ctx.CheckCanceled(); err != nil {
			return nil, err
		}
		w.ctx.Heartbeat()
		var t *sheet.Table
		switch src.Type {
		case release.SourceClasses:
			if t = w.readTable(src.File, res); t != nil {
				o.IngestTermSheet(t)
			}
		case release.SourceRelations:
			if t = w.readTable(src.File, res); t != nil {
				o.IngestRelationSheet(t)
			}
		}
	}
	if unit.AddParentsFile != nil {
		if t := w.readTable(*unit.AddParentsFile, res); t != nil {
			applyAddParents(o, t, res)
		}
	}
	if unit.RenameTermFile != nil {
		if t := w.readTable(*unit.RenameTermFile, res); t != nil {
			applyRenames(o, t, res)
		}
	}
	o.Resolve()
	w.units[name] = o
	w.global.AdoptLocal(o)
	return o, nil
}

// loadAll loads the external imports and then every unit in order.
func (w *workspace) loadAll() (diagnostics.Result, error) {
	res, err := w.loadExternal()
	if err != nil {
		return res, err
	}
	for _, name := range w.order {
		if _, err := w.loadUnit(name); err != nil {
			return res, err
		}
	}
	return res, nil
}

// prefixes combines the script prefixes with those declared by imports.
func (w *workspace) prefixes() map[string]string {
	out := map[string]string{}
	if w.external != nil {
		for _, imp := range w.external.Imports() {
			for _, p := range imp.Prefixes {
				out[p.Prefix] = p.Expansion
			}
		}
	}
	for k, v := range w.script.Prefixes {
		out[k] = v
	}
	return out
}

func applyAddParents(o *ontology.Ontology, t *sheet.Table, res *diagnostics.Result) {
	for _, row := range t.Rows {
		id := term.Identifier{ID: row.Get("ID"), Label: row.Get("Label")}
		target := o.FindTerm(id)
		if target == nil {
			res.Add(diagnostics.New(diagnostics.UnknownParent, id, term.Origin{File: t.File, Row: row.Number},
				"term %s in the add-parents file is not defined", id.String()))
			continue
		}
		for _, p := range splitCell(row.Get("Parent")) {
			ref := term.ParseReference(p)
			dup := false
			for _, have := range target.SubClassOf {
				if have.Same(ref) {
					dup = true
				}
			}
			if !dup {
				target.SubClassOf = append(target.SubClassOf, ref)
			}
		}
	}
}

func applyRenames(o *ontology.Ontology, t *sheet.Table, res *diagnostics.Result) {
	for _, row := range t.Rows {
		id := term.Identifier{ID: row.Get("ID")}
		label := row.Get("New label")
		if label == "" {
			label = row.Get("Label")
		}
		if id.ID == "" || label == "" {
			continue
		}
		target := o.FindTerm(id)
		if target == nil {
			res.Add(diagnostics.New(diagnostics.MissingID, id, term.Origin{File: t.File, Row: row.Number},
				"term %s in the rename file is not defined", id.ID))
			continue
		}
		target.Label = label
	}
}

func splitCell(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
