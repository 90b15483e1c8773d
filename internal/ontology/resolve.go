package ontology

import (
	"sort"

	"github.com/yungbote/ontorelease/internal/domain/term"
)

type candidate struct {
	id     term.Identifier
	status term.CurationStatus
	owner  any
}

// termCandidates are the resolution targets for class references: every
// non-discarded term plus every term declared by an import.
func (o *Ontology) termCandidates() []candidate {
	var out []candidate
	for _, rec := range o.terms {
		st := rec.draft.CurationStatus()
		if o.discarded(st) {
			continue
		}
		out = append(out, candidate{id: rec.draft.Identifier, status: st, owner: rec.draft})
	}
	return append(out, o.importCandidates()...)
}

func (o *Ontology) relationCandidates() []candidate {
	var out []candidate
	for _, b := range term.BuiltinRelations() {
		out = append(out, candidate{id: b})
	}
	for _, rec := range o.relations {
		st := rec.draft.CurationStatus()
		if o.discarded(st) {
			continue
		}
		out = append(out, candidate{id: rec.draft.Identifier, status: st, owner: rec.draft})
	}
	return append(out, o.importCandidates()...)
}

func (o *Ontology) importCandidates() []candidate {
	var out []candidate
	for _, imp := range o.imports {
		if !imp.Root.IsEmpty() {
			out = append(out, candidate{id: imp.Root, status: term.StatusExternal, owner: imp})
		}
		for _, t := range imp.ImportedTerms {
			out = append(out, candidate{id: t, status: term.StatusExternal, owner: imp})
		}
	}
	return out
}

// resolveRef fills the empty fields of ref from matching candidates. Live
// candidates are applied first so a deprecated record with the same label
// never wins over a current one.
func (o *Ontology) resolveRef(ref *term.Identifier, self any, pool []candidate) {
	if ref.IsResolved() || ref.IsEmpty() {
		return
	}
	o.matchAttempts++
	var matches []candidate
	for _, c := range pool {
		if self != nil && c.owner == self {
			continue
		}
		if ref.Matches(c.id) {
			matches = append(matches, c)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return o.live(matches[i].status) && !o.live(matches[j].status)
	})
	for _, c := range matches {
		ref.Complement(c.id)
	}
}

func (o *Ontology) live(st term.CurationStatus) bool {
	return !o.ignored(st) && !o.discarded(st)
}

// Resolve fills every incomplete reference it can. Calling it again after
// everything is filled changes nothing because Complement never overwrites.
func (o *Ontology) Resolve() {
	terms := o.termCandidates()
	relations := o.relationCandidates()

	for _, u := range o.used {
		o.resolveRef(&u.ref, nil, relations)
	}

	for _, rec := range o.relations {
		r := rec.draft
		if o.discarded(r.CurationStatus()) {
			continue
		}
		for i := range r.SubPropertyOf {
			o.resolveRef(&r.SubPropertyOf[i], r, relations)
		}
		for i := range r.EquivalentRelations {
			o.resolveRef(&r.EquivalentRelations[i], r, relations)
		}
		for i := range r.InverseOf {
			o.resolveRef(&r.InverseOf[i], r, relations)
		}
		o.resolveRef(&r.Domain, nil, terms)
		o.resolveRef(&r.Range, nil, terms)
	}

	for _, rec := range o.terms {
		t := rec.draft
		if o.discarded(t.CurationStatus()) {
			continue
		}
		for i := range t.SubClassOf {
			o.resolveRef(&t.SubClassOf[i], t, terms)
		}
		for i := range t.DisjointWith {
			o.resolveRef(&t.DisjointWith[i], t, terms)
		}
		for i := range t.Relations {
			a := &t.Relations[i]
			o.resolveRef(&a.Relation, nil, relations)
			if !a.Value.IsTerm() {
				continue
			}
			// Label-only values of annotation or data properties are plain text.
			if def := o.FindRelation(a.Relation); def != nil && a.Value.Term.ID == "" &&
				(def.PropertyType == term.AnnotationProperty || def.PropertyType == term.DataProperty) {
				a.Value = term.LiteralValue(a.Value.Term.Label)
				continue
			}
			o.resolveRef(a.Value.Term, t, terms)
		}
	}
}
