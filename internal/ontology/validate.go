package ontology

import (
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
)

// refKinds names the unknown/missing/ignored variants for one reference slot.
type refKinds struct {
	unknown, missing, ignored diagnostics.Kind
	what                      string
}

var (
	parentKinds   = refKinds{diagnostics.UnknownParent, diagnostics.MissingParent, diagnostics.IgnoredParent, "parent"}
	disjointKinds = refKinds{diagnostics.UnknownDisjoint, diagnostics.MissingDisjoint, diagnostics.IgnoredDisjoint, "disjoint class"}
	valueKinds    = refKinds{diagnostics.UnknownRelationValue, diagnostics.MissingRelationValue, diagnostics.IgnoredRelationValue, "relation value"}
	domainKinds   = refKinds{diagnostics.UnknownDomainRange, diagnostics.MissingDomainRange, diagnostics.IgnoredDomainRange, "domain/range"}
)

func (k refKinds) kinds() []diagnostics.Kind { return []diagnostics.Kind{k.unknown, k.missing, k.ignored} }

func kindsOf(extra []diagnostics.Kind, refs ...refKinds) []diagnostics.Kind {
	out := append([]diagnostics.Kind{diagnostics.IncompleteTerm, diagnostics.MissingID, diagnostics.MissingLabel}, extra...)
	for _, r := range refs {
		out = append(out, r.kinds()...)
	}
	return out
}

// Kinds reported by the per-record term and relation checks.
var (
	termCheckKinds     = kindsOf([]diagnostics.Kind{diagnostics.NoParent}, parentKinds, disjointKinds, valueKinds)
	relationCheckKinds = kindsOf([]diagnostics.Kind{diagnostics.UnknownRelation}, parentKinds, domainKinds)
)

type backing int

const (
	backingNone backing = iota
	backingLive
	backingIgnored
)

// lookupTerm finds the record an id points at: a non-discarded term or an
// imported term.
func (o *Ontology) lookupTerm(id string) backing {
	for _, rec := range o.terms {
		if rec.draft.ID != id {
			continue
		}
		st := rec.draft.CurationStatus()
		if o.discarded(st) {
			continue
		}
		if o.ignored(st) {
			return backingIgnored
		}
		return backingLive
	}
	if o.importedID(id) {
		return backingLive
	}
	return backingNone
}

func (o *Ontology) lookupRelation(id string) backing {
	for _, b := range term.BuiltinRelations() {
		if b.ID == id {
			return backingLive
		}
	}
	for _, rec := range o.relations {
		if rec.draft.ID != id {
			continue
		}
		st := rec.draft.CurationStatus()
		if o.discarded(st) {
			continue
		}
		if o.ignored(st) {
			return backingIgnored
		}
		return backingLive
	}
	if o.importedID(id) {
		return backingLive
	}
	return backingNone
}

func (o *Ontology) importedID(id string) bool {
	for _, imp := range o.imports {
		if imp.Root.ID == id {
			return true
		}
		for _, t := range imp.ImportedTerms {
			if t.ID == id {
				return true
			}
		}
	}
	return false
}

// checkRef reports a reference as unknown (no id could be found), missing
// (id without a backing record) or ignored (backing record is ignored).
func (o *Ontology) checkRef(res *diagnostics.Result, f diagnostics.Filter, subject term.Identifier, origin term.Origin,
	ref term.Identifier, kinds refKinds, lookup func(string) backing) {
	var d diagnostics.Diagnostic
	switch {
	case ref.ID == "":
		if !f.Allows(kinds.unknown) {
			return
		}
		d = diagnostics.New(kinds.unknown, subject, origin, "%s: unknown %s %q", subject.String(), kinds.what, ref.String())
	default:
		switch lookup(ref.ID) {
		case backingNone:
			if !f.Allows(kinds.missing) {
				return
			}
			d = diagnostics.New(kinds.missing, subject, origin, "%s: %s %s is not defined", subject.String(), kinds.what, ref.String())
		case backingIgnored:
			if !f.Allows(kinds.ignored) {
				return
			}
			d = diagnostics.New(kinds.ignored, subject, origin, "%s: %s %s is ignored by curation status", subject.String(), kinds.what, ref.String())
		default:
			return
		}
	}
	res.Add(d.WithReference(ref))
}

func (o *Ontology) checkIdentity(res *diagnostics.Result, f diagnostics.Filter, id term.Identifier, origin term.Origin, what string) {
	switch {
	case id.ID == "" && id.Label == "":
		if f.Allows(diagnostics.IncompleteTerm) {
			res.Add(diagnostics.New(diagnostics.IncompleteTerm, id, origin, "%s without id or label", what))
		}
	case id.ID == "":
		if f.Allows(diagnostics.MissingID) {
			res.Add(diagnostics.New(diagnostics.MissingID, id, origin, "%s %q has no id", what, id.Label))
		}
	case id.Label == "":
		if f.Allows(diagnostics.MissingLabel) {
			res.Add(diagnostics.New(diagnostics.MissingLabel, id, origin, "%s %s has no label", what, id.ID))
		}
	}
}

// Validate checks the local records and returns the findings allowed by f.
// Records merged in from dependencies only serve as targets.
func (o *Ontology) Validate(f diagnostics.Filter) diagnostics.Result {
	var res diagnostics.Result
	for _, d := range o.ingest {
		if f.Allows(d.Kind) {
			res.Add(d)
		}
	}

	if f.AllowsAny(termCheckKinds...) {
		o.validateTerms(&res, f)
	}
	if f.AllowsAny(relationCheckKinds...) {
		o.validateRelations(&res, f)
	}

	if f.Allows(diagnostics.UnknownRelation) {
		for _, u := range o.used {
			if !u.local {
				continue
			}
			if u.ref.ID == "" || o.lookupRelation(u.ref.ID) == backingNone {
				res.Add(diagnostics.New(diagnostics.UnknownRelation, term.Identifier{}, u.origin,
					"relation %q is used as a column but never defined", u.ref.String()).WithReference(u.ref))
			}
		}
	}

	if f.Allows(diagnostics.MissingImport) {
		for _, imp := range o.imports {
			if imp.IRI == "" && !o.foreignImports[imp] {
				res.Add(diagnostics.New(diagnostics.MissingImport, term.Identifier{ID: imp.ID}, imp.Origin,
					"import %s has no PURL", imp.ID))
			}
		}
	}

	if f.Allows(diagnostics.Duplicate) {
		o.findDuplicates(&res)
	}
	return res
}

func (o *Ontology) validateTerms(res *diagnostics.Result, f diagnostics.Filter) {
	for _, rec := range o.terms {
		t := rec.draft
		st := t.CurationStatus()
		if !rec.local || o.discarded(st) || o.ignored(st) {
			continue
		}
		o.checkIdentity(res, f, t.Identifier, t.Origin, "term")
		if len(t.SubClassOf) == 0 && f.Allows(diagnostics.NoParent) {
			res.Add(diagnostics.New(diagnostics.NoParent, t.Identifier, t.Origin, "%s has no parent", t.Identifier.String()))
		}
		for _, p := range t.SubClassOf {
			o.checkRef(res, f, t.Identifier, t.Origin, p, parentKinds, o.lookupTerm)
		}
		for _, d := range t.DisjointWith {
			o.checkRef(res, f, t.Identifier, t.Origin, d, disjointKinds, o.lookupTerm)
		}
		for _, a := range t.Relations {
			if a.Value.IsTerm() {
				o.checkRef(res, f, t.Identifier, t.Origin, *a.Value.Term, valueKinds, o.lookupTerm)
			}
		}
	}
}

func (o *Ontology) validateRelations(res *diagnostics.Result, f diagnostics.Filter) {
	for _, rec := range o.relations {
		r := rec.draft
		st := r.CurationStatus()
		if !rec.local || o.discarded(st) || o.ignored(st) {
			continue
		}
		o.checkIdentity(res, f, r.Identifier, r.Origin, "relation")
		for _, p := range r.SubPropertyOf {
			o.checkRef(res, f, r.Identifier, r.Origin, p, parentKinds, o.lookupRelation)
		}
		for _, ref := range append(append([]term.Identifier(nil), r.EquivalentRelations...), r.InverseOf...) {
			if f.Allows(diagnostics.UnknownRelation) && (ref.ID == "" || o.lookupRelation(ref.ID) == backingNone) {
				res.Add(diagnostics.New(diagnostics.UnknownRelation, r.Identifier, r.Origin,
					"%s: unknown relation %q", r.Identifier.String(), ref.String()).WithReference(ref))
			}
		}
		for _, ref := range []term.Identifier{r.Domain, r.Range} {
			if !ref.IsEmpty() {
				o.checkRef(res, f, r.Identifier, r.Origin, ref, domainKinds, o.lookupTerm)
			}
		}
	}
}
