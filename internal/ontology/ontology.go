// Package ontology implements the per-build-unit aggregate: it ingests curator
// sheets and import declarations, resolves cross-file references and reports
// structured diagnostics.
package ontology

import (
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
)

// Policy holds the curation status knobs. Discarded records are never
// surfaced; ignored records resolve as targets but are left out of emitted output.
type Policy struct {
	Discard term.StatusSet
	Ignore  term.StatusSet
}

func DefaultPolicy() Policy {
	return Policy{
		Discard: term.NewStatusSet(),
		Ignore:  term.NewStatusSet(term.StatusObsolete, term.StatusPreProposed),
	}
}

type termRecord struct {
	draft *term.UnresolvedTerm
	// local records were ingested into this aggregate; the rest were merged
	// in from dependencies and are only resolution targets.
	local bool
}

type relationRecord struct {
	draft *term.UnresolvedRelation
	local bool
}

type usedRelation struct {
	ref    term.Identifier
	origin term.Origin
	local  bool
}

type Ontology struct {
	policy    Policy
	terms     []termRecord
	relations []relationRecord
	imports   []*term.Import
	used      []*usedRelation
	// imports merged in from dependencies
	foreignImports map[*term.Import]bool

	// findings raised while ingesting, reported by Validate.
	ingest []diagnostics.Diagnostic

	matchAttempts int
}

func New(policy Policy) *Ontology {
	if policy.Discard == nil {
		policy.Discard = term.NewStatusSet()
	}
	if policy.Ignore == nil {
		policy.Ignore = term.NewStatusSet()
	}
	return &Ontology{policy: policy}
}

func (o *Ontology) Policy() Policy { return o.policy }

func (o *Ontology) discarded(st term.CurationStatus) bool { return o.policy.Discard.Has(st) }

func (o *Ontology) ignored(st term.CurationStatus) bool { return o.policy.Ignore.Has(st) }

// AddTerm appends a local term draft.
func (o *Ontology) AddTerm(t *term.UnresolvedTerm) {
	o.terms = append(o.terms, termRecord{draft: t, local: true})
}

// AddRelation appends a local relation draft.
func (o *Ontology) AddRelation(r *term.UnresolvedRelation) {
	o.relations = append(o.relations, relationRecord{draft: r, local: true})
}

// AddImports appends import declarations.
func (o *Ontology) AddImports(imports ...*term.Import) {
	o.imports = append(o.imports, imports...)
}

// UseRelation records a relation referenced by a column header.
func (o *Ontology) UseRelation(ref term.Identifier, origin term.Origin) {
	o.useRelation(ref, origin, true)
}

func (o *Ontology) useRelation(ref term.Identifier, origin term.Origin, local bool) {
	for _, u := range o.used {
		if u.ref.Same(ref) {
			u.ref.Complement(ref)
			u.local = u.local || local
			return
		}
	}
	o.used = append(o.used, &usedRelation{ref: ref, origin: origin, local: local})
}

// Merge folds an already built dependency aggregate in. Its records become
// resolution targets and duplicate candidates but are not validated again.
func (o *Ontology) Merge(other *Ontology) {
	for _, t := range other.terms {
		o.terms = append(o.terms, termRecord{draft: t.draft.Clone()})
	}
	for _, r := range other.relations {
		o.relations = append(o.relations, relationRecord{draft: r.draft.Clone()})
	}
	for _, imp := range other.imports {
		c := imp.Clone()
		if o.foreignImports == nil {
			o.foreignImports = map[*term.Import]bool{}
		}
		o.foreignImports[c] = true
		o.imports = append(o.imports, c)
	}
	for _, u := range other.used {
		o.useRelation(u.ref, u.origin, false)
	}
}

// AdoptLocal copies the records other ingested itself into o as local
// records, with whatever other's side files and resolution made of them.
// Records other merged in from dependencies are left out.
func (o *Ontology) AdoptLocal(other *Ontology) {
	for _, t := range other.terms {
		if t.local {
			o.terms = append(o.terms, termRecord{draft: t.draft.Clone(), local: true})
		}
	}
	for _, r := range other.relations {
		if r.local {
			o.relations = append(o.relations, relationRecord{draft: r.draft.Clone(), local: true})
		}
	}
}

// Terms returns every term whose status is not discarded, ignored ones included.
func (o *Ontology) Terms() []*term.UnresolvedTerm {
	return o.collectTerms(false, false)
}

// EmittedTerms returns the terms that go into built output.
func (o *Ontology) EmittedTerms() []*term.UnresolvedTerm {
	return o.collectTerms(true, false)
}

// LocalTerms returns the emitted terms ingested into this aggregate.
func (o *Ontology) LocalTerms() []*term.UnresolvedTerm {
	return o.collectTerms(true, true)
}

func (o *Ontology) collectTerms(skipIgnored, onlyLocal bool) []*term.UnresolvedTerm {
	var out []*term.UnresolvedTerm
	for _, rec := range o.terms {
		st := rec.draft.CurationStatus()
		if o.discarded(st) || (skipIgnored && o.ignored(st)) || (onlyLocal && !rec.local) {
			continue
		}
		out = append(out, rec.draft)
	}
	return out
}

func (o *Ontology) Relations() []*term.UnresolvedRelation {
	return o.collectRelations(false, false)
}

func (o *Ontology) EmittedRelations() []*term.UnresolvedRelation {
	return o.collectRelations(true, false)
}

func (o *Ontology) LocalRelations() []*term.UnresolvedRelation {
	return o.collectRelations(true, true)
}

func (o *Ontology) collectRelations(skipIgnored, onlyLocal bool) []*term.UnresolvedRelation {
	var out []*term.UnresolvedRelation
	for _, rec := range o.relations {
		st := rec.draft.CurationStatus()
		if o.discarded(st) || (skipIgnored && o.ignored(st)) || (onlyLocal && !rec.local) {
			continue
		}
		out = append(out, rec.draft)
	}
	return out
}

func (o *Ontology) Imports() []*term.Import {
	out := make([]*term.Import, len(o.imports))
	copy(out, o.imports)
	return out
}

// UsedRelations returns every relation referenced by a sheet header.
func (o *Ontology) UsedRelations() []term.Identifier {
	out := make([]term.Identifier, 0, len(o.used))
	for _, u := range o.used {
		out = append(out, u.ref)
	}
	return out
}

// FindTerm looks a term up by id or label among non-discarded records.
func (o *Ontology) FindTerm(ref term.Identifier) *term.UnresolvedTerm {
	for _, rec := range o.terms {
		if o.discarded(rec.draft.CurationStatus()) {
			continue
		}
		if rec.draft.Identifier.Same(ref) {
			return rec.draft
		}
	}
	return nil
}

// FindRelation looks a defined relation up by id or label.
func (o *Ontology) FindRelation(ref term.Identifier) *term.UnresolvedRelation {
	for _, rec := range o.relations {
		if o.discarded(rec.draft.CurationStatus()) {
			continue
		}
		if rec.draft.Identifier.Same(ref) {
			return rec.draft
		}
	}
	return nil
}
