package term

import (
	"fmt"
	"strings"
)

// Origin locates a record in its source sheet. Row is 1-based with the header on row 1.
type Origin struct {
	File string `json:"file"`
	Row  int    `json:"row"`
}

func (o Origin) IsZero() bool { return o.File == "" && o.Row == 0 }

func (o Origin) String() string {
	if o.Row > 0 {
		return fmt.Sprintf("%s:%d", o.File, o.Row)
	}
	return o.File
}

// RelationValue is either a literal or a reference to another term.
type RelationValue struct {
	Literal string      `json:"literal,omitempty"`
	Term    *Identifier `json:"term,omitempty"`
}

func LiteralValue(s string) RelationValue { return RelationValue{Literal: s} }

func TermValue(id Identifier) RelationValue { return RelationValue{Term: &id} }

func (v RelationValue) IsTerm() bool { return v.Term != nil }

func (v RelationValue) String() string {
	if v.Term != nil {
		return v.Term.String()
	}
	return v.Literal
}

// Assignment is one (relation, value) pair on a term.
type Assignment struct {
	Relation Identifier    `json:"relation"`
	Value    RelationValue `json:"value"`
}

// UnresolvedTerm is the draft form produced by ingestion. Resolution fills
// empty identifier fields in place.
type UnresolvedTerm struct {
	Identifier
	Synonyms     []string     `json:"synonyms,omitempty"`
	Origin       Origin       `json:"origin"`
	Relations    []Assignment `json:"relations,omitempty"`
	SubClassOf   []Identifier `json:"sub_class_of,omitempty"`
	DisjointWith []Identifier `json:"disjoint_with,omitempty"`
	EquivalentTo []string     `json:"equivalent_to,omitempty"`
}

// CurationStatus reads the "has curation status" relation.
func (t *UnresolvedTerm) CurationStatus() CurationStatus {
	return ParseCurationStatus(t.literal(RelCurationStatus))
}

func (t *UnresolvedTerm) Definition() string { return t.literal(RelDefinition) }

func (t *UnresolvedTerm) literal(rel Identifier) string {
	for _, a := range t.Relations {
		if a.Relation.Same(rel) && !a.Value.IsTerm() {
			return strings.TrimSpace(a.Value.Literal)
		}
	}
	return ""
}

// IsResolved reports whether the term and every reference it carries have both id and label.
func (t *UnresolvedTerm) IsResolved() bool {
	return len(t.unresolvedParts()) == 0
}

func (t *UnresolvedTerm) unresolvedParts() []string {
	var missing []string
	if t.ID == "" {
		missing = append(missing, "id")
	}
	if t.Label == "" {
		missing = append(missing, "label")
	}
	if t.Origin.IsZero() {
		missing = append(missing, "origin")
	}
	for _, p := range t.SubClassOf {
		if !p.IsResolved() {
			missing = append(missing, "parent "+p.String())
		}
	}
	for _, d := range t.DisjointWith {
		if !d.IsResolved() {
			missing = append(missing, "disjoint "+d.String())
		}
	}
	for _, a := range t.Relations {
		if !a.Relation.IsResolved() {
			missing = append(missing, "relation "+a.Relation.String())
		}
		if a.Value.IsTerm() && !a.Value.Term.IsResolved() {
			missing = append(missing, "value "+a.Value.Term.String())
		}
	}
	return missing
}

// Resolve converts the draft into the validated form. It fails when any
// identifier is still incomplete.
func (t *UnresolvedTerm) Resolve() (Term, error) {
	if missing := t.unresolvedParts(); len(missing) > 0 {
		return Term{}, &IncompleteError{Subject: t.Identifier, Origin: t.Origin, Missing: missing}
	}
	return Term{
		id:           t.ID,
		label:        t.Label,
		synonyms:     append([]string(nil), t.Synonyms...),
		origin:       t.Origin,
		relations:    cloneAssignments(t.Relations),
		subClassOf:   append([]Identifier(nil), t.SubClassOf...),
		disjointWith: append([]Identifier(nil), t.DisjointWith...),
		equivalentTo: append([]string(nil), t.EquivalentTo...),
	}, nil
}

// Clone returns a deep copy so aggregates can share ingested records without aliasing.
func (t *UnresolvedTerm) Clone() *UnresolvedTerm {
	c := *t
	c.Synonyms = append([]string(nil), t.Synonyms...)
	c.Relations = cloneAssignments(t.Relations)
	c.SubClassOf = append([]Identifier(nil), t.SubClassOf...)
	c.DisjointWith = append([]Identifier(nil), t.DisjointWith...)
	c.EquivalentTo = append([]string(nil), t.EquivalentTo...)
	return &c
}

func cloneAssignments(in []Assignment) []Assignment {
	if in == nil {
		return nil
	}
	out := make([]Assignment, len(in))
	for i, a := range in {
		out[i] = a
		if a.Value.Term != nil {
			v := *a.Value.Term
			out[i].Value.Term = &v
		}
	}
	return out
}

// Term is a fully resolved, read-only term record.
type Term struct {
	id           string
	label        string
	synonyms     []string
	origin       Origin
	relations    []Assignment
	subClassOf   []Identifier
	disjointWith []Identifier
	equivalentTo []string
}

func (t Term) ID() string                 { return t.id }
func (t Term) Label() string              { return t.label }
func (t Term) Identifier() Identifier     { return Identifier{ID: t.id, Label: t.label} }
func (t Term) Origin() Origin             { return t.origin }
func (t Term) Synonyms() []string         { return append([]string(nil), t.synonyms...) }
func (t Term) Relations() []Assignment    { return cloneAssignments(t.relations) }
func (t Term) SubClassOf() []Identifier   { return append([]Identifier(nil), t.subClassOf...) }
func (t Term) DisjointWith() []Identifier { return append([]Identifier(nil), t.disjointWith...) }
func (t Term) EquivalentTo() []string     { return append([]string(nil), t.equivalentTo...) }

func (t Term) CurationStatus() CurationStatus {
	for _, a := range t.relations {
		if a.Relation.Same(RelCurationStatus) && !a.Value.IsTerm() {
			return ParseCurationStatus(a.Value.Literal)
		}
	}
	return ""
}

// IncompleteError is returned when converting a draft that still has unresolved parts.
type IncompleteError struct {
	Subject Identifier
	Origin  Origin
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s (%s) is not resolved: missing %s", e.Subject.String(), e.Origin.String(), strings.Join(e.Missing, ", "))
}
