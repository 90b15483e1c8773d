package term

import "strings"

type PropertyType string

const (
	IDProperty         PropertyType = "IDProperty"
	AnnotationProperty PropertyType = "AnnotationProperty"
	DataProperty       PropertyType = "DataProperty"
	ObjectProperty     PropertyType = "ObjectProperty"
	// Internal relations are parsed and validated but never emitted.
	Internal PropertyType = "Internal"
)

// ParsePropertyType accepts the spellings curators use in the "Type" column.
// Anything unrecognised is an object property.
func ParsePropertyType(raw string) PropertyType {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	s = strings.TrimSuffix(s, "property")
	switch s {
	case "id":
		return IDProperty
	case "annotation":
		return AnnotationProperty
	case "data", "datatype":
		return DataProperty
	case "internal":
		return Internal
	default:
		return ObjectProperty
	}
}

// UnresolvedRelation is the draft form of a property definition.
type UnresolvedRelation struct {
	Identifier
	Origin              Origin       `json:"origin"`
	Annotations         []Assignment `json:"annotations,omitempty"`
	EquivalentRelations []Identifier `json:"equivalent_relations,omitempty"`
	InverseOf           []Identifier `json:"inverse_of,omitempty"`
	SubPropertyOf       []Identifier `json:"sub_property_of,omitempty"`
	Domain              Identifier   `json:"domain"`
	Range               Identifier   `json:"range"`
	PropertyType        PropertyType `json:"owl_property_type"`
}

func (r *UnresolvedRelation) CurationStatus() CurationStatus {
	for _, a := range r.Annotations {
		if a.Relation.Same(RelCurationStatus) && !a.Value.IsTerm() {
			return ParseCurationStatus(a.Value.Literal)
		}
	}
	return ""
}

func (r *UnresolvedRelation) Definition() string {
	for _, a := range r.Annotations {
		if a.Relation.Same(RelDefinition) && !a.Value.IsTerm() {
			return strings.TrimSpace(a.Value.Literal)
		}
	}
	return ""
}

func (r *UnresolvedRelation) unresolvedParts() []string {
	var missing []string
	if r.ID == "" {
		missing = append(missing, "id")
	}
	if r.Label == "" {
		missing = append(missing, "label")
	}
	if r.Origin.IsZero() {
		missing = append(missing, "origin")
	}
	check := func(kind string, ids []Identifier) {
		for _, id := range ids {
			if !id.IsResolved() {
				missing = append(missing, kind+" "+id.String())
			}
		}
	}
	check("equivalent", r.EquivalentRelations)
	check("inverse", r.InverseOf)
	check("parent", r.SubPropertyOf)
	if !r.Domain.IsEmpty() && !r.Domain.IsResolved() {
		missing = append(missing, "domain "+r.Domain.String())
	}
	if !r.Range.IsEmpty() && !r.Range.IsResolved() {
		missing = append(missing, "range "+r.Range.String())
	}
	return missing
}

func (r *UnresolvedRelation) IsResolved() bool { return len(r.unresolvedParts()) == 0 }

func (r *UnresolvedRelation) Resolve() (Relation, error) {
	if missing := r.unresolvedParts(); len(missing) > 0 {
		return Relation{}, &IncompleteError{Subject: r.Identifier, Origin: r.Origin, Missing: missing}
	}
	return Relation{
		id:                  r.ID,
		label:               r.Label,
		origin:              r.Origin,
		annotations:         cloneAssignments(r.Annotations),
		equivalentRelations: append([]Identifier(nil), r.EquivalentRelations...),
		inverseOf:           append([]Identifier(nil), r.InverseOf...),
		subPropertyOf:       append([]Identifier(nil), r.SubPropertyOf...),
		domain:              r.Domain,
		rng:                 r.Range,
		propertyType:        r.PropertyType,
	}, nil
}

func (r *UnresolvedRelation) Clone() *UnresolvedRelation {
	c := *r
	c.Annotations = cloneAssignments(r.Annotations)
	c.EquivalentRelations = append([]Identifier(nil), r.EquivalentRelations...)
	c.InverseOf = append([]Identifier(nil), r.InverseOf...)
	c.SubPropertyOf = append([]Identifier(nil), r.SubPropertyOf...)
	return &c
}

// Relation is a fully resolved, read-only property definition.
type Relation struct {
	id                  string
	label               string
	origin              Origin
	annotations         []Assignment
	equivalentRelations []Identifier
	inverseOf           []Identifier
	subPropertyOf       []Identifier
	domain              Identifier
	rng                 Identifier
	propertyType        PropertyType
}

func (r Relation) ID() string                        { return r.id }
func (r Relation) Label() string                     { return r.label }
func (r Relation) Identifier() Identifier            { return Identifier{ID: r.id, Label: r.label} }
func (r Relation) Origin() Origin                    { return r.origin }
func (r Relation) Annotations() []Assignment         { return cloneAssignments(r.annotations) }
func (r Relation) EquivalentRelations() []Identifier { return append([]Identifier(nil), r.equivalentRelations...) }
func (r Relation) InverseOf() []Identifier           { return append([]Identifier(nil), r.inverseOf...) }
func (r Relation) SubPropertyOf() []Identifier       { return append([]Identifier(nil), r.subPropertyOf...) }
func (r Relation) Domain() Identifier                { return r.domain }
func (r Relation) Range() Identifier                 { return r.rng }
func (r Relation) PropertyType() PropertyType        { return r.propertyType }
