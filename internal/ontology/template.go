package ontology

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/ontorelease/internal/domain/term"
)

const templateSplit = "|"

type TemplateOptions struct {
	// OnlyLocal leaves out records merged in from dependencies; those are
	// imported by IRI instead.
	OnlyLocal bool
}

type templateColumn struct {
	header   string
	robot    string
	termCell func(term.Term) string
	relCell  func(term.Relation) string
}

// WriteTemplate converts every emitted record to its validated form and
// writes a ROBOT template: a header row, the template-string row, then one
// row per term or relation. It fails on the first unresolved record.
func WriteTemplate(w io.Writer, o *Ontology, opts TemplateOptions) error {
	termDrafts := o.EmittedTerms()
	relDrafts := o.EmittedRelations()
	if opts.OnlyLocal {
		termDrafts = o.LocalTerms()
		relDrafts = o.LocalRelations()
	}

	terms := make([]term.Term, 0, len(termDrafts))
	for _, d := range termDrafts {
		t, err := d.Resolve()
		if err != nil {
			return err
		}
		terms = append(terms, t)
	}
	relations := make([]term.Relation, 0, len(relDrafts))
	for _, d := range relDrafts {
		if d.PropertyType == term.Internal {
			continue
		}
		r, err := d.Resolve()
		if err != nil {
			return err
		}
		relations = append(relations, r)
	}

	cols := baseColumns()
	cols = append(cols, annotationTemplateColumns()...)
	cols = append(cols, o.relationTemplateColumns()...)

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	robot := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.header
		robot[i] = c.robot
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.Write(robot); err != nil {
		return err
	}
	for _, t := range terms {
		row := make([]string, len(cols))
		for i, c := range cols {
			if c.termCell != nil {
				row[i] = c.termCell(t)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, r := range relations {
		row := make([]string, len(cols))
		for i, c := range cols {
			if c.relCell != nil {
				row[i] = c.relCell(r)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

func joinIDs(ids []term.Identifier) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.ID)
	}
	return strings.Join(out, templateSplit)
}

func robotPropertyType(pt term.PropertyType) string {
	switch pt {
	case term.AnnotationProperty, term.IDProperty:
		return "owl:AnnotationProperty"
	case term.DataProperty:
		return "owl:DatatypeProperty"
	default:
		return "owl:ObjectProperty"
	}
}

func baseColumns() []templateColumn {
	return []templateColumn{
		{
			header:   "ID",
			robot:    "ID",
			termCell: func(t term.Term) string { return t.ID() },
			relCell:  func(r term.Relation) string { return r.ID() },
		},
		{
			header:   "Type",
			robot:    "TYPE",
			termCell: func(term.Term) string { return "owl:Class" },
			relCell:  func(r term.Relation) string { return robotPropertyType(r.PropertyType()) },
		},
		{
			header:   "Label",
			robot:    "LABEL",
			termCell: func(t term.Term) string { return t.Label() },
			relCell:  func(r term.Relation) string { return r.Label() },
		},
		{
			header:   "Parent",
			robot:    "SC % SPLIT=" + templateSplit,
			termCell: func(t term.Term) string { return joinIDs(t.SubClassOf()) },
		},
		{
			header:  "Parent relation",
			robot:   "SP % SPLIT=" + templateSplit,
			relCell: func(r term.Relation) string { return joinIDs(r.SubPropertyOf()) },
		},
		{
			header:   "Logical definition",
			robot:    "EC %",
			termCell: func(t term.Term) string { return strings.Join(t.EquivalentTo(), " and ") },
		},
		{
			header:   "Disjoint with",
			robot:    "DC % SPLIT=" + templateSplit,
			termCell: func(t term.Term) string { return joinIDs(t.DisjointWith()) },
		},
		{
			header:   "Synonyms",
			robot:    "A " + term.RelSynonym.ID + " SPLIT=" + templateSplit,
			termCell: func(t term.Term) string { return strings.Join(t.Synonyms(), templateSplit) },
		},
		{
			header:  "Equivalent relations",
			robot:   "EP % SPLIT=" + templateSplit,
			relCell: func(r term.Relation) string { return joinIDs(r.EquivalentRelations()) },
		},
		{
			header:  "Inverse of",
			robot:   "IP % SPLIT=" + templateSplit,
			relCell: func(r term.Relation) string { return joinIDs(r.InverseOf()) },
		},
		{
			header:  "Domain",
			robot:   "DOMAIN",
			relCell: func(r term.Relation) string { return r.Domain().ID },
		},
		{
			header:  "Range",
			robot:   "RANGE",
			relCell: func(r term.Relation) string { return r.Range().ID },
		},
	}
}

func literalValues(as []term.Assignment, rel term.Identifier) string {
	var out []string
	for _, a := range as {
		if a.Relation.Same(rel) {
			if a.Value.IsTerm() {
				out = append(out, a.Value.Term.ID)
			} else {
				out = append(out, a.Value.Literal)
			}
		}
	}
	return strings.Join(out, templateSplit)
}

func annotationTemplateColumns() []templateColumn {
	var cols []templateColumn
	for _, rel := range term.BuiltinRelations() {
		if rel == term.RelSynonym {
			continue
		}
		rel := rel
		cols = append(cols, templateColumn{
			header:   rel.Label,
			robot:    "A " + rel.ID + " SPLIT=" + templateSplit,
			termCell: func(t term.Term) string { return literalValues(t.Relations(), rel) },
			relCell:  func(r term.Relation) string { return literalValues(r.Annotations(), rel) },
		})
	}
	return cols
}

// relationTemplateColumns adds one column per relation used as a sheet header.
func (o *Ontology) relationTemplateColumns() []templateColumn {
	var cols []templateColumn
	for _, u := range o.used {
		ref := u.ref
		if ref.ID == "" || term.IsBuiltinRelation(ref) {
			continue
		}
		robot := "SC '" + ref.Label + "' some % SPLIT=" + templateSplit
		if def := o.FindRelation(ref); def != nil {
			switch def.PropertyType {
			case term.Internal:
				continue
			case term.AnnotationProperty, term.IDProperty:
				robot = "A " + ref.ID + " SPLIT=" + templateSplit
			case term.DataProperty:
				robot = "SC '" + ref.Label + "' value % SPLIT=" + templateSplit
			}
		}
		cols = append(cols, templateColumn{
			header:   ref.String(),
			robot:    robot,
			termCell: func(t term.Term) string { return literalValues(t.Relations(), ref) },
		})
	}
	return cols
}
