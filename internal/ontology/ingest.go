package ontology

import (
	"regexp"
	"strings"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/platform/sheet"
)

const listSeparator = ";"

var relationColumn = regexp.MustCompile(`(?i)^REL\s+'(.+)'$`)

// Columns holding annotation literals on the terms sheet.
var annotationColumns = map[string]term.Identifier{
	"definition":        term.RelDefinition,
	"definition source": term.RelDefinitionSource,
	"comment":           term.RelComment,
	"examples":          term.RelExample,
	"example":           term.RelExample,
	"curator note":      term.RelCuratorNote,
	"editor note":       term.RelEditorNote,
	"elucidation":       term.RelElucidation,
	"curation status":   term.RelCurationStatus,
	"sub-ontology":      term.RelInSubset,
	"cross reference":   term.RelCrossReference,
}

var termStructuralColumns = map[string]bool{
	"id":                 true,
	"label":              true,
	"parent":             true,
	"synonyms":           true,
	"disjoint with":      true,
	"logical definition": true,
	"equivalent to":      true,
}

var relationColumns = map[string]bool{
	"id":              true,
	"label":           true,
	"parent":          true,
	"equivalent to":   true,
	"inverse of":      true,
	"domain":          true,
	"range":           true,
	"type":            true,
	"definition":      true,
	"curation status": true,
}

var importColumns = map[string]bool{
	"ontology id":   true,
	"purl":          true,
	"version iri":   true,
	"root id":       true,
	"intermediates": true,
	"prefix":        true,
	"id":            true,
	"label":         true,
	"exclude":       true,
}

func headerKey(h string) string { return strings.ToLower(strings.Join(strings.Fields(h), " ")) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, listSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitRefs(s string) []term.Identifier {
	var out []term.Identifier
	for _, p := range splitList(s) {
		out = append(out, term.ParseReference(p))
	}
	return out
}

func (o *Ontology) unknownColumn(file, header string) {
	o.ingest = append(o.ingest, diagnostics.New(diagnostics.UnknownColumn, term.Identifier{},
		term.Origin{File: file, Row: 1}, "unknown column %q", header))
}

// IngestTermSheet adds one term per row.
func (o *Ontology) IngestTermSheet(t *sheet.Table) {
	type relCol struct {
		header string
		rel    term.Identifier
	}
	var relCols []relCol
	for _, h := range t.Header {
		key := headerKey(h)
		switch {
		case key == "":
		case termStructuralColumns[key]:
		case annotationColumns[key] != (term.Identifier{}):
		case relationColumn.MatchString(h):
			ref := term.ParseReference(relationColumn.FindStringSubmatch(h)[1])
			relCols = append(relCols, relCol{header: h, rel: ref})
			o.UseRelation(ref, term.Origin{File: t.File, Row: 1})
		default:
			o.unknownColumn(t.File, h)
		}
	}

	for _, row := range t.Rows {
		draft := &term.UnresolvedTerm{
			Identifier: term.Identifier{ID: row.Get("ID"), Label: row.Get("Label")},
			Origin:     term.Origin{File: t.File, Row: row.Number},
			Synonyms:   splitList(row.Get("Synonyms")),
		}
		draft.SubClassOf = splitRefs(row.Get("Parent"))
		draft.DisjointWith = splitRefs(row.Get("Disjoint with"))
		for _, col := range []string{"Logical definition", "Equivalent to"} {
			if v := row.Get(col); v != "" {
				draft.EquivalentTo = append(draft.EquivalentTo, v)
			}
		}
		for _, h := range t.Header {
			rel, ok := annotationColumns[headerKey(h)]
			if !ok {
				continue
			}
			if v := row.Get(h); v != "" {
				draft.Relations = append(draft.Relations, term.Assignment{Relation: rel, Value: term.LiteralValue(v)})
			}
		}
		for _, col := range relCols {
			for _, v := range splitList(row.Get(col.header)) {
				draft.Relations = append(draft.Relations, term.Assignment{
					Relation: col.rel,
					Value:    term.TermValue(term.ParseReference(v)),
				})
			}
		}
		o.AddTerm(draft)
	}
}

// IngestRelationSheet adds one relation per row.
func (o *Ontology) IngestRelationSheet(t *sheet.Table) {
	for _, h := range t.Header {
		if key := headerKey(h); key != "" && !relationColumns[key] {
			o.unknownColumn(t.File, h)
		}
	}
	for _, row := range t.Rows {
		draft := &term.UnresolvedRelation{
			Identifier:          term.Identifier{ID: row.Get("ID"), Label: row.Get("Label")},
			Origin:              term.Origin{File: t.File, Row: row.Number},
			SubPropertyOf:       splitRefs(row.Get("Parent")),
			EquivalentRelations: splitRefs(row.Get("Equivalent to")),
			InverseOf:           splitRefs(row.Get("Inverse of")),
			Domain:              term.ParseReference(row.Get("Domain")),
			Range:               term.ParseReference(row.Get("Range")),
			PropertyType:        term.ParsePropertyType(row.Get("Type")),
		}
		if v := row.Get("Definition"); v != "" {
			draft.Annotations = append(draft.Annotations, term.Assignment{Relation: term.RelDefinition, Value: term.LiteralValue(v)})
		}
		if v := row.Get("Curation status"); v != "" {
			draft.Annotations = append(draft.Annotations, term.Assignment{Relation: term.RelCurationStatus, Value: term.LiteralValue(v)})
		}
		o.AddRelation(draft)
	}
}

// IngestImportSheet groups rows by ontology id into import declarations.
// The first non-empty value of a per-ontology field wins; later rows that
// disagree are reported as inconsistent.
func (o *Ontology) IngestImportSheet(t *sheet.Table) {
	for _, h := range t.Header {
		if key := headerKey(h); key != "" && !importColumns[key] {
			o.unknownColumn(t.File, h)
		}
	}
	byID := map[string]*term.Import{}
	var order []*term.Import
	intermediatesSet := map[*term.Import]bool{}
	for _, row := range t.Rows {
		ontID := row.Get("Ontology ID")
		if ontID == "" {
			continue
		}
		imp, ok := byID[strings.ToUpper(ontID)]
		if !ok {
			imp = &term.Import{
				ID:            ontID,
				Intermediates: term.IntermediatesAll,
				Origin:        term.Origin{File: t.File, Row: row.Number},
			}
			byID[strings.ToUpper(ontID)] = imp
			order = append(order, imp)
		}
		origin := term.Origin{File: t.File, Row: row.Number}
		o.mergeImportField(imp, origin, "PURL", &imp.IRI, row.Get("PURL"))
		o.mergeImportField(imp, origin, "Version IRI", &imp.VersionIRI, row.Get("Version IRI"))
		if raw := row.Get("Root ID"); raw != "" {
			root := term.ParseReference(raw)
			if imp.Root.IsEmpty() {
				imp.Root = root
			} else if !imp.Root.Same(root) {
				o.inconsistentImport(imp, origin, "Root ID", imp.Root.String(), root.String())
			}
		}
		if raw := row.Get("Intermediates"); raw != "" {
			v := term.ParseIntermediates(raw)
			if !intermediatesSet[imp] {
				imp.Intermediates = v
				intermediatesSet[imp] = true
			} else if imp.Intermediates != v {
				o.inconsistentImport(imp, origin, "Intermediates", string(imp.Intermediates), string(v))
			}
		}
		if raw := row.Get("Prefix"); raw != "" {
			p := parsePrefix(raw)
			known := false
			for _, existing := range imp.Prefixes {
				if strings.EqualFold(existing.Prefix, p.Prefix) {
					known = true
				}
			}
			if !known {
				imp.Prefixes = append(imp.Prefixes, p)
			}
		}
		ref := term.Identifier{ID: row.Get("ID"), Label: row.Get("Label")}
		if ref.IsEmpty() {
			continue
		}
		if isTruthy(row.Get("Exclude")) {
			imp.Excluding = append(imp.Excluding, ref)
		} else {
			imp.ImportedTerms = append(imp.ImportedTerms, ref)
		}
	}
	o.AddImports(order...)
}

func (o *Ontology) mergeImportField(imp *term.Import, origin term.Origin, field string, dst *string, v string) {
	if v == "" {
		return
	}
	if *dst == "" {
		*dst = v
		return
	}
	if *dst != v {
		o.inconsistentImport(imp, origin, field, *dst, v)
	}
}

func (o *Ontology) inconsistentImport(imp *term.Import, origin term.Origin, field, have, got string) {
	o.ingest = append(o.ingest, diagnostics.New(diagnostics.InconsistentImport, term.Identifier{ID: imp.ID}, origin,
		"import %s: %s %q conflicts with earlier %q", imp.ID, field, got, have))
}

func parsePrefix(raw string) term.Prefix {
	name, expansion, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	expansion = strings.TrimSpace(expansion)
	if !ok || expansion == "" || !strings.Contains(expansion, "://") {
		return term.Prefix{Prefix: name, Expansion: "http://purl.obolibrary.org/obo/" + name + "_"}
	}
	return term.Prefix{Prefix: name, Expansion: expansion}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "yes", "y", "true", "1":
		return true
	}
	return false
}
