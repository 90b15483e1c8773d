package ontology

import (
	"sort"
	"strings"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
)

type dupEntry struct {
	ident      term.Identifier
	origin     term.Origin
	definition string
	status     term.CurationStatus
	local      bool
	kind       string
}

func (e dupEntry) key() string { return e.origin.String() + "|" + e.ident.String() }

func (o *Ontology) duplicateEntries() []dupEntry {
	var out []dupEntry
	for _, rec := range o.terms {
		st := rec.draft.CurationStatus()
		if o.discarded(st) || o.ignored(st) {
			continue
		}
		out = append(out, dupEntry{
			ident: rec.draft.Identifier, origin: rec.draft.Origin,
			definition: rec.draft.Definition(), status: st, local: rec.local, kind: "term",
		})
	}
	for _, rec := range o.relations {
		st := rec.draft.CurationStatus()
		if o.discarded(st) || o.ignored(st) {
			continue
		}
		out = append(out, dupEntry{
			ident: rec.draft.Identifier, origin: rec.draft.Origin,
			definition: rec.draft.Definition(), status: st, local: rec.local, kind: "relation",
		})
	}
	return out
}

func mismatches(a, b dupEntry) []string {
	var out []string
	if term.NormalizeLabel(a.ident.Label) != term.NormalizeLabel(b.ident.Label) {
		out = append(out, "label")
	}
	if a.ident.ID != b.ident.ID {
		out = append(out, "id")
	}
	if term.NormalizeText(a.definition) != term.NormalizeText(b.definition) {
		out = append(out, "definition")
	}
	if a.status != b.status {
		out = append(out, "curation status")
	}
	return out
}

// findDuplicates groups records by id and then by label. A group is flagged
// only when its members differ in a compared field; identical copies of a
// shared term across sheets are expected.
func (o *Ontology) findDuplicates(res *diagnostics.Result) {
	entries := o.duplicateEntries()
	flagged := map[string]bool{}

	check := func(groupKey func(dupEntry) string) {
		groups := map[string][]dupEntry{}
		var keys []string
		for _, e := range entries {
			k := groupKey(e)
			if k == "" {
				continue
			}
			k = e.kind + "\x00" + k
			if _, ok := groups[k]; !ok {
				keys = append(keys, k)
			}
			groups[k] = append(groups[k], e)
		}
		for _, k := range keys {
			group := groups[k]
			if len(group) < 2 || !anyLocal(group) {
				continue
			}
			set := map[string]bool{}
			for i := 0; i < len(group); i++ {
				for j := i + 1; j < len(group); j++ {
					for _, m := range mismatches(group[i], group[j]) {
						set[m] = true
					}
				}
			}
			if len(set) == 0 {
				continue
			}
			members := memberKey(group)
			if flagged[members] {
				continue
			}
			flagged[members] = true
			res.Add(duplicateDiagnostic(group, set))
		}
	}
	check(func(e dupEntry) string { return e.ident.ID })
	check(func(e dupEntry) string { return term.NormalizeLabel(e.ident.Label) })
}

func anyLocal(group []dupEntry) bool {
	for _, e := range group {
		if e.local {
			return true
		}
	}
	return false
}

func memberKey(group []dupEntry) string {
	keys := make([]string, len(group))
	for i, e := range group {
		keys[i] = e.key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "\n")
}

var mismatchOrder = []string{"id", "label", "definition", "curation status"}

func duplicateDiagnostic(group []dupEntry, set map[string]bool) diagnostics.Diagnostic {
	var fields []string
	for _, f := range mismatchOrder {
		if set[f] {
			fields = append(fields, f)
		}
	}
	first := group[0]
	for _, e := range group {
		if e.local {
			first = e
			break
		}
	}
	d := diagnostics.New(diagnostics.Duplicate, first.ident, first.origin,
		"%s %s is defined %d times with differing %s", first.kind, first.ident.String(), len(group), strings.Join(fields, ", "))
	d.Mismatches = fields
	for _, e := range group {
		d.Entries = append(d.Entries, diagnostics.DuplicateEntry{
			Subject:        e.ident,
			Origin:         e.origin,
			Definition:     e.definition,
			CurationStatus: string(e.status),
		})
	}
	return d
}
