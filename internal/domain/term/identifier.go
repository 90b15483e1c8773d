// Package term holds the ontology value types. Records come in two variants:
// the mutable Unresolved* drafts produced by sheet ingestion and filled in by
// resolution, and the validated Term/Relation forms obtained through an
// explicit conversion that fails when a reference is still incomplete.
package term

import (
	"regexp"
	"strings"
)

// Identifier references a term or relation by id, label, or both.
// An empty field means "not known yet".
type Identifier struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
}

var curiePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*:[A-Za-z0-9_.-]+$`)

// ParseReference turns a sheet cell into an Identifier. "label [PREFIX:1]"
// carries both fields, a bare CURIE is an id, anything else a label.
func ParseReference(raw string) Identifier {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identifier{}
	}
	if strings.HasSuffix(s, "]") {
		if open := strings.LastIndex(s, "["); open > 0 {
			id := strings.TrimSpace(s[open+1 : len(s)-1])
			label := strings.TrimSpace(s[:open])
			if curiePattern.MatchString(id) {
				return Identifier{ID: id, Label: label}
			}
		}
	}
	if LooksLikeCURIE(s) {
		return Identifier{ID: s}
	}
	return Identifier{Label: s}
}

func LooksLikeCURIE(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return false
	}
	return curiePattern.MatchString(s)
}

func (i Identifier) IsEmpty() bool { return i.ID == "" && i.Label == "" }

// IsResolved reports whether both id and label are present.
func (i Identifier) IsResolved() bool { return i.ID != "" && i.Label != "" }

// Complement fills the empty fields of i from other. Present values are never replaced.
func (i *Identifier) Complement(other Identifier) {
	if i.ID == "" {
		i.ID = other.ID
	}
	if i.Label == "" {
		i.Label = other.Label
	}
}

// Same compares by id when both sides have one, otherwise by normalised label.
func (i Identifier) Same(other Identifier) bool {
	if i.ID != "" && other.ID != "" {
		return i.ID == other.ID
	}
	if i.Label != "" && other.Label != "" {
		return NormalizeLabel(i.Label) == NormalizeLabel(other.Label)
	}
	return false
}

// Matches is the resolution predicate: a candidate matches when either the
// ids or the labels agree.
func (i Identifier) Matches(candidate Identifier) bool {
	if i.ID != "" && candidate.ID != "" && i.ID == candidate.ID {
		return true
	}
	if i.Label != "" && candidate.Label != "" && NormalizeLabel(i.Label) == NormalizeLabel(candidate.Label) {
		return true
	}
	return false
}

func (i Identifier) String() string {
	switch {
	case i.ID != "" && i.Label != "":
		return i.Label + " [" + i.ID + "]"
	case i.ID != "":
		return i.ID
	default:
		return i.Label
	}
}

// Prefix returns the CURIE prefix of the id ("BCIO" for "BCIO:0000001").
func (i Identifier) Prefix() string {
	if idx := strings.Index(i.ID, ":"); idx > 0 {
		return i.ID[:idx]
	}
	return ""
}

func NormalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeText is used when comparing free text such as definitions.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ". ")
}
