package term

import "strings"

type Intermediates string

const (
	IntermediatesAll     Intermediates = "all"
	IntermediatesMinimal Intermediates = "minimal"
)

func ParseIntermediates(raw string) Intermediates {
	if strings.EqualFold(strings.TrimSpace(raw), string(IntermediatesMinimal)) {
		return IntermediatesMinimal
	}
	return IntermediatesAll
}

type Prefix struct {
	Prefix    string `json:"prefix"`
	Expansion string `json:"expansion"`
}

// Import describes one externally sourced fragment that is pulled in by
// ancestor extraction rather than hand-authored.
type Import struct {
	ID            string        `json:"id"`
	IRI           string        `json:"iri"`
	VersionIRI    string        `json:"version_iri,omitempty"`
	Root          Identifier    `json:"root_id"`
	ImportedTerms []Identifier  `json:"imported_terms"`
	Excluding     []Identifier  `json:"excluding,omitempty"`
	Intermediates Intermediates `json:"intermediates"`
	Prefixes      []Prefix      `json:"prefixes,omitempty"`
	Origin        Origin        `json:"origin"`
}

func (i *Import) Clone() *Import {
	c := *i
	c.ImportedTerms = append([]Identifier(nil), i.ImportedTerms...)
	c.Excluding = append([]Identifier(nil), i.Excluding...)
	c.Prefixes = append([]Prefix(nil), i.Prefixes...)
	return &c
}

// Includes reports whether id is one of the imported terms and not excluded.
func (i *Import) Includes(id Identifier) bool {
	for _, ex := range i.Excluding {
		if ex.Same(id) {
			return false
		}
	}
	for _, t := range i.ImportedTerms {
		if t.Same(id) {
			return true
		}
	}
	return false
}
