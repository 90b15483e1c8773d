// Package diagnostics defines the structured findings produced while
// ingesting, resolving and validating ontology sources. Findings are soft:
// they are accumulated into a Result and never returned as Go errors.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/yungbote/ontorelease/internal/domain/term"
)

type Kind string

const (
	MissingLabel         Kind = "missing-label"
	MissingID            Kind = "missing-id"
	NoParent             Kind = "no-parent"
	UnknownParent        Kind = "unknown-parent"
	MissingParent        Kind = "missing-parent"
	IgnoredParent        Kind = "ignored-parent"
	UnknownDisjoint      Kind = "unknown-disjoint"
	MissingDisjoint      Kind = "missing-disjoint"
	IgnoredDisjoint      Kind = "ignored-disjoint"
	UnknownRelationValue Kind = "unknown-relation-value"
	MissingRelationValue Kind = "missing-relation-value"
	IgnoredRelationValue Kind = "ignored-relation-value"
	UnknownDomainRange   Kind = "unknown-domain/range"
	MissingDomainRange   Kind = "missing-domain/range"
	IgnoredDomainRange   Kind = "ignored-domain/range"
	UnknownRelation      Kind = "unknown-relation"
	InconsistentImport   Kind = "inconsistent-import"
	MissingImport        Kind = "missing-import"
	UnknownColumn        Kind = "unknown-column"
	IncompleteTerm       Kind = "incomplete-term"
	Duplicate            Kind = "duplicate"

	// Emitted by release steps rather than the ontology aggregate.
	ToolFailure     Kind = "tool-failure"
	TransportError  Kind = "transport-error"
	SourceMissing   Kind = "source-missing"
	UnreadableSheet Kind = "unreadable-sheet"
	InvalidScript   Kind = "invalid-script"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var defaultSeverity = map[Kind]Severity{
	NoParent:             SeverityWarning,
	IgnoredParent:        SeverityWarning,
	IgnoredDisjoint:      SeverityWarning,
	IgnoredRelationValue: SeverityWarning,
	IgnoredDomainRange:   SeverityWarning,
	UnknownColumn:        SeverityWarning,
}

// SeverityOf returns the severity a kind is reported with.
func SeverityOf(k Kind) Severity {
	if s, ok := defaultSeverity[k]; ok {
		return s
	}
	return SeverityError
}

// DuplicateEntry is one of the conflicting records of a duplicate finding.
type DuplicateEntry struct {
	Subject        term.Identifier `json:"subject"`
	Origin         term.Origin     `json:"origin"`
	Definition     string          `json:"definition,omitempty"`
	CurationStatus string          `json:"curation_status,omitempty"`
}

type Diagnostic struct {
	Kind       Kind             `json:"kind"`
	Severity   Severity         `json:"severity"`
	Message    string           `json:"message"`
	Subject    term.Identifier  `json:"subject,omitempty"`
	Origin     term.Origin      `json:"origin,omitempty"`
	Reference  *term.Identifier `json:"reference,omitempty"`
	Mismatches []string         `json:"mismatches,omitempty"`
	Entries    []DuplicateEntry `json:"entries,omitempty"`
}

func (d Diagnostic) String() string {
	loc := d.Origin.String()
	if loc == "" {
		loc = "-"
	}
	return fmt.Sprintf("[%s] %s %s: %s", d.Severity, loc, d.Kind, d.Message)
}

// New builds a diagnostic with the kind's default severity.
func New(kind Kind, subject term.Identifier, origin term.Origin, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: SeverityOf(kind),
		Message:  fmt.Sprintf(format, args...),
		Subject:  subject,
		Origin:   origin,
	}
}

// WithReference attaches the offending reference.
func (d Diagnostic) WithReference(ref term.Identifier) Diagnostic {
	d.Reference = &ref
	return d
}

// Result accumulates findings split by severity.
type Result struct {
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Infos    []Diagnostic `json:"infos"`
}

func (r *Result) Add(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = SeverityOf(d.Kind)
	}
	switch d.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, d)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, d)
	default:
		r.Infos = append(r.Infos, d)
	}
}

func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Infos = append(r.Infos, other.Infos...)
}

func (r Result) HasErrors() bool { return len(r.Errors) > 0 }

func (r Result) All() []Diagnostic {
	out := make([]Diagnostic, 0, len(r.Errors)+len(r.Warnings)+len(r.Infos))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return append(out, r.Infos...)
}

// OfKind returns every finding of the given kind regardless of severity.
func (r Result) OfKind(k Kind) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.All() {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Sort orders each severity bucket by origin then kind for stable output.
func (r *Result) Sort() {
	less := func(s []Diagnostic) func(i, j int) bool {
		return func(i, j int) bool {
			a, b := s[i], s[j]
			if a.Origin.File != b.Origin.File {
				return a.Origin.File < b.Origin.File
			}
			if a.Origin.Row != b.Origin.Row {
				return a.Origin.Row < b.Origin.Row
			}
			return a.Kind < b.Kind
		}
	}
	sort.SliceStable(r.Errors, less(r.Errors))
	sort.SliceStable(r.Warnings, less(r.Warnings))
	sort.SliceStable(r.Infos, less(r.Infos))
}

// Filter narrows which kinds a validation run checks. An empty Only means all kinds.
type Filter struct {
	Only    []Kind
	Exclude []Kind
}

func (f Filter) Allows(k Kind) bool {
	for _, ex := range f.Exclude {
		if ex == k {
			return false
		}
	}
	if len(f.Only) == 0 {
		return true
	}
	for _, o := range f.Only {
		if o == k {
			return true
		}
	}
	return false
}

// AllowsAny is used to skip whole checks when none of their kinds are wanted.
func (f Filter) AllowsAny(kinds ...Kind) bool {
	for _, k := range kinds {
		if f.Allows(k) {
			return true
		}
	}
	return false
}
