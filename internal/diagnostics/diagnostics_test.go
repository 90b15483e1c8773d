package diagnostics

import (
	"testing"

	"github.com/yungbote/ontorelease/internal/domain/term"
)

func TestResultAddSplitsBySeverity(t *testing.T) {
	t.Parallel()
	var r Result
	r.Add(New(UnknownParent, term.Identifier{ID: "A:1"}, term.Origin{File: "a.csv", Row: 2}, "parent %q not found", "x"))
	r.Add(New(NoParent, term.Identifier{ID: "A:2"}, term.Origin{File: "a.csv", Row: 3}, "no parent"))
	r.Add(Diagnostic{Kind: UnknownColumn, Severity: SeverityInfo, Message: "hint"})

	if len(r.Errors) != 1 || len(r.Warnings) != 1 || len(r.Infos) != 1 {
		t.Fatalf("unexpected split: %d errors, %d warnings, %d infos", len(r.Errors), len(r.Warnings), len(r.Infos))
	}
	if !r.HasErrors() {
		t.Fatalf("expected HasErrors")
	}
	if got := len(r.OfKind(UnknownParent)); got != 1 {
		t.Fatalf("OfKind(unknown-parent) = %d", got)
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		filter Filter
		kind   Kind
		want   bool
	}{
		{"empty allows all", Filter{}, Duplicate, true},
		{"only matches", Filter{Only: []Kind{Duplicate}}, Duplicate, true},
		{"only rejects others", Filter{Only: []Kind{Duplicate}}, UnknownParent, false},
		{"exclude wins", Filter{Only: []Kind{Duplicate}, Exclude: []Kind{Duplicate}}, Duplicate, false},
		{"exclude only", Filter{Exclude: []Kind{NoParent}}, UnknownParent, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.filter.Allows(tc.kind); got != tc.want {
				t.Fatalf("Allows(%s) = %v, want %v", tc.kind, got, tc.want)
			}
		})
	}
}

func TestFilterAllowsAny(t *testing.T) {
	t.Parallel()
	f := Filter{Only: []Kind{Duplicate}}
	if f.AllowsAny(UnknownParent, NoParent) {
		t.Fatalf("duplicate-only filter should skip parent checks")
	}
	if !f.AllowsAny(NoParent, Duplicate) {
		t.Fatalf("filter should allow a list containing duplicate")
	}
	if (Filter{Exclude: []Kind{NoParent}}).AllowsAny(NoParent) {
		t.Fatalf("excluded kind must not be allowed")
	}
}

func TestSortOrdersByOrigin(t *testing.T) {
	t.Parallel()
	var r Result
	r.Add(New(MissingLabel, term.Identifier{}, term.Origin{File: "b.csv", Row: 2}, "x"))
	r.Add(New(MissingLabel, term.Identifier{}, term.Origin{File: "a.csv", Row: 9}, "x"))
	r.Add(New(MissingID, term.Identifier{}, term.Origin{File: "a.csv", Row: 3}, "x"))
	r.Sort()
	if r.Errors[0].Origin.Row != 3 || r.Errors[1].Origin.Row != 9 || r.Errors[2].Origin.File != "b.csv" {
		t.Fatalf("unexpected order: %+v", r.Errors)
	}
}
