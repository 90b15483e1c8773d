package graph

import (
	"testing"

	"github.com/yungbote/ontorelease/internal/domain/term"
)

func TestBuildPayload(t *testing.T) {
	t.Parallel()
	draft := &term.UnresolvedTerm{
		Identifier: term.Identifier{ID: "BCIO:0000002", Label: "behaviour change technique"},
		Origin:     term.Origin{File: "bcio.csv", Row: 3},
		SubClassOf: []term.Identifier{{ID: "BCIO:0000001", Label: "intervention"}},
		Relations: []term.Assignment{
			{Relation: term.RelDefinition, Value: term.LiteralValue("A technique.")},
			{Relation: term.Identifier{ID: "RO:0000057", Label: "has participant"}, Value: term.TermValue(term.Identifier{ID: "BCIO:0000003", Label: "person"})},
		},
	}
	resolved, err := draft.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	p := BuildPayload("addicto", "r1", []term.Term{resolved}, nil)
	if len(p.Terms) != 1 || p.Terms[0]["definition"] != "A technique." {
		t.Fatalf("terms = %+v", p.Terms)
	}
	if len(p.SubClass) != 1 || p.SubClass[0]["parent"] != "BCIO:0000001" {
		t.Fatalf("subclass = %+v", p.SubClass)
	}
	if len(p.Related) != 1 || p.Related[0]["relation_id"] != "RO:0000057" {
		t.Fatalf("related = %+v", p.Related)
	}
}
