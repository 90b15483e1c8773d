package term

import (
	"errors"
	"testing"
)

func TestComplementNeverOverwrites(t *testing.T) {
	t.Parallel()
	values := []Identifier{
		{},
		{ID: "A:1"},
		{Label: "one"},
		{ID: "A:1", Label: "one"},
		{ID: "B:2", Label: "two"},
	}
	for _, a := range values {
		for _, b := range values {
			got := a
			got.Complement(b)
			if a.ID != "" && got.ID != a.ID {
				t.Fatalf("complement(%v, %v) replaced id: %v", a, b, got)
			}
			if a.Label != "" && got.Label != a.Label {
				t.Fatalf("complement(%v, %v) replaced label: %v", a, b, got)
			}
			if a.ID == "" && got.ID != b.ID {
				t.Fatalf("complement(%v, %v) did not fill id: %v", a, b, got)
			}
			if a.Label == "" && got.Label != b.Label {
				t.Fatalf("complement(%v, %v) did not fill label: %v", a, b, got)
			}
		}
	}
}

func TestParseReference(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Identifier
	}{
		{"", Identifier{}},
		{"BCIO:0000001", Identifier{ID: "BCIO:0000001"}},
		{"  intervention ", Identifier{Label: "intervention"}},
		{"intervention [BCIO:0000001]", Identifier{ID: "BCIO:0000001", Label: "intervention"}},
		{"has part", Identifier{Label: "has part"}},
		{"http://purl.obolibrary.org/obo/BFO_0000001", Identifier{Label: "http://purl.obolibrary.org/obo/BFO_0000001"}},
		{"thing [not an id]", Identifier{Label: "thing [not an id]"}},
	}
	for _, tc := range tests {
		if got := ParseReference(tc.in); got != tc.want {
			t.Errorf("ParseReference(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestSameComparesByIDWhenBothPresent(t *testing.T) {
	t.Parallel()
	if (Identifier{ID: "A:1", Label: "x"}).Same(Identifier{ID: "A:2", Label: "x"}) {
		t.Fatalf("different ids must not be the same even with equal labels")
	}
	if !(Identifier{Label: "Behaviour  Change"}).Same(Identifier{ID: "A:2", Label: "behaviour change"}) {
		t.Fatalf("labels should compare case and whitespace insensitively")
	}
}

func TestResolveRejectsIncompleteDraft(t *testing.T) {
	t.Parallel()
	draft := &UnresolvedTerm{
		Identifier: Identifier{ID: "BCIO:0000002", Label: "behaviour change technique"},
		Origin:     Origin{File: "bcio.csv", Row: 3},
		SubClassOf: []Identifier{{Label: "intervention"}},
	}
	if draft.IsResolved() {
		t.Fatalf("draft with a label-only parent must not be resolved")
	}
	_, err := draft.Resolve()
	var inc *IncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("expected *IncompleteError, got %v", err)
	}

	draft.SubClassOf[0].Complement(Identifier{ID: "BCIO:0000001", Label: "intervention"})
	resolved, err := draft.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.SubClassOf()[0].ID != "BCIO:0000001" {
		t.Fatalf("unexpected parent %+v", resolved.SubClassOf())
	}

	// The resolved form does not alias the draft.
	draft.SubClassOf[0].ID = "changed"
	if resolved.SubClassOf()[0].ID != "BCIO:0000001" {
		t.Fatalf("resolved term aliases draft storage")
	}
}

func TestCurationStatusReadsRelation(t *testing.T) {
	t.Parallel()
	draft := &UnresolvedTerm{
		Relations: []Assignment{
			{Relation: RelDefinition, Value: LiteralValue("A thing.")},
			{Relation: Identifier{Label: "has curation status"}, Value: LiteralValue("obsolete")},
		},
	}
	if got := draft.CurationStatus(); got != StatusObsolete {
		t.Fatalf("CurationStatus = %q, want %q", got, StatusObsolete)
	}
	if got := draft.Definition(); got != "A thing." {
		t.Fatalf("Definition = %q", got)
	}
}

func TestParsePropertyType(t *testing.T) {
	t.Parallel()
	tests := map[string]PropertyType{
		"Object property":     ObjectProperty,
		"annotation property": AnnotationProperty,
		"Data property":       DataProperty,
		"ID":                  IDProperty,
		"internal":            Internal,
		"":                    ObjectProperty,
	}
	for in, want := range tests {
		if got := ParsePropertyType(in); got != want {
			t.Errorf("ParsePropertyType(%q) = %q, want %q", in, got, want)
		}
	}
}
