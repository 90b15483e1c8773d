package services

import (
	"errors"
	"testing"
)

const twoUnitScript = `{
  "fullRepositoryName": "acme/onto",
  "shortRepositoryName": "onto",
  "files": {
    "upper": {"sources": [{"type": "classes", "file": "upper.csv"}], "target": {"file": "upper.owl"}},
    "lower": {"needs": ["upper"], "sources": [{"type": "classes", "file": "lower.csv"}], "target": {"file": "lower.owl"}}
  },
  "steps": [{"name": "VALIDATION"}, {"name": "BUILD", "args": {"parallelism": 2}}]
}`

func TestScriptServiceRoundTrip(t *testing.T) {
	h := newReleaseHarness(t)
	repo := uniqueRepo("script")

	def, stored, err := h.scripts.GetScript(h.dbc, repo)
	if err != nil || stored {
		t.Fatalf("GetScript before put: stored=%v err=%v", stored, err)
	}
	if def.FullRepositoryName != "acme/"+repo || len(def.Files) != 0 {
		t.Fatalf("default script = %+v", def)
	}

	if _, err := h.scripts.PutScript(h.dbc, repo, []byte(twoUnitScript), "alice"); err != nil {
		t.Fatalf("PutScript: %v", err)
	}
	got, stored, err := h.scripts.GetScript(h.dbc, repo)
	if err != nil || !stored {
		t.Fatalf("GetScript after put: stored=%v err=%v", stored, err)
	}
	if got.FullRepositoryName != "acme/onto" || len(got.Files) != 2 || got.Files["lower"].Needs[0] != "upper" {
		t.Fatalf("stored script = %+v", got)
	}
}

func TestScriptServiceRejects(t *testing.T) {
	h := newReleaseHarness(t)
	cases := map[string]string{
		"not json":     `{`,
		"no steps":     `{"fullRepositoryName":"acme/x","steps":[]}`,
		"unknown step": `{"fullRepositoryName":"acme/x","steps":[{"name":"DEPLOY"}]}`,
		"cycle": `{"fullRepositoryName":"acme/x","steps":[{"name":"BUILD"}],"files":{
			"a":{"needs":["b"],"sources":[{"type":"classes","file":"a.csv"}],"target":{"file":"a.owl"}},
			"b":{"needs":["a"],"sources":[{"type":"classes","file":"b.csv"}],"target":{"file":"b.owl"}}}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.scripts.PutScript(h.dbc, uniqueRepo("reject"), []byte(doc), "alice"); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestParseReleaseSteps(t *testing.T) {
	steps, err := parseReleaseSteps([]byte(`
release: ontology
version: 1
steps:
  - name: VALIDATION
  - name: GRAPH_EXPORT
    enabled: false
  - name: BUILD
    args:
      parallelism: 8
`))
	if err != nil {
		t.Fatalf("parseReleaseSteps: %v", err)
	}
	if len(steps) != 2 || steps[1].Name != "BUILD" || steps[1].Args["parallelism"] != 8 {
		t.Fatalf("steps = %+v", steps)
	}

	if _, err := parseReleaseSteps([]byte("release: other\nsteps:\n  - name: BUILD\n")); err == nil {
		t.Fatalf("expected error for wrong release kind")
	}
	if _, err := parseReleaseSteps([]byte("release: ontology\nsteps:\n  - name: BUILD\n  - name: BUILD\n")); err == nil {
		t.Fatalf("expected error for duplicate step")
	}
	if def := DefaultSteps(nil); len(def) < 7 {
		t.Fatalf("embedded default steps = %+v", def)
	}
}
