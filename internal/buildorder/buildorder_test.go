package buildorder

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yungbote/ontorelease/internal/domain/release"
)

func classes(file string) []release.Source {
	return []release.Source{{File: file, Type: release.SourceClasses}}
}

func TestOrderSources(t *testing.T) {
	t.Parallel()
	units := map[string]release.BuildUnit{
		"C": {Sources: []release.Source{{File: "c.owl", Type: release.SourceOWL}}, Needs: []string{"B"}},
		"B": {Sources: classes("b.csv"), Needs: []string{"A"}},
		"A": {Sources: classes("a.csv")},
	}
	got, err := OrderSources(units)
	if err != nil {
		t.Fatalf("OrderSources: %v", err)
	}
	if want := []string{"A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestOrderSourcesRespectsNeeds(t *testing.T) {
	t.Parallel()
	units := map[string]release.BuildUnit{
		"upper":    {Sources: classes("upper.csv")},
		"bcio":     {Sources: classes("bcio.csv"), Needs: []string{"upper", "setting"}},
		"setting":  {Sources: classes("setting.csv"), Needs: []string{"upper"}},
		"mode":     {Sources: classes("mode.csv"), Needs: []string{"upper"}},
		"prebuilt": {Sources: []release.Source{{File: "x.owl", Type: release.SourceOWL}}},
		"uses-owl": {Sources: classes("y.csv"), Needs: []string{"prebuilt"}},
	}
	got, err := OrderSources(units)
	if err != nil {
		t.Fatalf("OrderSources: %v", err)
	}
	pos := map[string]int{}
	for i, n := range got {
		pos[n] = i
	}
	if _, ok := pos["prebuilt"]; ok {
		t.Fatalf("owl-only unit must be excluded: %v", got)
	}
	for name, u := range units {
		for _, need := range u.Needs {
			if need == "prebuilt" {
				continue
			}
			if pos[need] >= pos[name] {
				t.Fatalf("%s ordered before its dependency %s: %v", name, need, got)
			}
		}
	}
	waves := Waves(got, units)
	if len(waves) != 3 {
		t.Fatalf("waves = %v", waves)
	}
}

func TestOrderSourcesCycle(t *testing.T) {
	t.Parallel()
	units := map[string]release.BuildUnit{
		"A": {Sources: classes("a.csv"), Needs: []string{"B"}},
		"B": {Sources: classes("b.csv"), Needs: []string{"A"}},
	}
	got, err := OrderSources(units)
	var cyc *CircularDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	if got != nil {
		t.Fatalf("partial order returned: %v", got)
	}
	if !reflect.DeepEqual(cyc.Units, []string{"A", "B"}) {
		t.Fatalf("cycle units = %v", cyc.Units)
	}
}

func TestOrderSourcesUnknownDependency(t *testing.T) {
	t.Parallel()
	units := map[string]release.BuildUnit{
		"A": {Sources: classes("a.csv"), Needs: []string{"ghost"}},
	}
	_, err := OrderSources(units)
	var unk *UnknownDependencyError
	if !errors.As(err, &unk) || unk.Missing != "ghost" {
		t.Fatalf("expected UnknownDependencyError for ghost, got %v", err)
	}
}

func TestClosure(t *testing.T) {
	t.Parallel()
	units := map[string]release.BuildUnit{
		"A": {},
		"B": {Needs: []string{"A"}},
		"C": {Needs: []string{"B", "A"}},
	}
	if got := Closure("C", units); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("Closure = %v", got)
	}
}
