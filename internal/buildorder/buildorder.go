// Package buildorder decides the order in which build units are processed.
package buildorder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/ontorelease/internal/domain/release"
)

// UnknownDependencyError is returned before any unit is processed when a
// unit needs a name that is not in the script.
type UnknownDependencyError struct {
	Unit    string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unit %q needs unknown unit %q", e.Unit, e.Missing)
}

// CircularDependencyError lists the units that could not be ordered.
type CircularDependencyError struct {
	Units []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency between units: %s", strings.Join(e.Units, ", "))
}

// OrderSources returns the unit names with every unit after the units it
// needs. Units built only from owl files are left out; they need no
// processing and count as satisfied for their dependents.
func OrderSources(units map[string]release.BuildUnit) ([]string, error) {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, need := range units[name].Needs {
			if _, ok := units[need]; !ok {
				return nil, &UnknownDependencyError{Unit: name, Missing: need}
			}
		}
	}

	work := append([]string(nil), names...)
	var out []string
	done := map[string]bool{}
	stagnant := 0
	for len(work) > 0 {
		name := work[0]
		work = work[1:]
		unit := units[name]

		if unit.OnlyOWL() {
			done[name] = true
			stagnant = 0
			continue
		}
		ready := true
		for _, need := range unit.Needs {
			if !done[need] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, name)
			done[name] = true
			stagnant = 0
			continue
		}
		work = append(work, name)
		stagnant++
		if stagnant > len(work) {
			sort.Strings(work)
			return nil, &CircularDependencyError{Units: work}
		}
	}
	return out, nil
}

// Waves splits an order into groups whose units do not depend on each other,
// so that each group can be built concurrently once the previous ones finish.
func Waves(order []string, units map[string]release.BuildUnit) [][]string {
	level := map[string]int{}
	var waves [][]string
	for _, name := range order {
		l := 0
		for _, need := range units[name].Needs {
			if nl, ok := level[need]; ok && nl+1 > l {
				l = nl + 1
			}
		}
		level[name] = l
		for len(waves) <= l {
			waves = append(waves, nil)
		}
		waves[l] = append(waves[l], name)
	}
	return waves
}

// Closure returns name and every unit it transitively needs, dependencies first.
func Closure(name string, units map[string]release.BuildUnit) []string {
	seen := map[string]bool{}
	var out []string
	var visit func(string)
	visit = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, need := range units[n].Needs {
			visit(need)
		}
		out = append(out, n)
	}
	visit(name)
	return out
}
