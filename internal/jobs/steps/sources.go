// Package steps holds the built-in release steps and the plugin steps.
package steps

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/domain/term"
)

func isPattern(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// expandSources resolves glob patterns of a unit's sources against the files
// under root. Plain paths that do not exist are reported.
func expandSources(root string, srcs []release.Source) ([]release.Source, diagnostics.Result) {
	var res diagnostics.Result
	fsys := os.DirFS(root)
	var out []release.Source
	for _, src := range srcs {
		pattern := path.Clean(filepath.ToSlash(src.File))
		if !isPattern(pattern) {
			if _, err := fs.Stat(fsys, pattern); err != nil {
				res.Add(missingSource(src.File, err))
				continue
			}
			out = append(out, release.Source{File: pattern, Type: src.Type})
			continue
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			res.Add(diagnostics.New(diagnostics.SourceMissing, term.Identifier{}, term.Origin{File: src.File},
				"bad source pattern %q: %v", src.File, err))
			continue
		}
		if len(matches) == 0 {
			res.Add(diagnostics.New(diagnostics.SourceMissing, term.Identifier{}, term.Origin{File: src.File},
				"source pattern %q matches no file", src.File))
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			out = append(out, release.Source{File: m, Type: src.Type})
		}
	}
	return out, res
}

func missingSource(file string, err error) diagnostics.Diagnostic {
	msg := "source file %s is missing"
	if !errors.Is(err, fs.ErrNotExist) {
		msg = "source file %s is unreadable"
	}
	return diagnostics.New(diagnostics.SourceMissing, term.Identifier{}, term.Origin{File: file}, msg, file)
}

// matchTree picks the repository paths a source pattern refers to.
func matchTree(pattern string, tree []string) []string {
	pattern = path.Clean(filepath.ToSlash(pattern))
	if !isPattern(pattern) {
		for _, p := range tree {
			if p == pattern {
				return []string{p}
			}
		}
		return nil
	}
	var out []string
	for _, p := range tree {
		if ok, _ := doublestar.Match(pattern, p); ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// referencedFiles lists every source and side file pattern of the script.
func referencedFiles(s *release.Script) []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	addUnit := func(u release.BuildUnit) {
		for _, src := range u.Sources {
			add(src.File)
		}
		if u.RenameTermFile != nil {
			add(*u.RenameTermFile)
		}
		if u.AddParentsFile != nil {
			add(*u.AddParentsFile)
		}
	}
	addUnit(s.External)
	for _, name := range s.UnitNames() {
		addUnit(s.Files[name])
	}
	return out
}
