// Package searchindex is the in-process term index behind autocomplete and
// duplicate lookup. Writers are serialised by one process-wide lock; readers
// search the last committed generation without locking.
package searchindex

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yungbote/ontorelease/internal/domain/term"
)

type Document struct {
	Repository     string   `json:"repository"`
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Synonyms       []string `json:"synonyms,omitempty"`
	Definition     string   `json:"definition,omitempty"`
	CurationStatus string   `json:"curation_status,omitempty"`
	File           string   `json:"file,omitempty"`
}

type Hit struct {
	Document
	Score float64 `json:"score"`
}

type generation struct {
	number uint64
	docs   []Document
	// token -> positions in docs
	tokens map[string][]int
}

type Index struct {
	writeMu sync.Mutex
	pending []Document
	dirty   bool
	current atomic.Pointer[generation]
}

func New() *Index {
	ix := &Index{}
	ix.current.Store(&generation{tokens: map[string][]int{}})
	return ix
}

// Generation is the number of the committed snapshot readers currently see.
func (ix *Index) Generation() uint64 { return ix.current.Load().number }

func (ix *Index) beginWrite() {
	ix.writeMu.Lock()
	if !ix.dirty {
		ix.pending = append([]Document(nil), ix.current.Load().docs...)
		ix.dirty = true
	}
}

// DeleteByQuery drops pending documents matching pred. Nothing is visible to
// readers until Commit.
func (ix *Index) DeleteByQuery(pred func(Document) bool) int {
	ix.beginWrite()
	defer ix.writeMu.Unlock()
	kept := ix.pending[:0]
	removed := 0
	for _, d := range ix.pending {
		if pred(d) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	ix.pending = kept
	return removed
}

func (ix *Index) Add(docs ...Document) {
	ix.beginWrite()
	defer ix.writeMu.Unlock()
	ix.pending = append(ix.pending, docs...)
}

// Commit publishes the pending documents as a new generation.
func (ix *Index) Commit() uint64 {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	prev := ix.current.Load()
	if !ix.dirty {
		return prev.number
	}
	gen := &generation{number: prev.number + 1, docs: ix.pending, tokens: map[string][]int{}}
	for i, d := range gen.docs {
		seen := map[string]bool{}
		for _, tok := range docTokens(d) {
			if !seen[tok] {
				seen[tok] = true
				gen.tokens[tok] = append(gen.tokens[tok], i)
			}
		}
	}
	ix.pending = nil
	ix.dirty = false
	ix.current.Store(gen)
	return gen.number
}

// ReplaceRepository rewrites every document of one repository and commits.
func (ix *Index) ReplaceRepository(repository string, docs []Document) uint64 {
	ix.DeleteByQuery(func(d Document) bool { return d.Repository == repository })
	for i := range docs {
		docs[i].Repository = repository
	}
	ix.Add(docs...)
	return ix.Commit()
}

func docTokens(d Document) []string {
	out := tokenize(d.ID)
	out = append(out, tokenize(d.Label)...)
	for _, s := range d.Synonyms {
		out = append(out, tokenize(s)...)
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '_' || r == '/' || r == ',' || r == '(' || r == ')'
	})
}

// Search ranks documents of a repository by how many query tokens prefix-match
// their id, label or synonyms. An exact label match ranks first.
func (ix *Index) Search(repository, query string, limit int) []Hit {
	gen := ix.current.Load()
	qtoks := tokenize(query)
	if len(qtoks) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	scores := map[int]float64{}
	for _, qt := range qtoks {
		for tok, positions := range gen.tokens {
			if !strings.HasPrefix(tok, qt) {
				continue
			}
			w := 0.5
			if tok == qt {
				w = 1
			}
			for _, p := range positions {
				scores[p] += w
			}
		}
	}
	norm := term.NormalizeLabel(query)
	hits := make([]Hit, 0, len(scores))
	for p, s := range scores {
		d := gen.docs[p]
		if repository != "" && d.Repository != repository {
			continue
		}
		if term.NormalizeLabel(d.Label) == norm || strings.EqualFold(d.ID, strings.TrimSpace(query)) {
			s += 10
		}
		hits = append(hits, Hit{Document: d, Score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Label < hits[j].Label
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// FromTerms builds index documents from resolved or draft terms.
func FromTerms(terms []*term.UnresolvedTerm) []Document {
	out := make([]Document, 0, len(terms))
	for _, t := range terms {
		if t.ID == "" && t.Label == "" {
			continue
		}
		out = append(out, Document{
			ID:             t.ID,
			Label:          t.Label,
			Synonyms:       append([]string(nil), t.Synonyms...),
			Definition:     t.Definition(),
			CurationStatus: string(t.CurationStatus()),
			File:           t.Origin.File,
		})
	}
	return out
}
