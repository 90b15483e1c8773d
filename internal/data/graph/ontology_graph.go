package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/platform/logger"
	"github.com/yungbote/ontorelease/internal/platform/neo4jdb"
)

// Payload is the UNWIND input for one repository sync.
type Payload struct {
	Terms     []map[string]any
	Relations []map[string]any
	SubClass  []map[string]any
	Disjoint  []map[string]any
	Related   []map[string]any
}

// BuildPayload flattens resolved records into node and edge rows.
func BuildPayload(repository, releaseID string, terms []term.Term, relations []term.Relation) Payload {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var p Payload
	for _, t := range terms {
		def := ""
		for _, a := range t.Relations() {
			if a.Relation.Same(term.RelDefinition) && !a.Value.IsTerm() {
				def = a.Value.Literal
			}
		}
		p.Terms = append(p.Terms, map[string]any{
			"repository":      repository,
			"id":              t.ID(),
			"label":           t.Label(),
			"definition":      def,
			"curation_status": string(t.CurationStatus()),
			"origin":          t.Origin().String(),
			"synonyms":        t.Synonyms(),
			"release_id":      releaseID,
			"synced_at":       now,
		})
		for _, parent := range t.SubClassOf() {
			p.SubClass = append(p.SubClass, map[string]any{"repository": repository, "child": t.ID(), "parent": parent.ID, "parent_label": parent.Label})
		}
		for _, d := range t.DisjointWith() {
			p.Disjoint = append(p.Disjoint, map[string]any{"repository": repository, "a": t.ID(), "b": d.ID})
		}
		for _, a := range t.Relations() {
			if !a.Value.IsTerm() {
				continue
			}
			p.Related = append(p.Related, map[string]any{
				"repository":     repository,
				"src":            t.ID(),
				"dst":            a.Value.Term.ID,
				"dst_label":      a.Value.Term.Label,
				"relation_id":    a.Relation.ID,
				"relation_label": a.Relation.Label,
			})
		}
	}
	for _, r := range relations {
		p.Relations = append(p.Relations, map[string]any{
			"repository":    repository,
			"id":            r.ID(),
			"label":         r.Label(),
			"property_type": string(r.PropertyType()),
			"domain":        r.Domain().ID,
			"range":         r.Range().ID,
			"release_id":    releaseID,
			"synced_at":     now,
		})
	}
	return p
}

// UpsertOntologyGraph mirrors a released ontology into neo4j. Parents and
// related terms outside the repository become stub nodes carrying only id and label.
func UpsertOntologyGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, repository, releaseID string, terms []term.Term, relations []term.Relation) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p := BuildPayload(repository, releaseID, terms, relations)

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	for _, q := range []string{
		`CREATE CONSTRAINT term_repo_id_unique IF NOT EXISTS FOR (t:Term) REQUIRE (t.repository, t.id) IS UNIQUE`,
		`CREATE CONSTRAINT relation_repo_id_unique IF NOT EXISTS FOR (r:Relation) REQUIRE (r.repository, r.id) IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, q, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	statements := []struct {
		cypher string
		key    string
		rows   []map[string]any
	}{
		{`
UNWIND $rows AS t
MERGE (n:Term {repository: t.repository, id: t.id})
SET n += t
`, "rows", p.Terms},
		{`
UNWIND $rows AS r
MERGE (n:Relation {repository: r.repository, id: r.id})
SET n += r
`, "rows", p.Relations},
		{`
UNWIND $rows AS e
MATCH (c:Term {repository: e.repository, id: e.child})
MERGE (p:Term {repository: e.repository, id: e.parent})
ON CREATE SET p.label = e.parent_label, p.external = true
MERGE (c)-[:SUBCLASS_OF]->(p)
`, "rows", p.SubClass},
		{`
UNWIND $rows AS e
MATCH (a:Term {repository: e.repository, id: e.a})
MERGE (b:Term {repository: e.repository, id: e.b})
MERGE (a)-[:DISJOINT_WITH]->(b)
`, "rows", p.Disjoint},
		{`
UNWIND $rows AS e
MATCH (s:Term {repository: e.repository, id: e.src})
MERGE (d:Term {repository: e.repository, id: e.dst})
ON CREATE SET d.label = e.dst_label, d.external = true
MERGE (s)-[x:RELATED {relation_id: e.relation_id}]->(d)
SET x.relation_label = e.relation_label
`, "rows", p.Related},
	}

	err := client.Write(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, st := range statements {
			if len(st.rows) == 0 {
				continue
			}
			res, err := tx.Run(ctx, st.cypher, map[string]any{st.key: st.rows})
			if err != nil {
				return err
			}
			if _, err := res.Consume(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if log != nil {
		log.Info("ontology graph synced", "repository", repository, "terms", len(p.Terms), "relations", len(p.Relations))
	}
	return nil
}
