package runtime

import (
	"github.com/yungbote/ontorelease/internal/ontology"
	"github.com/yungbote/ontorelease/internal/platform/gcp"
	"github.com/yungbote/ontorelease/internal/platform/githost"
	"github.com/yungbote/ontorelease/internal/platform/neo4jdb"
	"github.com/yungbote/ontorelease/internal/platform/robot"
	"github.com/yungbote/ontorelease/internal/platform/searchindex"
)

type Capability string

const (
	CapSourceControl Capability = "source-control"
	CapBuildTool     Capability = "build-tool"
	CapGraphStore    Capability = "graph-store"
	CapObjectStore   Capability = "object-store"
	CapSearchIndex   Capability = "search-index"
)

// Services are the collaborators a run may use. A nil field means the
// matching capability is absent.
type Services struct {
	GitHost githost.Client
	Robot   *robot.Tool
	Graph   *neo4jdb.Client
	Bucket  gcp.ArtifactBucket
	Index   *searchindex.Index
	Policy  ontology.Policy
}

func (s *Services) Has(c Capability) bool {
	if s == nil {
		return false
	}
	switch c {
	case CapSourceControl:
		return s.GitHost != nil
	case CapBuildTool:
		return s.Robot != nil
	case CapGraphStore:
		return s.Graph != nil
	case CapObjectStore:
		return s.Bucket != nil
	case CapSearchIndex:
		return s.Index != nil
	}
	return false
}

// Capabilities lists the wired capabilities.
func (s *Services) Capabilities() []Capability {
	var out []Capability
	for _, c := range []Capability{CapSourceControl, CapBuildTool, CapGraphStore, CapObjectStore, CapSearchIndex} {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Missing returns the capabilities of req not wired in s.
func (s *Services) Missing(req []Capability) []Capability {
	var out []Capability
	for _, c := range req {
		if !s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
