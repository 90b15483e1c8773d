package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SourceType string

const (
	SourceClasses   SourceType = "classes"
	SourceRelations SourceType = "relations"
	SourceOWL       SourceType = "owl"
)

type Source struct {
	File string     `json:"file"`
	Type SourceType `json:"type"`
}

type Target struct {
	File                string            `json:"file"`
	IRI                 string            `json:"iri"`
	OntologyAnnotations map[string]string `json:"ontologyAnnotations,omitempty"`
}

// BuildUnit is one sub-ontology: its sources, what it needs built first and
// where the built file goes.
type BuildUnit struct {
	Sources        []Source `json:"sources"`
	Target         Target   `json:"target"`
	Needs          []string `json:"needs,omitempty"`
	RenameTermFile *string  `json:"renameTermFile,omitempty"`
	AddParentsFile *string  `json:"addParentsFile,omitempty"`
}

// OnlyOWL reports whether every source is a pre-built artifact.
func (u BuildUnit) OnlyOWL() bool {
	if len(u.Sources) == 0 {
		return false
	}
	for _, s := range u.Sources {
		if s.Type != SourceOWL {
			return false
		}
	}
	return true
}

type StepSpec struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Script is the per-repository release definition.
type Script struct {
	IRIPrefix           string               `json:"iriPrefix"`
	ShortRepositoryName string               `json:"shortRepositoryName"`
	FullRepositoryName  string               `json:"fullRepositoryName"`
	External            BuildUnit            `json:"external"`
	Files               map[string]BuildUnit `json:"files"`
	Steps               []StepSpec           `json:"steps"`
	Prefixes            map[string]string    `json:"prefixes,omitempty"`
}

var ErrInvalidScript = errors.New("invalid release script")

func ParseScript(b []byte) (*Script, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
	}
	var s Script
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return &s, nil
}

// Validate checks the structural parts of the script. Step names are checked
// against the step registry by the caller.
func (s *Script) Validate() error {
	if s.FullRepositoryName == "" {
		return fmt.Errorf("%w: fullRepositoryName is required", ErrInvalidScript)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}
	for _, name := range s.UnitNames() {
		u := s.Files[name]
		if len(u.Sources) == 0 {
			return fmt.Errorf("%w: unit %s has no sources", ErrInvalidScript, name)
		}
		for _, src := range u.Sources {
			switch src.Type {
			case SourceClasses, SourceRelations, SourceOWL:
			default:
				return fmt.Errorf("%w: unit %s: unknown source type %q", ErrInvalidScript, name, src.Type)
			}
			if src.File == "" {
				return fmt.Errorf("%w: unit %s: source without file", ErrInvalidScript, name)
			}
		}
		if u.Target.File == "" {
			return fmt.Errorf("%w: unit %s has no target file", ErrInvalidScript, name)
		}
	}
	return nil
}

// UnitNames returns the build unit names sorted.
func (s *Script) UnitNames() []string {
	names := make([]string, 0, len(s.Files))
	for k := range s.Files {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Script) StepNames() []string {
	out := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		out[i] = st.Name
	}
	return out
}

func (s *Script) JSON() (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// ScriptRecord stores the current script of a repository.
type ScriptRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RepositoryKey string         `gorm:"column:repository_key;not null;uniqueIndex" json:"repository_key"`
	Document      datatypes.JSON `gorm:"column:document;not null" json:"document"`
	UpdatedBy     string         `gorm:"column:updated_by" json:"updated_by,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (ScriptRecord) TableName() string { return "release_script" }

func (r *ScriptRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
