package release

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type State string

const (
	StateStarting       State = "starting"
	StateRunning        State = "running"
	StateWaitingForUser State = "waiting-for-user"
	StateErrored        State = "errored"
	StateCanceled       State = "canceled"
	StateCompleted      State = "completed"
)

// Terminal reports whether no further step will ever run.
func (s State) Terminal() bool {
	return s == StateCanceled || s == StateCompleted
}

// Release is one end-to-end pipeline run for a repository. Step indexes the
// script's ordered step list; Details holds one StepDetails document per
// executed step index.
type Release struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RepositoryKey   string         `gorm:"column:repository_key;not null;index" json:"repository_key"`
	State           State          `gorm:"column:state;not null;index" json:"state"`
	Step            int            `gorm:"column:step;not null;default:0" json:"step"`
	Running         bool           `gorm:"column:running;not null;default:false;index" json:"running"`
	Details         datatypes.JSON `gorm:"column:details" json:"details"`
	Script          datatypes.JSON `gorm:"column:script" json:"script"`
	StartedBy       string         `gorm:"column:started_by" json:"started_by,omitempty"`
	StartedAt       time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt         *time.Time     `gorm:"column:ended_at" json:"ended_at,omitempty"`
	WorkerID        string         `gorm:"column:worker_id;index" json:"worker_id,omitempty"`
	LocalWorkingDir string         `gorm:"column:local_working_dir" json:"local_working_dir,omitempty"`
	HeartbeatAt     *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (Release) TableName() string { return "release" }

func (r *Release) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// StepDetails is what a step leaves behind for inspection.
type StepDetails struct {
	Step       int             `json:"step"`
	Name       string          `json:"name"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Errors     json.RawMessage `json:"errors,omitempty"`
	Warnings   json.RawMessage `json:"warnings,omitempty"`
	Infos      json.RawMessage `json:"infos,omitempty"`
	ErrorCount int             `json:"error_count"`
	Message    string          `json:"message,omitempty"`
	Trace      string          `json:"trace,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// DetailsMap decodes Details. A nil or empty column yields an empty map.
func (r *Release) DetailsMap() (map[int]StepDetails, error) {
	out := map[int]StepDetails{}
	if len(r.Details) == 0 || string(r.Details) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(r.Details, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StepDetails returns the details recorded for step, if any.
func (r *Release) StepDetails(step int) (StepDetails, bool) {
	m, err := r.DetailsMap()
	if err != nil {
		return StepDetails{}, false
	}
	d, ok := m[step]
	return d, ok
}

// WithStepDetails returns the encoded details column with step replaced.
func (r *Release) WithStepDetails(step int, d StepDetails) (datatypes.JSON, error) {
	m, err := r.DetailsMap()
	if err != nil {
		return nil, err
	}
	m[step] = d
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// ScriptDoc decodes the script snapshot taken when the release started.
func (r *Release) ScriptDoc() (*Script, error) {
	return ParseScript(r.Script)
}
