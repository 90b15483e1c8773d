package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/ontorelease/internal/buildorder"
	repos "github.com/yungbote/ontorelease/internal/data/repos/release"
	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/registry"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type ScriptService interface {
	// GetScript returns the stored script, or the default one when the
	// repository has none; stored reports which.
	GetScript(dbc dbctx.Context, repositoryKey string) (script *release.Script, stored bool, err error)
	PutScript(dbc dbctx.Context, repositoryKey string, doc []byte, updatedBy string) (*release.Script, error)
	// Check validates a script against the step registry and its unit graph.
	Check(s *release.Script) error
}

type scriptService struct {
	log      *logger.Logger
	repo     repos.ScriptRepo
	registry *registry.Registry
	// owner prefixes the repository key in default scripts.
	owner string
}

func NewScriptService(baseLog *logger.Logger, repo repos.ScriptRepo, reg *registry.Registry, defaultOwner string) ScriptService {
	return &scriptService{
		log:      baseLog.With("service", "ScriptService"),
		repo:     repo,
		registry: reg,
		owner:    strings.Trim(strings.TrimSpace(defaultOwner), "/"),
	}
}

func (s *scriptService) GetScript(dbc dbctx.Context, repositoryKey string) (*release.Script, bool, error) {
	if strings.TrimSpace(repositoryKey) == "" {
		return nil, false, fmt.Errorf("%w: missing repository", ErrInvalidArgument)
	}
	rec, err := s.repo.Get(dbc, repositoryKey)
	if err != nil {
		return nil, false, err
	}
	if rec != nil {
		script, err := release.ParseScript(rec.Document)
		if err != nil {
			return nil, true, err
		}
		return script, true, nil
	}
	return s.defaultScript(repositoryKey), false, nil
}

func (s *scriptService) defaultScript(repositoryKey string) *release.Script {
	full := repositoryKey
	if s.owner != "" && !strings.Contains(repositoryKey, "/") {
		full = s.owner + "/" + repositoryKey
	}
	return &release.Script{
		ShortRepositoryName: repositoryKey,
		FullRepositoryName:  full,
		Files:               map[string]release.BuildUnit{},
		Steps:               DefaultSteps(s.log),
	}
}

func (s *scriptService) Check(script *release.Script) error {
	if err := script.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := s.registry.Validate(script.StepNames()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if _, err := buildorder.OrderSources(script.Files); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

func (s *scriptService) PutScript(dbc dbctx.Context, repositoryKey string, doc []byte, updatedBy string) (*release.Script, error) {
	if strings.TrimSpace(repositoryKey) == "" {
		return nil, fmt.Errorf("%w: missing repository", ErrInvalidArgument)
	}
	script, err := release.ParseScript(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := s.Check(script); err != nil {
		return nil, err
	}
	// Store the normalised document rather than the caller's bytes.
	b, err := json.Marshal(script)
	if err != nil {
		return nil, err
	}
	rec := &release.ScriptRecord{
		RepositoryKey: repositoryKey,
		Document:      datatypes.JSON(b),
		UpdatedBy:     updatedBy,
	}
	if err := s.repo.Upsert(dbc, rec); err != nil {
		return nil, fmt.Errorf("store script: %w", err)
	}
	s.log.Info("release script updated", "repository", repositoryKey, "steps", len(script.Steps), "units", len(script.Files))
	return script, nil
}
