package services

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/jobs/steps"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

const releaseStepsEnv = "RELEASE_STEPS_YAML"

//go:embed release_steps.yaml
var releaseStepsFS embed.FS

// fallback used when the YAML is missing or invalid
var fallbackSteps = []release.StepSpec{
	{Name: steps.NamePreparation},
	{Name: steps.NameValidation},
	{Name: steps.NameImportExternal},
	{Name: steps.NameBuild},
	{Name: steps.NameMerge},
	{Name: steps.NameHumanVerification},
	{Name: steps.NameGithubPublish},
}

type yamlReleaseSteps struct {
	Release string         `yaml:"release"`
	Version int            `yaml:"version"`
	Steps   []yamlStepSpec `yaml:"steps"`
}

type yamlStepSpec struct {
	Name    string         `yaml:"name"`
	Enabled *bool          `yaml:"enabled"`
	Args    map[string]any `yaml:"args"`
}

var (
	stepsOnce  sync.Once
	stepsCache []release.StepSpec
	stepsErr   error
)

// DefaultSteps is the step list given to repositories without a stored script.
func DefaultSteps(log *logger.Logger) []release.StepSpec {
	stepsOnce.Do(func() {
		stepsCache, stepsErr = loadReleaseSteps()
	})
	if stepsErr != nil {
		if log != nil {
			log.Warn("release steps: spec load failed; using fallback", "error", stepsErr)
		}
		return append([]release.StepSpec(nil), fallbackSteps...)
	}
	return append([]release.StepSpec(nil), stepsCache...)
}

func loadReleaseSteps() ([]release.StepSpec, error) {
	data, err := readReleaseSteps()
	if err != nil {
		return nil, err
	}
	return parseReleaseSteps(data)
}

func parseReleaseSteps(data []byte) ([]release.StepSpec, error) {
	var spec yamlReleaseSteps
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Release) != "ontology" {
		return nil, fmt.Errorf("unexpected release kind: %s", spec.Release)
	}
	if len(spec.Steps) == 0 {
		return nil, errors.New("no steps defined")
	}
	seen := map[string]bool{}
	var out []release.StepSpec
	for _, st := range spec.Steps {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			return nil, errors.New("step name is required")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate step name: %s", name)
		}
		seen[name] = true
		if st.Enabled != nil && !*st.Enabled {
			continue
		}
		out = append(out, release.StepSpec{Name: name, Args: st.Args})
	}
	if len(out) == 0 {
		return nil, errors.New("every step is disabled")
	}
	return out, nil
}

func readReleaseSteps() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(releaseStepsEnv)); path != "" {
		return os.ReadFile(path)
	}
	return releaseStepsFS.ReadFile("release_steps.yaml")
}
