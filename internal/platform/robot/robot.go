// Package robot drives the ROBOT command line tool that builds and merges
// OWL files. Failures come back as *ToolError with the captured output.
package robot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/yungbote/ontorelease/internal/platform/logger"
)

// ToolError is a nonzero exit of the build tool.
type ToolError struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return fmt.Sprintf("%s exited with %d: %s", e.Command, e.ExitCode, msg)
}

// Runner executes one command. Swapped out in tests.
type Runner interface {
	Run(ctx context.Context, name string, args, env []string) (stdout, stderr string, exitCode int, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args, env []string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.String(), stderr.String(), -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}

type Config struct {
	Bin      string
	JavaArgs string
}

type Tool struct {
	cfg    Config
	log    *logger.Logger
	runner Runner
}

func New(cfg Config, log *logger.Logger) *Tool {
	if cfg.Bin == "" {
		cfg.Bin = "robot"
	}
	return &Tool{cfg: cfg, log: log.With("client", "ROBOT"), runner: execRunner{}}
}

// WithRunner returns a copy using r to execute commands.
func (t *Tool) WithRunner(r Runner) *Tool {
	c := *t
	c.runner = r
	return &c
}

// Available reports whether the binary can be found.
func (t *Tool) Available() bool {
	if t == nil {
		return false
	}
	if _, ok := t.runner.(execRunner); !ok {
		return true
	}
	_, err := exec.LookPath(t.cfg.Bin)
	return err == nil
}

func (t *Tool) run(ctx context.Context, args []string) error {
	var env []string
	if t.cfg.JavaArgs != "" {
		env = append(env, "ROBOT_JAVA_ARGS="+t.cfg.JavaArgs)
	}
	command := t.cfg.Bin + " " + strings.Join(args, " ")
	t.log.Debug("running build tool", "command", command)
	stdout, stderr, code, err := t.runner.Run(ctx, t.cfg.Bin, args, env)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ToolError{Command: command, ExitCode: code, Stdout: stdout, Stderr: stderr + err.Error()}
	}
	if code != 0 {
		return &ToolError{Command: command, ExitCode: code, Stdout: stdout, Stderr: stderr}
	}
	return nil
}

type Intermediates string

const (
	IntermediatesAll     Intermediates = "all"
	IntermediatesMinimal Intermediates = "minimal"
)

type ExtractRequest struct {
	InputIRI      string
	InputFile     string
	UpperTerm     string
	LowerTerms    []string
	Intermediates Intermediates
	Output        string
	// Work is a directory for the term list file.
	Work string
}

// Extract pulls the ancestor slice of the lower terms up to the upper term.
func (t *Tool) Extract(ctx context.Context, req ExtractRequest) error {
	if len(req.LowerTerms) == 0 {
		return fmt.Errorf("robot extract: no lower terms")
	}
	termsFile, err := os.CreateTemp(req.Work, "lower-terms-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(termsFile.Name())
	if _, err := termsFile.WriteString(strings.Join(req.LowerTerms, "\n") + "\n"); err != nil {
		termsFile.Close()
		return err
	}
	if err := termsFile.Close(); err != nil {
		return err
	}

	args := []string{"extract", "--method", "MIREOT"}
	if req.InputFile != "" {
		args = append(args, "--input", req.InputFile)
	} else {
		args = append(args, "--input-iri", req.InputIRI)
	}
	if req.UpperTerm != "" {
		args = append(args, "--upper-term", req.UpperTerm)
	}
	inter := req.Intermediates
	if inter == "" {
		inter = IntermediatesAll
	}
	args = append(args, "--lower-terms", termsFile.Name(), "--intermediates", string(inter), "--output", req.Output)
	return t.run(ctx, args)
}

type MergeRequest struct {
	Inputs      []string
	OntologyIRI string
	VersionIRI  string
	Annotations map[string]string
	// Collapse inlines the import closure of the inputs.
	Collapse bool
	Output   string
}

func (t *Tool) Merge(ctx context.Context, req MergeRequest) error {
	if len(req.Inputs) == 0 {
		return fmt.Errorf("robot merge: no inputs")
	}
	args := []string{"merge"}
	for _, in := range req.Inputs {
		args = append(args, "--input", in)
	}
	if req.Collapse {
		args = append(args, "--collapse-import-closure", "true")
	}
	args = append(args, annotateArgs(req.OntologyIRI, req.VersionIRI, req.Annotations)...)
	args = append(args, "--output", req.Output)
	return t.run(ctx, args)
}

type TemplateRequest struct {
	Template    string
	Prefixes    map[string]string
	Inputs      []string
	OntologyIRI string
	VersionIRI  string
	Annotations map[string]string
	Output      string
}

// Template builds one OWL file from a template. Inputs are dependency files
// used to look up labels; they are not merged into the output.
func (t *Tool) Template(ctx context.Context, req TemplateRequest) error {
	args := []string{"template"}
	for _, in := range req.Inputs {
		args = append(args, "--input", in)
	}
	keys := make([]string, 0, len(req.Prefixes))
	for k := range req.Prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--prefix", k+": "+req.Prefixes[k])
	}
	args = append(args, "--template", req.Template)
	args = append(args, annotateArgs(req.OntologyIRI, req.VersionIRI, req.Annotations)...)
	args = append(args, "--output", req.Output)
	return t.run(ctx, args)
}

func annotateArgs(ontologyIRI, versionIRI string, annotations map[string]string) []string {
	if ontologyIRI == "" && versionIRI == "" && len(annotations) == 0 {
		return nil
	}
	args := []string{"annotate"}
	if ontologyIRI != "" {
		args = append(args, "--ontology-iri", ontologyIRI)
	}
	if versionIRI != "" {
		args = append(args, "--version-iri", versionIRI)
	}
	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--annotation", k, annotations[k])
	}
	return args
}
