package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/domain/term"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/observability"
	"github.com/yungbote/ontorelease/internal/platform/apierr"
	"github.com/yungbote/ontorelease/internal/platform/robot"
)

const (
	NamePreparation       = "PREPARATION"
	NameValidation        = "VALIDATION"
	NameImportExternal    = "IMPORT_EXTERNAL"
	NameBuild             = "BUILD"
	NameMerge             = "MERGE"
	NameHumanVerification = "HUMAN_VERIFICATION"
	NameGithubPublish     = "GITHUB_PUBLISH"
	NameGraphExport       = "GRAPH_EXPORT"
	NameBucketPublish     = "BUCKET_PUBLISH"
)

const (
	sourceDir = "src"
	buildDir  = "build"
	finalDir  = "final"
)

// canceled maps context cancellation onto the step cancel signal.
func canceled(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, runtime.ErrCanceled) || ctx.Err() != nil {
		return runtime.ErrCanceled
	}
	return nil
}

// toolDiagnostic turns a build tool failure into a single error finding.
// Cancellation passes through as an error.
func toolDiagnostic(ctx *runtime.Context, subject string, err error) (diagnostics.Diagnostic, error) {
	if c := canceled(ctx.Ctx, err); c != nil {
		return diagnostics.Diagnostic{}, c
	}
	cmd := "robot"
	var te *robot.ToolError
	if errors.As(err, &te) {
		cmd = te.Command
	}
	observability.Current().IncToolFailure(cmd)
	ctx.Log.Warn("build tool failed", "subject", subject, "error", err)
	return diagnostics.New(diagnostics.ToolFailure, term.Identifier{Label: subject}, term.Origin{},
		"%s: %v", subject, err), nil
}

// transportDiagnostic reports a source control failure with its normalised
// status and body.
func transportDiagnostic(ctx *runtime.Context, what string, err error) (diagnostics.Diagnostic, error) {
	if c := canceled(ctx.Ctx, err); c != nil {
		return diagnostics.Diagnostic{}, c
	}
	status := apierr.Status(err)
	body := ""
	var ae *apierr.Error
	if errors.As(err, &ae) {
		body = ae.Body
	}
	ctx.Log.Warn("source control request failed", "what", what, "status", status, "error", err)
	return diagnostics.New(diagnostics.TransportError, term.Identifier{Label: what}, term.Origin{},
		"%s failed (status %d): %s", what, status, firstNonEmpty(body, err.Error())), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

// sourceRoot is where the release keeps its source files.
func sourceRoot(ctx *runtime.Context) string {
	if ctx.SourceRoot != "" {
		return ctx.SourceRoot
	}
	return filepath.Join(ctx.WorkDir, sourceDir)
}

// unitOutput is the built file of a unit inside the working directory.
func unitOutput(ctx *runtime.Context, unit string) string {
	u := ctx.Script.Files[unit]
	name := u.Target.File
	if name == "" {
		name = unit + ".owl"
	}
	return filepath.Join(ctx.WorkDir, buildDir, filepath.FromSlash(name))
}

// externalOutput is where ImportExternal leaves the merged imports.
func externalOutput(ctx *runtime.Context) string {
	name := ctx.Script.External.Target.File
	if name == "" {
		name = "external.owl"
	}
	return filepath.Join(ctx.WorkDir, buildDir, filepath.FromSlash(name))
}

func hasExternalImports(ctx *runtime.Context) bool {
	return len(ctx.Script.External.Sources) > 0
}
