package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const cliScript = `{
  "fullRepositoryName": "acme/bcio",
  "files": {
    "upper": {"sources": [{"type": "classes", "file": "upper.csv"}], "target": {"file": "upper.owl"}},
    "lower": {"needs": ["upper"], "sources": [{"type": "classes", "file": "lower.csv"}], "target": {"file": "lower.owl"}},
    "side":  {"sources": [{"type": "classes", "file": "side.csv"}], "target": {"file": "side.owl"}}
  },
  "steps": [{"name": "VALIDATION"}, {"name": "BUILD"}]
}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-mode", "test"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestOrderCommand(t *testing.T) {
	dir := writeFiles(t, map[string]string{"script.json": cliScript})
	out, err := run(t, "order", "--script", filepath.Join(dir, "script.json"))
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	lines := strings.Fields(out)
	pos := map[string]int{}
	for i, l := range lines {
		pos[l] = i
	}
	if len(lines) != 3 || pos["upper"] > pos["lower"] {
		t.Fatalf("order output %q", out)
	}

	out, err = run(t, "order", "--waves", "--script", filepath.Join(dir, "script.json"))
	if err != nil || !strings.HasPrefix(out, "1: ") || !strings.Contains(out, "2: lower") {
		t.Fatalf("waves output %q err=%v", out, err)
	}
}

func TestOrderCommandRejectsCycle(t *testing.T) {
	dir := writeFiles(t, map[string]string{"script.json": `{"fullRepositoryName":"a/b","steps":[{"name":"BUILD"}],"files":{
		"a":{"needs":["b"],"sources":[{"type":"classes","file":"a.csv"}],"target":{"file":"a.owl"}},
		"b":{"needs":["a"],"sources":[{"type":"classes","file":"b.csv"}],"target":{"file":"b.owl"}}}}`})
	if _, err := run(t, "order", "--script", filepath.Join(dir, "script.json")); exitCode(err) != 1 {
		t.Fatalf("err = %v, want exit 1", err)
	}
}

func TestValidateCommand(t *testing.T) {
	clean := map[string]string{
		"script.json": cliScript,
		"upper.csv":   "ID,Label,Parent\nBCIO:0000001,intervention,\nBCIO:0000002,behaviour change technique,intervention\n",
		"lower.csv":   "ID,Label,Parent\nBCIO:0000010,goal setting,behaviour change technique\n",
		"side.csv":    "ID,Label,Parent\nBCIO:0000020,setting,\n",
	}
	dir := writeFiles(t, clean)
	out, err := run(t, "validate", "--script", filepath.Join(dir, "script.json"), "--dir", dir)
	if err != nil {
		t.Fatalf("validate clean: %v\n%s", err, out)
	}
	if !strings.Contains(out, "0 errors") {
		t.Fatalf("output %q", out)
	}

	broken := map[string]string{}
	for k, v := range clean {
		broken[k] = v
	}
	broken["lower.csv"] = "ID,Label,Parent\nBCIO:0000010,goal setting,no such parent\n"
	dir = writeFiles(t, broken)
	out, err = run(t, "validate", "--json", "--script", filepath.Join(dir, "script.json"), "--dir", dir)
	if exitCode(err) != 1 {
		t.Fatalf("validate broken err = %v, want exit 1\n%s", err, out)
	}
	if !strings.Contains(out, `"errors"`) || !strings.Contains(out, "no such parent") {
		t.Fatalf("json output %q", out)
	}
}

func TestValidateCommandMissingSheet(t *testing.T) {
	dir := writeFiles(t, map[string]string{"script.json": cliScript})
	out, err := run(t, "validate", "--script", filepath.Join(dir, "script.json"), "--dir", dir)
	if exitCode(err) != 1 || !strings.Contains(out, "source-missing") {
		t.Fatalf("err=%v out=%q", err, out)
	}
}

func TestScriptCommands(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"ok.json":  cliScript,
		"bad.json": `{"fullRepositoryName":"a/b","steps":[{"name":"DEPLOY"}]}`,
	})
	out, err := run(t, "script", "check", "--script", filepath.Join(dir, "ok.json"))
	if err != nil || !strings.HasPrefix(out, "ok: 2 steps, 3 units") {
		t.Fatalf("check ok: %q %v", out, err)
	}
	if _, err := run(t, "script", "check", "--script", filepath.Join(dir, "bad.json")); exitCode(err) != 1 {
		t.Fatalf("check bad err = %v", err)
	}
	out, err = run(t, "script", "default-steps")
	if err != nil || !strings.Contains(out, `"PREPARATION"`) {
		t.Fatalf("default-steps: %q %v", out, err)
	}
}
