package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		outputFormat, planFile, configPath = "", "", ""
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "songgen dev") {
		t.Errorf("version = %q", out)
	}

	out, err = run(t, "version", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil || info["version"] != "dev" {
		t.Errorf("version json = %q, %v", out, err)
	}
}

func TestPlanFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	os.WriteFile(path, []byte("sections:\n  - {name: intro, repeats: 1}\n  - {name: drop, repeats: 4}\n"), 0o644)

	out, err := run(t, "plan", "--file", path, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Sections []struct {
			Name    string `json:"name"`
			Repeats int    `json:"repeats"`
		} `json:"sections"`
		Steps int `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("plan json %q: %v", out, err)
	}
	if got.Steps != 5 || len(got.Sections) != 2 || got.Sections[1].Name != "drop" {
		t.Errorf("plan = %+v", got)
	}

	out, err = run(t, "plan", "--file", path, "-o", "text")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "drop ×4") || !strings.Contains(out, "5 steps") {
		t.Errorf("plan text = %q", out)
	}
}

func TestPlanFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songgen.yaml")
	os.WriteFile(path, []byte("plan:\n  sections:\n    - {name: loop, repeats: 2}\n"), 0o644)
	out, err := run(t, "--config", path, "plan", "-o", "text")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "loop ×2") {
		t.Errorf("plan text = %q", out)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if _, err := run(t, "version", "-o", "xml"); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestGenerateWithoutModelFails(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "songgen.yaml")
	os.WriteFile(cfg, []byte("storage:\n  dir: "+filepath.Join(dir, "models")+"\ncache_dir: \"\"\n"), 0o644)
	out, err := run(t, "--config", cfg, "generate", "-o", "json")
	if err == nil {
		t.Fatal("expected error without a trained model")
	}
	if !strings.Contains(out, `"error"`) {
		t.Errorf("response missing error field: %s", out)
	}
}
