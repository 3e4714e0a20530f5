package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/service"
	"github.com/Ning0612/Downsort/internal/testutil"
)

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T, files ...testutil.File) env {
	t.Helper()

	dir := testutil.OSTree(t, files...)
	data := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`scan:
  root: %q
log:
  level: error
history:
  enabled: true
  dir: %q
`, dir, data)
	if err := os.WriteFile(cfg, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env{dir: dir, config: cfg}
}

func (e env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", e.config}, args...)
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func downloads() []testutil.File {
	return []testutil.File{
		{Name: "invoice.pdf", Content: "invoice 2026"},
		{Name: "invoice (1).pdf", Content: "invoice 2026"},
		{Name: "photo.JPG", Content: "jpeg bytes"},
		{Name: "notes", Content: "no extension"},
		{Name: "old/archive.tar.gz", Content: "tarball"},
	}
}

func TestList_JSON(t *testing.T) {
	e := newEnv(t, downloads()...)

	out, _, err := e.run(t, "list", "-o", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}

	var res service.FilesResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(res.Files) != 4 {
		t.Errorf("expected 4 top-level files, got %d", len(res.Files))
	}
	if res.Files[0].Name != "invoice (1).pdf" {
		t.Errorf("files not sorted by name: %s first", res.Files[0].Name)
	}
}

func TestList_RecursiveFlag(t *testing.T) {
	e := newEnv(t, downloads()...)

	out, _, err := e.run(t, "list", "-r", "-o", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var res service.FilesResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(res.Files) != 5 {
		t.Errorf("expected 5 files with --recursive, got %d", len(res.Files))
	}
}

func TestByExt_Text(t *testing.T) {
	e := newEnv(t, downloads()...)

	out, _, err := e.run(t, "by-ext")
	if err != nil {
		t.Fatalf("by-ext error = %v", err)
	}
	for _, want := range []string{"pdf", "jpg", "photo.JPG", "notes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestByDate_Mode(t *testing.T) {
	e := newEnv(t, downloads()...)

	out, _, err := e.run(t, "by-date", "--mode", "day", "-o", "yaml")
	if err != nil {
		t.Fatalf("by-date error = %v", err)
	}
	if !strings.Contains(out, "key:") {
		t.Errorf("expected YAML groups:\n%s", out)
	}

	if _, _, err := e.run(t, "by-date", "--mode", "weekly"); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for bad mode, got %v", err)
	}
}

func TestDupes(t *testing.T) {
	e := newEnv(t, downloads()...)
	big := testutil.CreateTestFileWithSize(t, e.dir, "disk.img", 64*1024)
	content, err := os.ReadFile(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, "disk (1).img"), content, 0644); err != nil {
		t.Fatal(err)
	}

	out, stderr, err := e.run(t, "dupes", "--progress", "-o", "json")
	if err != nil {
		t.Fatalf("dupes error = %v", err)
	}

	var res service.DuplicatesResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", res.Groups)
	}
	if res.Groups[0].OriginalName != "disk.img" {
		t.Errorf("largest group should come first, got %s", res.Groups[0].OriginalName)
	}
	want := int64(64*1024 + len("invoice 2026"))
	if res.ReclaimableBytes != want {
		t.Errorf("reclaimable = %d, want %d", res.ReclaimableBytes, want)
	}
	if !strings.Contains(stderr, "files") {
		t.Errorf("expected progress bar on stderr, got %q", stderr)
	}
}

func TestDirArgument(t *testing.T) {
	e := newEnv(t)
	other := testutil.OSTree(t, testutil.File{Name: "elsewhere.txt", Content: "x"})

	out, _, err := e.run(t, "list", other)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "elsewhere.txt") {
		t.Errorf("positional dir not used:\n%s", out)
	}

	out, _, err = e.run(t, "--dir", other, "list")
	if err != nil {
		t.Fatalf("list --dir error = %v", err)
	}
	if !strings.Contains(out, "elsewhere.txt") {
		t.Errorf("--dir not used:\n%s", out)
	}
}

func TestMissingDir(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "list", filepath.Join(e.dir, "nope"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	e := newEnv(t, downloads()...)

	for _, cmd := range []string{"list", "dupes"} {
		if _, _, err := e.run(t, cmd); err != nil {
			t.Fatalf("%s error = %v", cmd, err)
		}
	}

	out, _, err := e.run(t, "history", "-o", "json")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	var records []history.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Operation != service.OpFindDuplicates {
		t.Errorf("newest record first: got %s", records[0].Operation)
	}

	out, _, err = e.run(t, "history", "--this-dir", "-n", "1", "-o", "json")
	if err != nil {
		t.Fatalf("history --this-dir error = %v", err)
	}
	records = nil
	json.Unmarshal([]byte(out), &records)
	if len(records) != 1 {
		t.Errorf("expected 1 record with --limit 1, got %d", len(records))
	}

	if _, _, err := e.run(t, "history", "-n", "0"); err == nil {
		t.Error("expected error for --limit 0")
	}
}

func TestInvalidOutput(t *testing.T) {
	e := newEnv(t)

	if _, _, err := e.run(t, "list", "-o", "xml"); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestServeStatus(t *testing.T) {
	e := newEnv(t)

	out, _, err := e.run(t, "serve", "status")
	if err != nil {
		t.Fatalf("serve status error = %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("unexpected output %q", out)
	}

	if _, _, err := e.run(t, "serve", "stop"); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := execute(context.Background(), []string{"version"}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "downsort "+version) {
		t.Errorf("unexpected output %q", stdout.String())
	}
}
