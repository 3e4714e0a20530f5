package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/service"
)

var scanned = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func file(name string, size int64) domain.FileDescriptor {
	return domain.FileDescriptor{
		Name:     name,
		Path:     "/dl/" + name,
		RelPath:  name,
		Size:     size,
		Modified: scanned.Add(-time.Hour),
	}
}

func duplicates() *service.DuplicatesResult {
	return &service.DuplicatesResult{
		Root:      "/dl",
		ScannedAt: scanned,
		Groups: []domain.DuplicateGroup{{
			OriginalName: "a.txt",
			TotalSize:    2048,
			Files: []domain.DuplicateFile{
				{FileDescriptor: file("a.txt", 1024), DuplicateType: domain.DuplicateOriginal},
				{FileDescriptor: file("a (1).txt", 1024), DuplicateType: domain.DuplicateExact},
			},
		}},
		ReclaimableBytes: 1024,
		Warnings: []domain.ScanWarning{
			{Path: "/dl/locked.bin", Op: domain.OpFingerprint, Err: "permission denied"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuplicates_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatText).Duplicates(duplicates()); err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"1 duplicate groups, 1.0 KB reclaimable",
		"a.txt",
		"original",
		"exact",
		"a (1).txt",
		"1 warnings",
		"fingerprint /dl/locked.bin: permission denied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Non-terminal writers get no escape sequences
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected ANSI codes in output: %q", out)
	}
}

func TestDuplicates_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, FormatText).Duplicates(&service.DuplicatesResult{Root: "/dl"})

	if !strings.Contains(buf.String(), "No duplicates found.") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestDuplicates_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatJSON).Duplicates(duplicates()); err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["reclaimable_bytes"].(float64) != 1024 {
		t.Errorf("reclaimable_bytes = %v", decoded["reclaimable_bytes"])
	}

	groups := decoded["groups"].([]any)
	group := groups[0].(map[string]any)
	if group["original_name"] != "a.txt" || group["total_size"].(float64) != 2048 {
		t.Errorf("group = %v", group)
	}
	member := group["files"].([]any)[1].(map[string]any)
	if member["duplicate_type"] != "exact" || member["name"] != "a (1).txt" {
		t.Errorf("member = %v", member)
	}
	if _, ok := member["modified"]; !ok {
		t.Error("member missing modified")
	}
}

func TestDuplicates_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatYAML).Duplicates(duplicates()); err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}

	var decoded struct {
		Groups []struct {
			OriginalName string `yaml:"original_name"`
			Files        []struct {
				Name          string `yaml:"name"`
				DuplicateType string `yaml:"duplicate_type"`
			} `yaml:"files"`
		} `yaml:"groups"`
		Warnings []domain.ScanWarning `yaml:"warnings"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if len(decoded.Groups) != 1 || decoded.Groups[0].Files[0].DuplicateType != "original" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Groups[0].Files[1].Name != "a (1).txt" {
		t.Errorf("inline descriptor fields missing: %+v", decoded.Groups[0].Files[1])
	}
	if len(decoded.Warnings) != 1 || decoded.Warnings[0].Op != domain.OpFingerprint {
		t.Errorf("warnings = %+v", decoded.Warnings)
	}
}

func TestGroups_Text(t *testing.T) {
	res := &service.GroupsResult{
		Root: "/dl",
		Groups: []domain.FileGroup{
			{Key: "pdf", Files: []domain.FileDescriptor{file("b.pdf", 2048), file("a-long-name.pdf", 10)}},
			{Key: domain.NoExtension, Files: []domain.FileDescriptor{file("README", 5)}},
		},
	}

	var buf bytes.Buffer
	if err := New(&buf, FormatText).Groups(res); err != nil {
		t.Fatalf("Groups() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"(2 groups)", "pdf  2 files, 2.0 KB", "no-extension  1 files, 5 B", "a-long-name.pdf"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "warnings") {
		t.Errorf("unexpected warnings section:\n%s", out)
	}
}

func TestFiles_Formats(t *testing.T) {
	res := &service.FilesResult{Root: "/dl", ScannedAt: scanned, Files: []domain.FileDescriptor{file("a.txt", 3)}}

	var text bytes.Buffer
	New(&text, FormatText).Files(res)
	if !strings.Contains(text.String(), "(1 files)") || !strings.Contains(text.String(), "3 B") {
		t.Errorf("text output = %s", text.String())
	}

	var js bytes.Buffer
	New(&js, FormatJSON).Files(res)
	if !strings.Contains(js.String(), `"rel_path": "a.txt"`) {
		t.Errorf("json output = %s", js.String())
	}
}

func TestHistory(t *testing.T) {
	records := []history.Record{
		{
			Operation: service.OpFindDuplicates,
			Root:      "/dl",
			StartTime: scanned,
			EndTime:   scanned.Add(1500 * time.Millisecond),
			Status:    history.StatusFailed,
			Error:     "path not found",
		},
	}

	var buf bytes.Buffer
	if err := New(&buf, FormatText).History(records); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"failed", "find_duplicates", "/dl", "1.5s", "path not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	New(&buf, FormatJSON).History(nil)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON history = %q", buf.String())
	}

	buf.Reset()
	New(&buf, FormatText).History(nil)
	if !strings.Contains(buf.String(), "No history recorded.") {
		t.Errorf("empty text history = %q", buf.String())
	}
}
