package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/progress"
	"github.com/Ning0612/Downsort/internal/service"
)

// Format selects the output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses an output format name (case-insensitive)
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

const timeLayout = "2006-01-02 15:04"

type styles struct {
	title    lipgloss.Style
	group    lipgloss.Style
	dim      lipgloss.Style
	warning  lipgloss.Style
	original lipgloss.Style
	exact    lipgloss.Style
	numbered lipgloss.Style
	unknown  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Foreground(lipgloss.Color("#B8BB26")).Bold(true),
		group:    r.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Bold(true),
		dim:      r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("#F87171")),
		original: r.NewStyle().Foreground(lipgloss.Color("#E2E8F0")).Bold(true),
		exact:    r.NewStyle().Foreground(lipgloss.Color("#34D399")),
		numbered: r.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		unknown:  r.NewStyle().Foreground(lipgloss.Color("#F87171")),
	}
}

// Renderer writes query results in one format
type Renderer struct {
	w      io.Writer
	format Format
	styles styles
}

// New creates a renderer. Colors are only emitted when w is a terminal.
func New(w io.Writer, format Format) *Renderer {
	return &Renderer{
		w:      w,
		format: format,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Files renders a ListAll result
func (r *Renderer) Files(res *service.FilesResult) error {
	if r.format != FormatText {
		return r.encode(res)
	}

	r.line(r.styles.title.Render(fmt.Sprintf("%s  (%d files)", res.Root, len(res.Files))))
	r.fileTable(res.Files, "  ")
	r.warnings(res.Warnings)
	return nil
}

// Groups renders a ListByExtension or ListByDate result
func (r *Renderer) Groups(res *service.GroupsResult) error {
	if r.format != FormatText {
		return r.encode(res)
	}

	r.line(r.styles.title.Render(fmt.Sprintf("%s  (%d groups)", res.Root, len(res.Groups))))
	for _, g := range res.Groups {
		r.line("")
		r.line(r.styles.group.Render(g.Key) + r.styles.dim.Render(
			fmt.Sprintf("  %d files, %s", len(g.Files), progress.FormatBytes(g.TotalSize()))))
		r.fileTable(g.Files, "  ")
	}
	r.warnings(res.Warnings)
	return nil
}

// Duplicates renders a FindDuplicates result
func (r *Renderer) Duplicates(res *service.DuplicatesResult) error {
	if r.format != FormatText {
		return r.encode(res)
	}

	r.line(r.styles.title.Render(fmt.Sprintf("%s  (%d duplicate groups, %s reclaimable)",
		res.Root, len(res.Groups), progress.FormatBytes(res.ReclaimableBytes))))
	if len(res.Groups) == 0 {
		r.line(r.styles.dim.Render("No duplicates found."))
	}

	for _, g := range res.Groups {
		r.line("")
		r.line(r.styles.group.Render(g.OriginalName) + r.styles.dim.Render(
			fmt.Sprintf("  %d files, %s", len(g.Files), progress.FormatBytes(g.TotalSize))))

		nameWidth := 0
		for _, f := range g.Files {
			nameWidth = max(nameWidth, lipgloss.Width(f.RelPath))
		}
		for _, f := range g.Files {
			role := r.roleStyle(f.DuplicateType).Width(9).Render(string(f.DuplicateType))
			r.line(fmt.Sprintf("  %s %s  %s  %s",
				role,
				lipgloss.NewStyle().Width(nameWidth).Render(f.RelPath),
				r.size(f.Size),
				r.styles.dim.Render(f.Modified.Format(timeLayout)),
			))
		}
	}
	r.warnings(res.Warnings)
	return nil
}

// History renders scan history records, newest first
func (r *Renderer) History(records []history.Record) error {
	if r.format != FormatText {
		if records == nil {
			records = []history.Record{}
		}
		return r.encode(records)
	}

	if len(records) == 0 {
		r.line(r.styles.dim.Render("No history recorded."))
		return nil
	}
	for _, rec := range records {
		status := r.styles.exact
		switch rec.Status {
		case history.StatusPartial:
			status = r.styles.numbered
		case history.StatusFailed:
			status = r.styles.unknown
		}
		line := fmt.Sprintf("%s  %s  %-17s %s  files=%d groups=%d warnings=%d  %s",
			r.styles.dim.Render(rec.StartTime.Local().Format(timeLayout)),
			status.Width(7).Render(string(rec.Status)),
			rec.Operation,
			rec.Root,
			rec.Files, rec.Groups, rec.Warnings,
			rec.Duration().Round(time.Millisecond),
		)
		if rec.Error != "" {
			line += "  " + r.styles.warning.Render(rec.Error)
		}
		r.line(line)
	}
	return nil
}

func (r *Renderer) roleStyle(t domain.DuplicateType) lipgloss.Style {
	switch t {
	case domain.DuplicateOriginal:
		return r.styles.original
	case domain.DuplicateExact:
		return r.styles.exact
	case domain.DuplicateNumbered:
		return r.styles.numbered
	default:
		return r.styles.unknown
	}
}

func (r *Renderer) fileTable(files []domain.FileDescriptor, indent string) {
	nameWidth := 0
	for _, f := range files {
		nameWidth = max(nameWidth, lipgloss.Width(f.RelPath))
	}
	for _, f := range files {
		r.line(fmt.Sprintf("%s%s  %s  %s",
			indent,
			lipgloss.NewStyle().Width(nameWidth).Render(f.RelPath),
			r.size(f.Size),
			r.styles.dim.Render(f.Modified.Format(timeLayout)),
		))
	}
}

func (r *Renderer) size(n int64) string {
	return lipgloss.NewStyle().Width(9).Align(lipgloss.Right).Render(progress.FormatBytes(n))
}

func (r *Renderer) warnings(warnings []domain.ScanWarning) {
	if len(warnings) == 0 {
		return
	}
	r.line("")
	r.line(r.styles.warning.Render(fmt.Sprintf("%d warnings", len(warnings))))
	for _, w := range warnings {
		r.line("  " + r.styles.warning.Render(w.String()))
	}
}

func (r *Renderer) line(s string) {
	fmt.Fprintln(r.w, s)
}

func (r *Renderer) encode(v any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", r.format)
}
