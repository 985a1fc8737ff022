// Package view renders releases, cached archives and upgrade reports as
// styled tables or JSON.
package view

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/frederic-klein/phpfarm/internal/registry"
	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/upgrade"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// SuccessStyle marks completed work.
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	// WarningStyle marks results that need attention.
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// Renderer writes either tables or JSON to w.
type Renderer struct {
	w    io.Writer
	json bool
}

// New creates a renderer; asJSON selects JSON output.
func New(w io.Writer, asJSON bool) *Renderer {
	return &Renderer{w: w, json: asJSON}
}

// JSON reports whether the renderer emits JSON.
func (r *Renderer) JSON() bool {
	return r.json
}

func (r *Renderer) table(headers []string, rows [][]string, dimCols ...int) error {
	dim := make(map[int]bool, len(dimCols))
	for _, c := range dimCols {
		dim[c] = true
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case dim[col]:
				return dimStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(r.w, t.Render())
	return err
}

func (r *Renderer) encode(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type releaseJSON struct {
	Version    string              `json:"version"`
	Branch     string              `json:"branch"`
	PreRelease bool                `json:"prerelease"`
	Origin     release.Origin      `json:"origin"`
	Date       *time.Time          `json:"date,omitempty"`
	URL        string              `json:"url,omitempty"`
	SHA256     string              `json:"sha256,omitempty"`
	Size       int64               `json:"size,omitempty"`
	Extension  release.Compression `json:"extension"`
}

// Releases renders upstream releases, showing the source for c.
func (r *Renderer) Releases(entries []release.Entry, c release.Compression) error {
	if r.json {
		out := make([]releaseJSON, 0, len(entries))
		for _, e := range entries {
			src, _ := e.Source(c)
			j := releaseJSON{
				Version:    e.Version.String(),
				Branch:     e.Version.Branch().String(),
				PreRelease: e.Version.IsPreRelease(),
				Origin:     e.Origin,
				URL:        src.URL,
				SHA256:     src.SHA256,
				Size:       src.Size,
				Extension:  c,
			}
			if !e.Date.IsZero() {
				d := e.Date
				j.Date = &d
			}
			out = append(out, j)
		}
		return r.encode(out)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		src, ok := e.Source(c)
		url := src.URL
		if !ok {
			url = "(no ." + string(c) + " archive)"
		}
		rows = append(rows, []string{e.Version.String(), string(e.Origin), Date(e.Date), url})
	}
	return r.table([]string{"VERSION", "ORIGIN", "RELEASED", "ARCHIVE"}, rows, 3)
}

type archiveJSON struct {
	Version   string              `json:"version"`
	Extension release.Compression `json:"extension"`
	Path      string              `json:"path"`
	Size      int64               `json:"size"`
	Modified  time.Time           `json:"modified"`
}

// Archives renders the registry contents.
func (r *Renderer) Archives(archives []registry.Archive) error {
	if r.json {
		out := make([]archiveJSON, 0, len(archives))
		for _, a := range archives {
			out = append(out, archiveJSON{
				Version:   a.Key.Version.String(),
				Extension: a.Key.Compression,
				Path:      a.Path,
				Size:      a.Size,
				Modified:  a.ModTime,
			})
		}
		return r.encode(out)
	}

	rows := make([][]string, 0, len(archives))
	for _, a := range archives {
		rows = append(rows, []string{a.Key.Version.String(), string(a.Key.Compression), Size(a.Size), Date(a.ModTime), a.Path})
	}
	return r.table([]string{"VERSION", "EXT", "SIZE", "CACHED", "PATH"}, rows, 4)
}

// Path is one version-to-path result, as printed by download and extract.
type Path struct {
	Version string `json:"version"`
	Path    string `json:"path"`
	Cached  bool   `json:"cached,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Paths renders version/path pairs as tab separated lines.
func (r *Renderer) Paths(paths []Path) error {
	if r.json {
		return r.encode(paths)
	}
	for _, p := range paths {
		if p.Error != "" {
			if _, err := fmt.Fprintf(r.w, "%s\t%s\n", p.Version, ErrorStyle.Render(p.Error)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(r.w, "%s\t%s\n", p.Version, p.Path); err != nil {
			return err
		}
	}
	return nil
}

type reportJSON struct {
	Tree       string `json:"tree"`
	From       string `json:"from"`
	To         string `json:"to,omitempty"`
	State      string `json:"state"`
	FailedAt   string `json:"failed_at,omitempty"`
	NewPath    string `json:"new_path,omitempty"`
	BackupPath string `json:"backup_path,omitempty"`
	BackedUp   int    `json:"backed_up"`
	Removed    bool   `json:"removed"`
	Error      string `json:"error,omitempty"`
}

// Reports renders the outcome of an upgrade run.
func (r *Renderer) Reports(reports []upgrade.Report) error {
	if r.json {
		out := make([]reportJSON, 0, len(reports))
		for _, rep := range reports {
			j := reportJSON{
				Tree:       rep.Tree.Path,
				From:       rep.From.String(),
				State:      rep.State.String(),
				NewPath:    rep.NewPath,
				BackupPath: rep.BackupPath,
				BackedUp:   rep.BackedUp,
				Removed:    rep.Removed,
			}
			if rep.To != nil {
				j.To = rep.To.String()
			}
			if rep.Err != nil {
				j.FailedAt = rep.FailedAt.String()
				j.Error = rep.Err.Error()
			}
			out = append(out, j)
		}
		return r.encode(out)
	}

	for _, rep := range reports {
		if _, err := fmt.Fprintln(r.w, summary(rep)); err != nil {
			return err
		}
	}
	return nil
}

func summary(rep upgrade.Report) string {
	name := rep.Tree.Name()
	switch rep.State {
	case upgrade.UpToDate:
		return SuccessStyle.Render("✓ ") + fmt.Sprintf("%s is already up to date", name)
	case upgrade.Failed:
		return ErrorStyle.Render("✗ ") + fmt.Sprintf("%s: %s failed: %v", name, rep.FailedAt, rep.Err)
	}

	s := fmt.Sprintf("%s upgraded to %s at %s", name, rep.To, rep.NewPath)
	if rep.BackedUp > 0 {
		s += fmt.Sprintf(", %d local file(s) saved in %s", rep.BackedUp, rep.BackupPath)
	}
	if !rep.Removed {
		return WarningStyle.Render("! ") + s + "; old tree kept at " + rep.Tree.Path
	}
	return SuccessStyle.Render("✓ ") + s
}

// Size formats a byte count with binary units.
func Size(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// Date formats a release or cache date; the zero time renders as "-".
func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
