package layout

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/sanitize"
)

const (
	// ProjectsRoot is the top-level directory for nested project storage.
	ProjectsRoot = "projects"

	// UnknownPhaseDir replaces a phase key that sanitizes to nothing.
	UnknownPhaseDir = "other"
)

// Budgets holds the byte budgets handed to the sanitizer. Zero values use
// the sanitize package defaults.
type Budgets struct {
	Filename int
	Slug     int
	Segment  int
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithLogger sets the logger used for unknown-phase and fallback warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Deriver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithBudgets overrides the sanitizer budgets.
func WithBudgets(b Budgets) Option {
	return func(d *Deriver) {
		d.budgets = b
	}
}

// Deriver computes canonical attachment paths. It is safe for concurrent use.
type Deriver struct {
	phases  *PhaseTable
	budgets Budgets
	logger  *zap.Logger
}

// NewDeriver creates a Deriver over the given phase table.
func NewDeriver(phases *PhaseTable, opts ...Option) *Deriver {
	d := &Deriver{
		phases: phases,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Phases returns the table the Deriver was built with.
func (d *Deriver) Phases() *PhaseTable {
	return d.phases
}

// Derive returns the relative storage path for a file:
//
//	projects/project_{id}_{slug}/{phase-dir}/[{subfolder}/]{filename}
//
// An unknown phase uses the sanitized phase key as its directory. subfolder
// may span several levels ("a/b"); each level is sanitized on its own.
func (d *Deriver) Derive(projectID uint, projectName, phase, filename, subfolder string) string {
	parts := []string{ProjectsRoot, d.ProjectDir(projectID, projectName), d.PhaseDir(phase)}
	parts = append(parts, d.SubfolderSegments(subfolder)...)
	parts = append(parts, sanitize.Filename(filename, d.budgets.Filename))
	return strings.Join(parts, "/")
}

// SubfolderSegments splits and sanitizes subfolder with the deriver's
// segment budget.
func (d *Deriver) SubfolderSegments(subfolder string) []string {
	return sanitize.SplitSegments(subfolder, d.budgets.Segment)
}

// DeriveFor derives the path for a file owned by owner. When owner is nil or
// cannot resolve its project, the flat legacy path "{phase}/main/{filename}"
// is returned with resolved set to false. It never fails.
func (d *Deriver) DeriveFor(owner Owner, phase, filename, subfolder string) (path string, resolved bool) {
	if owner == nil {
		return d.fallback(phase, filename), false
	}
	id, name, ok := owner.ProjectRef()
	if !ok {
		return d.fallback(phase, filename), false
	}
	return d.Derive(id, name, phase, filename, subfolder), true
}

// ProjectDir returns the project folder name: project_{id}_{slug}, or
// project_{id} when the name has no slug-able characters.
func (d *Deriver) ProjectDir(projectID uint, projectName string) string {
	slug := sanitize.ProjectSlug(projectName, d.budgets.Slug)
	if slug == "" {
		return fmt.Sprintf("project_%d", projectID)
	}
	return fmt.Sprintf("project_%d_%s", projectID, slug)
}

// ProjectRoot returns the project folder relative to the media root.
func (d *Deriver) ProjectRoot(projectID uint, projectName string) string {
	return ProjectsRoot + "/" + d.ProjectDir(projectID, projectName)
}

// PhasePath returns the phase directory of a project relative to the media
// root.
func (d *Deriver) PhasePath(projectID uint, projectName, phase string) string {
	return d.ProjectRoot(projectID, projectName) + "/" + d.PhaseDir(phase)
}

// PhaseDir returns the directory for phase. Unknown keys are logged and used
// verbatim after sanitizing.
func (d *Deriver) PhaseDir(phase string) string {
	if p, ok := d.phases.Lookup(phase); ok {
		return p.Dir
	}
	d.logger.Warn("unknown phase, using raw key as directory", zap.String("phase", phase))
	return rawPhaseDir(phase, d.budgets.Segment)
}

func (d *Deriver) fallback(phase, filename string) string {
	d.logger.Debug("project reference unresolved, using legacy path", zap.String("phase", phase))
	return FallbackPath(phase, filename)
}

// FallbackPath is the flat legacy path "{phase}/main/{filename}".
func FallbackPath(phase, filename string) string {
	return rawPhaseDir(phase, 0) + "/main/" + sanitize.Filename(filename, 0)
}

func rawPhaseDir(phase string, budget int) string {
	if dir := sanitize.Segment(phase, budget); dir != "" {
		return dir
	}
	return UnknownPhaseDir
}
