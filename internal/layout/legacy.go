package layout

import (
	"path"
	"strconv"
	"strings"
)

// Template placeholders.
const (
	placeholderProjectID = "{project_id}"
	placeholderFilename  = "{filename}"
)

// legacyTemplates lists the pre-reorganization upload locations per phase.
// The first entry is the primary template.
var legacyTemplates = map[string][]string{
	PhaseSitePlan:  {"siteplans/applications/{project_id}/{filename}"},
	PhaseLicensing: {"licenses/{project_id}/{filename}"},
	PhaseAwarding:  {"awarding/{filename}"},
	PhaseExecution: {"contracts/start_orders/{filename}"},
	PhaseOwners:    {"owners/ids/{project_id}/{filename}"},
	PhaseContracts: {
		"contracts/main/{filename}",
		"contracts/appendix/{filename}",
		"contracts/explanations/{filename}",
		"contracts/start_orders/{filename}",
		"contracts/quantities/{filename}",
		"contracts/materials/{filename}",
		"contracts/price_offer/{filename}",
		"contracts/drawings/{filename}",
		"contracts/specifications/{filename}",
	},
	PhasePayments: {
		"payments/invoices/{filename}",
		"payments/bank_attachments/{filename}",
		"payments/deposit_slips/{filename}",
		"payments/receipts/{filename}",
	},
	PhaseVariationOrders: {"variations/invoices/{filename}"},
}

// LegacyResolver maps old-scheme phase keys to their flat path templates.
// It is used only to find files written before the nested layout.
type LegacyResolver struct {
	templates map[string][]string
}

// NewLegacyResolver returns a resolver over the built-in templates.
func NewLegacyResolver() *LegacyResolver {
	return &LegacyResolver{templates: legacyTemplates}
}

// Template returns the primary template for phase. For keys without a
// registered template the generic "{phase}/main/{filename}" form is returned
// with ok set to false.
func (r *LegacyResolver) Template(phase string) (string, bool) {
	if ts, ok := r.templates[phase]; ok {
		return ts[0], true
	}
	return genericTemplate(phase), false
}

func genericTemplate(phase string) string {
	return rawPhaseDir(phase, 0) + "/main/" + placeholderFilename
}

// Resolve fills the primary template for phase. ok is false when the phase has
// no registered template (the generic path is still returned) or when the
// template needs a project ID and projectID is zero (path is empty).
func (r *LegacyResolver) Resolve(phase string, projectID uint, filename string) (string, bool) {
	tmpl, known := r.Template(phase)
	p, filled := fill(tmpl, projectID, filename)
	if !filled {
		return "", false
	}
	return p, known
}

// Candidates returns every legacy location a file of this phase may occupy,
// primary template first and the generic fallback last. Duplicates and
// templates that cannot be filled are skipped.
func (r *LegacyResolver) Candidates(phase string, projectID uint, filename string) []string {
	templates := append([]string(nil), r.templates[phase]...)
	templates = append(templates, genericTemplate(phase))

	seen := make(map[string]struct{}, len(templates))
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		p, ok := fill(t, projectID, filename)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// fill substitutes placeholders. Only the base name of filename is used so a
// stored value cannot climb out of the template directory.
func fill(tmpl string, projectID uint, filename string) (string, bool) {
	if strings.Contains(tmpl, placeholderProjectID) {
		if projectID == 0 {
			return "", false
		}
		tmpl = strings.ReplaceAll(tmpl, placeholderProjectID, strconv.FormatUint(uint64(projectID), 10))
	}
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return "", false
	}
	return strings.ReplaceAll(tmpl, placeholderFilename, base), true
}
