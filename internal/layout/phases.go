package layout

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/ahmed20kamel/project-management-api/internal/sanitize"
)

var (
	// ErrUnknownPhase indicates a phase key missing from the table.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrInvalidPhaseDir indicates a directory override that sanitizes to nothing.
	ErrInvalidPhaseDir = errors.New("invalid phase directory")
)

// Current-scheme phase keys.
const (
	PhaseInfo                    = "info"
	PhaseContracts               = "contracts"
	PhaseSchedule                = "schedule"
	PhaseVariationOrders         = "variation-orders"
	PhaseVariationOrdersApproved = "variation-orders-approved"
	PhaseInvoices                = "invoices"
	PhasePayments                = "payments"
)

// Legacy-scheme phase keys.
const (
	PhaseSitePlan  = "site-plan"
	PhaseLicensing = "licensing"
	PhaseAwarding  = "awarding"
	PhaseExecution = "execution"
	PhaseOwners    = "owners"
)

// Subfolders provisioned under the info phase.
const (
	SubfolderSitePlan        = "مخطط الأرض - Site Plan"
	SubfolderOwnerID         = "هوية المالك - Owner ID"
	SubfolderAuthorizedOwner = "هوية المفوض - Authorized Owner ID"
	SubfolderBuildingPermit  = "رخصة البناء - Building Permit"
	SubfolderAwardingLetter  = "كتاب ترسية البنك – Bank Awarding Letter"
)

// Phase is one document category and the directory it maps to.
type Phase struct {
	Key        string   `json:"key"`
	Dir        string   `json:"dir"`
	Subfolders []string `json:"subfolders,omitempty"`
	Legacy     bool     `json:"legacy"`
}

// DefaultPhases returns a fresh copy of the built-in phase table, current
// scheme first.
func DefaultPhases() []Phase {
	return []Phase{
		{
			Key: PhaseInfo,
			Dir: "Project Info-معلومات المشروع",
			Subfolders: []string{
				SubfolderSitePlan,
				SubfolderOwnerID,
				SubfolderAuthorizedOwner,
				SubfolderBuildingPermit,
				SubfolderAwardingLetter,
			},
		},
		{Key: PhaseContracts, Dir: "contracts-العقود"},
		{Key: PhaseSchedule, Dir: "Project Schedule-المدة الزمنية للمشروع"},
		{Key: PhaseVariationOrders, Dir: "variation orders-أوامر التغيير والتعديلات"},
		{Key: PhaseVariationOrdersApproved, Dir: "variation orders Approved-أوامر التغيير المعتمدة"},
		{Key: PhaseInvoices, Dir: "invoices-الفواتير"},
		{Key: PhasePayments, Dir: "payments-الدفعات"},
		{Key: PhaseSitePlan, Dir: "siteplan", Legacy: true},
		{Key: PhaseLicensing, Dir: "licensing", Legacy: true},
		{Key: PhaseAwarding, Dir: "awarding", Legacy: true},
		{Key: PhaseExecution, Dir: "execution", Legacy: true},
		{Key: PhaseOwners, Dir: "owners", Legacy: true},
	}
}

// PhaseTable is an immutable phase lookup. Accessors return copies.
type PhaseTable struct {
	phases []Phase
	index  map[string]int
}

// NewPhaseTable builds the table from DefaultPhases, replacing directory names
// for the keys present in overrides. Override values are passed through
// sanitize.Segment.
func NewPhaseTable(overrides map[string]string) (*PhaseTable, error) {
	phases := DefaultPhases()
	index := make(map[string]int, len(phases))
	for i, p := range phases {
		index[p.Key] = i
	}

	// Sorted for deterministic error reporting.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		i, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, key)
		}
		dir := sanitize.Segment(overrides[key], 0)
		if dir == "" {
			return nil, fmt.Errorf("%w: override for %q is empty after sanitizing", ErrInvalidPhaseDir, key)
		}
		phases[i].Dir = dir
	}

	return &PhaseTable{phases: phases, index: index}, nil
}

// Lookup returns the phase registered under key.
func (t *PhaseTable) Lookup(key string) (Phase, bool) {
	i, ok := t.index[key]
	if !ok {
		return Phase{}, false
	}
	return clonePhase(t.phases[i]), true
}

// Current returns the phases the provisioner materializes, in table order.
func (t *PhaseTable) Current() []Phase {
	return t.filter(func(p Phase) bool { return !p.Legacy })
}

// All returns every phase, current scheme first.
func (t *PhaseTable) All() []Phase {
	return t.filter(func(Phase) bool { return true })
}

// Keys returns the phase keys in table order.
func (t *PhaseTable) Keys() []string {
	keys := make([]string, len(t.phases))
	for i, p := range t.phases {
		keys[i] = p.Key
	}
	return keys
}

func (t *PhaseTable) filter(keep func(Phase) bool) []Phase {
	out := make([]Phase, 0, len(t.phases))
	for _, p := range t.phases {
		if keep(p) {
			out = append(out, clonePhase(p))
		}
	}
	return out
}

func clonePhase(p Phase) Phase {
	p.Subfolders = slices.Clone(p.Subfolders)
	return p
}
