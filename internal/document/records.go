package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
)

var hundred = decimal.NewFromInt(100)

// SitePlanFields are the editable fields of a site plan.
type SitePlanFields struct {
	Municipality      string              `gorm:"size:120" json:"municipality"`
	Zone              string              `gorm:"size:120" json:"zone"`
	Sector            string              `gorm:"size:120" json:"sector"`
	RoadName          string              `gorm:"size:120" json:"road_name"`
	LandNo            string              `gorm:"size:120" json:"land_no"`
	PlotAddress       string              `gorm:"size:255" json:"plot_address"`
	PlotAreaSqm       decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"plot_area_sqm"`
	LandUse           string              `gorm:"size:120" json:"land_use"`
	AllocationType    string              `gorm:"size:120" json:"allocation_type"`
	AllocationDate    *Date               `json:"allocation_date"`
	DeveloperName     string              `gorm:"size:200" json:"developer_name"`
	ApplicationNumber string              `gorm:"size:120" json:"application_number"`
	ApplicationDate   *Date               `json:"application_date"`
	Notes             string              `gorm:"type:text" json:"notes"`
}

// SitePlan is the land record of a project. A project has at most one.
type SitePlan struct {
	Base
	SitePlanFields
	Owners []SitePlanOwner `gorm:"foreignKey:SitePlanID" json:"owners"`
}

// DocumentRef implements attachment.Document.
func (p *SitePlan) DocumentRef() attachment.DocumentRef {
	return p.ref(KindSitePlan, layout.PhaseInfo, layout.SubfolderSitePlan)
}

func (p *SitePlan) validate() error {
	if p.PlotAreaSqm.Valid && p.PlotAreaSqm.Decimal.IsNegative() {
		return fmt.Errorf("%w: plot area cannot be negative", ErrInvalidDocument)
	}
	return nil
}

// snapshot is copied onto the building licence when it is saved.
func (p *SitePlan) snapshot() datatypes.JSONMap {
	owners := make([]any, 0, len(p.Owners))
	for _, o := range p.Owners {
		owners = append(owners, map[string]any{
			"owner_name_ar": o.NameAr,
			"owner_name_en": o.NameEn,
			"id_number":     o.IDNumber,
			"share_percent": o.SharePercent.Decimal.StringFixed(2),
			"is_authorized": o.IsAuthorized,
		})
	}
	m := datatypes.JSONMap{
		"municipality": p.Municipality,
		"zone":         p.Zone,
		"sector":       p.Sector,
		"land_no":      p.LandNo,
		"plot_address": p.PlotAddress,
		"owners":       owners,
	}
	if p.PlotAreaSqm.Valid {
		m["plot_area_sqm"] = p.PlotAreaSqm.Decimal.StringFixed(2)
	}
	return m
}

// OwnerFields are the editable fields of a site plan owner.
type OwnerFields struct {
	NameAr        string              `gorm:"size:200" json:"owner_name_ar"`
	NameEn        string              `gorm:"size:200" json:"owner_name_en"`
	Nationality   string              `gorm:"size:120" json:"nationality"`
	Phone         string              `gorm:"size:30" json:"phone"`
	Email         string              `gorm:"size:254" json:"email"`
	IDNumber      string              `gorm:"size:50" json:"id_number"`
	IDIssueDate   *Date               `json:"id_issue_date"`
	IDExpiryDate  *Date               `json:"id_expiry_date"`
	RightHoldType string              `gorm:"size:120" json:"right_hold_type"`
	SharePercent  decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"share_percent"`
	IsAuthorized  bool                `json:"is_authorized"`
}

// SitePlanOwner is one owner on a site plan. Age is derived from an
// Emirates ID number when it carries a birth year.
type SitePlanOwner struct {
	Base
	SitePlanID uint `gorm:"not null;index" json:"site_plan_id"`
	OwnerFields
	Age *int `json:"age,omitempty"`
}

// DocumentRef implements attachment.Document. ID cards of the authorized
// owner go to their own folder.
func (o *SitePlanOwner) DocumentRef() attachment.DocumentRef {
	sub := layout.SubfolderOwnerID
	if o.IsAuthorized {
		sub = layout.SubfolderAuthorizedOwner
	}
	return o.ref(KindSitePlanOwner, layout.PhaseInfo, sub)
}

var idSeparators = regexp.MustCompile(`[-\s]`)

// AgeFromEmiratesID derives an age from an Emirates ID number
// (784-YYYY-NNNNNNN-C). The year is read from the second dash-separated
// group, or from digits 4-7 of the bare number.
func AgeFromEmiratesID(id string, now time.Time) (int, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, false
	}
	valid := func(y int) bool { return y >= 1900 && y <= now.Year() }

	if parts := strings.Split(id, "-"); len(parts) >= 2 {
		if y, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && valid(y) {
			return now.Year() - y, true
		}
	}
	cleaned := idSeparators.ReplaceAllString(id, "")
	if len(cleaned) >= 8 {
		if y, err := strconv.Atoi(cleaned[3:7]); err == nil && valid(y) {
			return now.Year() - y, true
		}
	}
	return 0, false
}

// normalizeOwners turns owner input into records. Shares left empty split
// what the explicit shares leave of 100 evenly. Shares must stay within
// 0-100 and add up to at most 100; at most one owner is authorized.
func normalizeOwners(in []OwnerFields, now time.Time) ([]SitePlanOwner, error) {
	out := make([]SitePlanOwner, 0, len(in))
	explicit := decimal.Zero
	unset := 0
	authorized := 0
	for i, f := range in {
		f.NameAr = strings.TrimSpace(f.NameAr)
		f.NameEn = strings.TrimSpace(f.NameEn)
		f.IDNumber = strings.TrimSpace(f.IDNumber)
		if f.NameAr == "" && f.NameEn == "" {
			return nil, fmt.Errorf("%w: owner %d needs a name", ErrInvalidDocument, i+1)
		}
		if f.SharePercent.Valid {
			s := f.SharePercent.Decimal
			if s.IsNegative() || s.GreaterThan(hundred) {
				return nil, fmt.Errorf("%w: owner %d share must be 0-100", ErrInvalidDocument, i+1)
			}
			explicit = explicit.Add(s)
		} else {
			unset++
		}
		if f.IsAuthorized {
			authorized++
		}
		if f.RightHoldType == "" {
			f.RightHoldType = "Ownership"
		}
		o := SitePlanOwner{OwnerFields: f}
		if age, ok := AgeFromEmiratesID(f.IDNumber, now); ok {
			o.Age = &age
		}
		out = append(out, o)
	}
	if authorized > 1 {
		return nil, fmt.Errorf("%w: only one owner can be authorized", ErrInvalidDocument)
	}
	if explicit.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: owner shares add up to %s%%", ErrInvalidDocument, explicit.String())
	}
	if unset > 0 {
		each := hundred.Sub(explicit).Div(decimal.NewFromInt(int64(unset))).RoundDown(2)
		for i := range out {
			if !out[i].SharePercent.Valid {
				out[i].SharePercent = decimal.NewNullDecimal(each)
			}
		}
	}
	return out, nil
}

// LicenseFields are the editable fields of a building licence.
type LicenseFields struct {
	LicenseType           string `gorm:"size:120" json:"license_type"`
	LicenseNo             string `gorm:"size:120" json:"license_no"`
	LicenseProjectNo      string `gorm:"size:120" json:"license_project_no"`
	LicenseProjectName    string `gorm:"size:200" json:"license_project_name"`
	IssueDate             *Date  `json:"issue_date"`
	LastIssueDate         *Date  `json:"last_issue_date"`
	ExpiryDate            *Date  `json:"expiry_date"`
	TechnicalDecisionRef  string `gorm:"size:120" json:"technical_decision_ref"`
	TechnicalDecisionDate *Date  `json:"technical_decision_date"`
	Notes                 string `gorm:"type:text" json:"license_notes"`

	City       string `gorm:"size:120" json:"city"`
	PlotNo     string `gorm:"size:120" json:"plot_no"`
	LandUse    string `gorm:"size:120" json:"land_use"`
	LandUseSub string `gorm:"size:120" json:"land_use_sub"`
	LandPlanNo string `gorm:"size:120" json:"land_plan_no"`

	ConsultantSame                 bool   `json:"consultant_same"`
	DesignConsultantName           string `gorm:"size:200" json:"design_consultant_name"`
	DesignConsultantLicenseNo      string `gorm:"size:120" json:"design_consultant_license_no"`
	SupervisionConsultantName      string `gorm:"size:200" json:"supervision_consultant_name"`
	SupervisionConsultantLicenseNo string `gorm:"size:120" json:"supervision_consultant_license_no"`

	ContractorName      string `gorm:"size:200" json:"contractor_name"`
	ContractorLicenseNo string `gorm:"size:120" json:"contractor_license_no"`
	ContractorPhone     string `gorm:"size:30" json:"contractor_phone"`
	ContractorEmail     string `gorm:"size:254" json:"contractor_email"`
}

// BuildingLicense is the building permit of a project. A project has at
// most one. SitePlanSnapshot holds the site plan as it was when the licence
// was last saved.
type BuildingLicense struct {
	Base
	LicenseFields
	SitePlanSnapshot datatypes.JSONMap `json:"siteplan_snapshot"`
}

// DocumentRef implements attachment.Document.
func (l *BuildingLicense) DocumentRef() attachment.DocumentRef {
	return l.ref(KindLicense, layout.PhaseInfo, layout.SubfolderBuildingPermit)
}

func (l *BuildingLicense) normalize() error {
	if l.ConsultantSame {
		l.SupervisionConsultantName = l.DesignConsultantName
		l.SupervisionConsultantLicenseNo = l.DesignConsultantLicenseNo
	}
	if l.IssueDate != nil {
		if l.ExpiryDate != nil && l.ExpiryDate.Before(l.IssueDate.Time) {
			return fmt.Errorf("%w: licence expires before it is issued", ErrInvalidDocument)
		}
		if l.LastIssueDate != nil && l.LastIssueDate.Before(l.IssueDate.Time) {
			return fmt.Errorf("%w: last issue date precedes the issue date", ErrInvalidDocument)
		}
	}
	return nil
}

// AwardingFields are the editable fields of an awarding.
type AwardingFields struct {
	AwardDate                    *Date  `json:"award_date"`
	ConsultantRegistrationNumber string `gorm:"size:120" json:"consultant_registration_number"`
	ProjectNumber                string `gorm:"size:120" json:"project_number"`
	ContractorRegistrationNumber string `gorm:"size:120" json:"contractor_registration_number"`
}

// Awarding is the award order of a project. A project has at most one.
type Awarding struct {
	Base
	AwardingFields
}

// DocumentRef implements attachment.Document.
func (a *Awarding) DocumentRef() attachment.DocumentRef {
	return a.ref(KindAwarding, layout.PhaseInfo, layout.SubfolderAwardingLetter)
}

// normalize upper-cases registration numbers ("vr-12" becomes "VR-12").
func (a *Awarding) normalize() error {
	a.ConsultantRegistrationNumber = strings.ToUpper(strings.TrimSpace(a.ConsultantRegistrationNumber))
	a.ContractorRegistrationNumber = strings.ToUpper(strings.TrimSpace(a.ContractorRegistrationNumber))
	a.ProjectNumber = strings.TrimSpace(a.ProjectNumber)
	return nil
}

// Contract classifications.
const (
	ClassificationHousingLoan = "housing_loan_program"
	ClassificationPrivate     = "private_funding"
)

// Extension prolongs a contract.
type Extension struct {
	Reason         string `json:"reason"`
	Days           int    `json:"days"`
	Months         int    `json:"months"`
	ExtensionDate  *Date  `json:"extension_date,omitempty"`
	ApprovalNumber string `json:"approval_number,omitempty"`
}

// ContractFields are the editable fields of a contract. OriginalValue is
// the contract value before variation orders.
type ContractFields struct {
	Classification         string                         `gorm:"size:120" json:"contract_classification"`
	Type                   string                         `gorm:"size:120" json:"contract_type"`
	TenderNo               string                         `gorm:"size:120" json:"tender_no"`
	ContractDate           *Date                          `json:"contract_date"`
	ContractorName         string                         `gorm:"size:200" json:"contractor_name"`
	ContractorNameEn       string                         `gorm:"size:200" json:"contractor_name_en"`
	ContractorTradeLicense string                         `gorm:"size:120" json:"contractor_trade_license"`
	ContractorPhone        string                         `gorm:"size:30" json:"contractor_phone"`
	ContractorEmail        string                         `gorm:"size:254" json:"contractor_email"`
	OriginalValue          decimal.Decimal                `gorm:"type:decimal(14,2);not null;default:0" json:"original_value"`
	TotalBankValue         decimal.Decimal                `gorm:"type:decimal(14,2);not null;default:0" json:"total_bank_value"`
	DurationMonths         int                            `json:"project_duration_months"`
	StartOrderDate         *Date                          `json:"start_order_date"`
	StartOrderNotes        string                         `gorm:"type:text" json:"start_order_notes"`
	GeneralNotes           string                         `gorm:"type:text" json:"general_notes"`
	Extensions             datatypes.JSONSlice[Extension] `json:"extensions"`
}

// Contract is the construction contract of a project. A project has at
// most one. Totals and the end date are derived; see recompute.
type Contract struct {
	Base
	ContractFields
	VariationsTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"variations_total"`
	TotalProjectValue decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_project_value"`
	TotalOwnerValue   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_owner_value"`
	ProjectEndDate    *Date           `json:"project_end_date"`
}

// DocumentRef implements attachment.Document.
func (c *Contract) DocumentRef() attachment.DocumentRef {
	return c.ref(KindContract, layout.PhaseContracts, "")
}

func (c *Contract) validate() error {
	switch c.Classification {
	case "", ClassificationHousingLoan, ClassificationPrivate:
	default:
		return fmt.Errorf("%w: unknown contract classification %q", ErrInvalidDocument, c.Classification)
	}
	if c.OriginalValue.IsNegative() || c.TotalBankValue.IsNegative() {
		return fmt.Errorf("%w: contract values cannot be negative", ErrInvalidDocument)
	}
	if c.Classification == ClassificationHousingLoan && c.TotalBankValue.GreaterThan(c.OriginalValue) {
		return fmt.Errorf("%w: bank value exceeds the contract value", ErrInvalidDocument)
	}
	if c.DurationMonths < 0 {
		return fmt.Errorf("%w: duration cannot be negative", ErrInvalidDocument)
	}
	for i, e := range c.Extensions {
		if e.Days < 0 || e.Months < 0 {
			return fmt.Errorf("%w: extension %d is negative", ErrInvalidDocument, i+1)
		}
	}
	return nil
}

// recompute derives the totals from the sum of the project's variation
// orders (net with VAT) and the end date from the start order, the
// duration and every extension.
//
// Housing-loan contracts split the total between bank and owner; any other
// classification puts the whole total on the owner.
func (c *Contract) recompute(variations decimal.Decimal) {
	c.VariationsTotal = variations
	c.TotalProjectValue = c.OriginalValue.Add(variations)
	if c.Classification == ClassificationHousingLoan {
		c.TotalOwnerValue = c.TotalProjectValue.Sub(c.TotalBankValue)
	} else {
		c.TotalOwnerValue = c.TotalProjectValue
	}

	c.ProjectEndDate = nil
	if c.StartOrderDate == nil {
		return
	}
	months, days := c.DurationMonths, 0
	for _, e := range c.Extensions {
		months += e.Months
		days += e.Days
	}
	if months == 0 && days == 0 {
		return
	}
	end := c.StartOrderDate.AddMonthsDays(months, days)
	c.ProjectEndDate = &end
}

// VATRate applies to variation orders.
var VATRate = decimal.RequireFromString("0.05")

// VariationFields are the editable fields of a variation order.
type VariationFields struct {
	Number                   string          `gorm:"size:100;index" json:"variation_number"`
	Description              string          `gorm:"type:text" json:"description"`
	FinalAmount              decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"final_amount"`
	ConsultantFeesPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"consultant_fees_percentage"`
	ContractorEngineerFees   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"contractor_engineer_fees"`
	Discount                 decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount"`
	ApprovalDate             *Date           `json:"approval_date"`
	ApprovedBy               string          `gorm:"size:200" json:"approved_by"`
}

// Variation is a price change order. The amounts after the editable fields
// are derived by compute.
type Variation struct {
	Base
	VariationFields
	ConsultantFees   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"consultant_fees"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_amount"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"net_amount"`
	VAT              decimal.Decimal `gorm:"column:vat;type:decimal(14,2);not null;default:0" json:"vat"`
	NetAmountWithVAT decimal.Decimal `gorm:"column:net_amount_with_vat;type:decimal(14,2);not null;default:0" json:"net_amount_with_vat"`
}

// DocumentRef implements attachment.Document. Approved variations file
// under the approved phase.
func (v *Variation) DocumentRef() attachment.DocumentRef {
	phase := layout.PhaseVariationOrders
	if v.Approved() {
		phase = layout.PhaseVariationOrdersApproved
	}
	return v.ref(KindVariation, phase, "")
}

// Approved reports whether the variation carries an approval date.
func (v *Variation) Approved() bool {
	return v.ApprovalDate != nil && !v.ApprovalDate.IsZero()
}

// compute derives the fees, totals and VAT:
//
//	consultant fees = final amount × percentage / 100
//	total           = final amount + consultant fees + contractor engineer fees
//	net             = total − discount
//	net with VAT    = net + net × VATRate
func (v *Variation) compute() error {
	for _, d := range []decimal.Decimal{v.FinalAmount, v.ConsultantFeesPercentage, v.ContractorEngineerFees, v.Discount} {
		if d.IsNegative() {
			return fmt.Errorf("%w: variation amounts cannot be negative", ErrInvalidDocument)
		}
	}
	if v.ConsultantFeesPercentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: consultant fees percentage must be 0-100", ErrInvalidDocument)
	}
	v.ConsultantFees = v.FinalAmount.Mul(v.ConsultantFeesPercentage).Div(hundred).Round(2)
	v.TotalAmount = v.FinalAmount.Add(v.ConsultantFees).Add(v.ContractorEngineerFees)
	if v.Discount.GreaterThan(v.TotalAmount) {
		return fmt.Errorf("%w: discount exceeds the total", ErrInvalidDocument)
	}
	v.NetAmount = v.TotalAmount.Sub(v.Discount)
	v.VAT = v.NetAmount.Mul(VATRate).Round(2)
	v.NetAmountWithVAT = v.NetAmount.Add(v.VAT)
	return nil
}

// InvoiceItem is one line of an invoice. Total is derived.
type InvoiceItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceFields are the editable fields of an invoice.
type InvoiceFields struct {
	PaymentID   *uint                            `gorm:"index" json:"payment_id"`
	Number      string                           `gorm:"size:100;index" json:"invoice_number"`
	Amount      decimal.Decimal                  `gorm:"type:decimal(14,2);not null" json:"amount"`
	InvoiceDate Date                             `gorm:"not null" json:"invoice_date"`
	Description string                           `gorm:"type:text" json:"description"`
	Items       datatypes.JSONSlice[InvoiceItem] `json:"items"`
}

// Invoice is an actual invoice, optionally settled by a payment.
type Invoice struct {
	Base
	InvoiceFields
}

// DocumentRef implements attachment.Document.
func (i *Invoice) DocumentRef() attachment.DocumentRef {
	return i.ref(KindInvoice, layout.PhaseInvoices, "")
}

// compute fills item totals. An invoice with items and no amount takes the
// sum of its items.
func (i *Invoice) compute() error {
	sum := decimal.Zero
	for n := range i.Items {
		it := &i.Items[n]
		if it.Quantity.IsNegative() || it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d is negative", ErrInvalidDocument, n+1)
		}
		it.Total = it.Quantity.Mul(it.UnitPrice).Round(2)
		sum = sum.Add(it.Total)
	}
	if i.Amount.IsZero() && len(i.Items) > 0 {
		i.Amount = sum
	}
	if !i.Amount.IsPositive() {
		return fmt.Errorf("%w: invoice amount must be positive", ErrInvalidDocument)
	}
	if i.InvoiceDate.IsZero() {
		return fmt.Errorf("%w: invoice date is required", ErrInvalidDocument)
	}
	return nil
}
