// Package rbac holds the static role catalogue and the permissions each
// role grants.
package rbac

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRole is returned when a role name is not in the catalogue.
var ErrUnknownRole = errors.New("unknown role")

// Role names a set of permissions.
type Role string

// Roles, from most to least privileged.
const (
	RoleSuperAdmin        Role = "super_admin"
	RoleCompanySuperAdmin Role = "company_super_admin"
	RoleCompanyAdmin      Role = "company_admin"
	RoleStaff             Role = "staff_user"
	RoleViewer            Role = "viewer"
)

// Permission is a dotted permission code such as "project.view".
type Permission string

// Permission codes.
const (
	ProjectView   Permission = "project.view"
	ProjectCreate Permission = "project.create"
	ProjectUpdate Permission = "project.update"
	ProjectDelete Permission = "project.delete"
	FileView      Permission = "file.view"
	FileUpload    Permission = "file.upload"
	FileDelete    Permission = "file.delete"
	PaymentView   Permission = "payment.view"
	PaymentManage Permission = "payment.manage"
	UserView      Permission = "user.view"
	UserManage    Permission = "user.manage"
	AuditView     Permission = "audit.view"
)

var allPermissions = []Permission{
	ProjectView, ProjectCreate, ProjectUpdate, ProjectDelete,
	FileView, FileUpload, FileDelete,
	PaymentView, PaymentManage,
	UserView, UserManage,
	AuditView,
}

var grants = map[Role][]Permission{
	RoleSuperAdmin:        allPermissions,
	RoleCompanySuperAdmin: allPermissions,
	RoleCompanyAdmin: {
		ProjectView, ProjectCreate, ProjectUpdate, ProjectDelete,
		FileView, FileUpload, FileDelete,
		PaymentView, PaymentManage,
		UserView, UserManage,
	},
	RoleStaff: {
		ProjectView, ProjectCreate, ProjectUpdate,
		FileView, FileUpload,
		PaymentView, PaymentManage,
	},
	RoleViewer: {
		ProjectView, FileView, PaymentView,
	},
}

var descriptions = map[Role]string{
	RoleSuperAdmin:        "Platform operator with access to every tenant",
	RoleCompanySuperAdmin: "Company owner; full access within the company",
	RoleCompanyAdmin:      "Manages projects, files, payments and users",
	RoleStaff:             "Works on projects, uploads files and records payments",
	RoleViewer:            "Read-only access to projects, files and payments",
}

var rank = map[Role]int{
	RoleSuperAdmin:        5,
	RoleCompanySuperAdmin: 4,
	RoleCompanyAdmin:      3,
	RoleStaff:             2,
	RoleViewer:            1,
}

// ParseRole validates s against the catalogue.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := grants[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is in the catalogue.
func (r Role) Valid() bool {
	_, ok := grants[r]
	return ok
}

// TenantScoped reports whether r belongs to a company. Only super_admin
// lives outside tenants.
func (r Role) TenantScoped() bool {
	return r.Valid() && r != RoleSuperAdmin
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	return rank[r] > rank[other]
}

// Has reports whether role grants p. Superusers are checked by the caller.
func Has(role Role, p Permission) bool {
	for _, g := range grants[role] {
		if g == p {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the permissions granted to role.
func Permissions(role Role) []Permission {
	return append([]Permission(nil), grants[role]...)
}

// RoleInfo describes one catalogue entry.
type RoleInfo struct {
	Role        Role         `json:"role"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// Catalogue lists every role, most privileged first.
func Catalogue() []RoleInfo {
	roles := make([]Role, 0, len(grants))
	for r := range grants {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return rank[roles[i]] > rank[roles[j]] })

	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{
			Role:        r,
			Description: descriptions[r],
			Permissions: Permissions(r),
		})
	}
	return out
}
