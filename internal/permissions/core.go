package permissions

import (
	"fmt"
	"strings"

	"github.com/charlesng35/gatekeeper/internal/models"
)

// Identifiers of the built-in administrative surface.
const (
	AdminRoleName = "admin"

	ResourceApplication = "APPLICATION"
	ResourceDocument    = "DOCUMENT"
	ResourceCustomer    = "CUSTOMER"
	ResourceReport      = "REPORT"
	ResourceUser        = "USER"
	ResourceSystem      = "SYSTEM"
	ResourceAudit       = "AUDIT"
)

// Administrative permissions gating the management API.
var (
	SystemManage      = Name{ResourceType: ResourceSystem, Action: "MANAGE", Scope: ScopeGlobal}
	SystemRoles       = Name{ResourceType: ResourceSystem, Action: "ROLES", Scope: ScopeGlobal}
	SystemPermissions = Name{ResourceType: ResourceSystem, Action: "PERMISSIONS", Scope: ScopeGlobal}
	SystemTemplates   = Name{ResourceType: ResourceSystem, Action: "TEMPLATES", Scope: ScopeGlobal}
	SystemAssignments = Name{ResourceType: ResourceSystem, Action: "ASSIGNMENTS", Scope: ScopeGlobal}
	SystemHealth      = Name{ResourceType: ResourceSystem, Action: "HEALTH", Scope: ScopeGlobal}
	AuditRead         = Name{ResourceType: ResourceAudit, Action: "READ", Scope: ScopeGlobal}
	AuditExport       = Name{ResourceType: ResourceAudit, Action: "EXPORT", Scope: ScopeGlobal}
)

type resourceActions struct {
	resource string
	noun     string
	actions  map[string]string
	scopes   []Scope
}

var businessResources = []resourceActions{
	{
		resource: ResourceApplication,
		noun:     "loan applications",
		actions: map[string]string{
			"CREATE":  "Create",
			"READ":    "View",
			"UPDATE":  "Edit",
			"DELETE":  "Delete",
			"SUBMIT":  "Submit",
			"APPROVE": "Approve",
			"REJECT":  "Reject",
			"ASSIGN":  "Reassign",
		},
		scopes: AllScopes(),
	},
	{
		resource: ResourceDocument,
		noun:     "application documents",
		actions: map[string]string{
			"UPLOAD": "Upload",
			"READ":   "View",
			"DELETE": "Delete",
			"VERIFY": "Verify",
		},
		scopes: AllScopes(),
	},
	{
		resource: ResourceCustomer,
		noun:     "customer records",
		actions: map[string]string{
			"CREATE": "Create",
			"READ":   "View",
			"UPDATE": "Edit",
		},
		scopes: AllScopes(),
	},
	{
		resource: ResourceReport,
		noun:     "portfolio reports",
		actions: map[string]string{
			"READ":   "View",
			"EXPORT": "Export",
		},
		scopes: []Scope{ScopeDepartment, ScopeBranch, ScopeGlobal},
	},
	{
		resource: ResourceUser,
		noun:     "staff accounts",
		actions: map[string]string{
			"CREATE":     "Create",
			"READ":       "View",
			"UPDATE":     "Edit",
			"DEACTIVATE": "Deactivate",
		},
		scopes: []Scope{ScopeDepartment, ScopeBranch, ScopeGlobal},
	},
}

var scopePhrases = map[Scope]string{
	ScopeOwn:        "owned by the caller",
	ScopeTeam:       "within the caller's team",
	ScopeDepartment: "within the caller's department",
	ScopeBranch:     "within the caller's branch",
	ScopeGlobal:     "across the organization",
}

func init() {
	for _, res := range businessResources {
		for action, verb := range res.actions {
			for _, scope := range res.scopes {
				mustRegister(Definition{
					Name:        Name{ResourceType: res.resource, Action: action, Scope: scope},
					Description: fmt.Sprintf("%s %s %s", verb, res.noun, scopePhrases[scope]),
				})
			}
		}
	}

	for _, def := range []Definition{
		{Name: SystemManage, Description: "Full control over the authorization model"},
		{Name: SystemRoles, Description: "Create, edit and delete roles and their grants"},
		{Name: SystemPermissions, Description: "Maintain the permission catalog"},
		{Name: SystemTemplates, Description: "Maintain, import and apply permission templates"},
		{Name: SystemAssignments, Description: "Assign and unassign user roles"},
		{Name: SystemHealth, Description: "View authorization integrity reports"},
		{Name: AuditRead, Description: "Query the authorization audit trail"},
		{Name: AuditExport, Description: "Export the authorization audit trail"},
	} {
		mustRegister(def)
	}

	registerSeedRoles()
	registerSeedTemplates()
}

func registerSeedRoles() {
	var globals []Name
	for _, def := range Definitions() {
		if def.Name.Scope == ScopeGlobal {
			globals = append(globals, def.Name)
		}
	}

	blueprints := []RoleBlueprint{
		{
			Name:        AdminRoleName,
			DisplayName: "Administrator",
			Description: "Manages the authorization model and sees every record",
			Level:       100,
			Permissions: globals,
		},
		{
			Name:        "viewer",
			DisplayName: "Viewer",
			Description: "Read-only access to the caller's own records",
			Level:       10,
			Permissions: names(
				"APPLICATION.READ.OWN",
				"DOCUMENT.READ.OWN",
				"CUSTOMER.READ.OWN",
			),
		},
		{
			Name:        "loan_officer",
			DisplayName: "Loan Officer",
			Description: "Originates and maintains loan applications",
			Level:       40,
			Parent:      "viewer",
			Permissions: names(
				"APPLICATION.CREATE.OWN",
				"APPLICATION.UPDATE.OWN",
				"APPLICATION.SUBMIT.OWN",
				"APPLICATION.READ.TEAM",
				"DOCUMENT.UPLOAD.OWN",
				"CUSTOMER.CREATE.OWN",
				"CUSTOMER.UPDATE.OWN",
				"CUSTOMER.READ.TEAM",
			),
		},
		{
			Name:        "department_head",
			DisplayName: "Department Head",
			Description: "Reviews and decides applications for a department",
			Level:       70,
			Parent:      "loan_officer",
			Permissions: names(
				"APPLICATION.READ.DEPARTMENT",
				"APPLICATION.APPROVE.DEPARTMENT",
				"APPLICATION.REJECT.DEPARTMENT",
				"APPLICATION.ASSIGN.DEPARTMENT",
				"DOCUMENT.READ.DEPARTMENT",
				"DOCUMENT.VERIFY.DEPARTMENT",
				"REPORT.READ.DEPARTMENT",
				"USER.READ.DEPARTMENT",
			),
		},
		{
			Name:        "branch_manager",
			DisplayName: "Branch Manager",
			Description: "Oversees every application in a branch",
			Level:       80,
			Parent:      "department_head",
			Permissions: names(
				"APPLICATION.READ.BRANCH",
				"APPLICATION.UPDATE.BRANCH",
				"APPLICATION.APPROVE.BRANCH",
				"APPLICATION.REJECT.BRANCH",
				"APPLICATION.ASSIGN.BRANCH",
				"DOCUMENT.READ.BRANCH",
				"DOCUMENT.VERIFY.BRANCH",
				"CUSTOMER.READ.BRANCH",
				"REPORT.READ.BRANCH",
				"REPORT.EXPORT.BRANCH",
				"USER.READ.BRANCH",
			),
		},
		{
			Name:        "auditor",
			DisplayName: "Auditor",
			Description: "Reviews decisions and the authorization audit trail",
			Level:       60,
			Permissions: names(
				"APPLICATION.READ.GLOBAL",
				"DOCUMENT.READ.GLOBAL",
				"REPORT.READ.GLOBAL",
				"AUDIT.READ.GLOBAL",
				"AUDIT.EXPORT.GLOBAL",
				"SYSTEM.HEALTH.GLOBAL",
			),
		},
	}

	for _, bp := range blueprints {
		if err := RegisterRole(bp); err != nil {
			panic(err)
		}
	}
}

func registerSeedTemplates() {
	for _, bp := range RoleBlueprints() {
		if bp.Name == AdminRoleName {
			continue
		}
		err := RegisterTemplate(TemplateBlueprint{
			Name:         bp.Name + "_baseline",
			Description:  "Baseline grants of the " + strings.ToLower(bp.DisplayName) + " role",
			TemplateType: models.TemplateTypeRole,
			Permissions:  bp.Permissions,
		})
		if err != nil {
			panic(err)
		}
	}
}

func mustRegister(def Definition) {
	if err := Register(def); err != nil {
		panic(err)
	}
}

func names(values ...string) []Name {
	out := make([]Name, len(values))
	for i, value := range values {
		out[i] = MustParseName(value)
	}
	return out
}
