package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltInRegistrations(t *testing.T) {
	for _, name := range []Name{SystemManage, SystemRoles, AuditRead, AuditExport, MustParseName("APPLICATION.APPROVE.BRANCH")} {
		_, ok := Lookup(name)
		require.True(t, ok, name.String())
	}

	defs := Definitions()
	require.NotEmpty(t, defs)
	for i := 1; i < len(defs); i++ {
		require.Less(t, defs[i-1].Name.String(), defs[i].Name.String())
	}

	roles := RoleBlueprints()
	seen := map[string]bool{}
	for _, bp := range roles {
		if bp.Parent != "" {
			require.True(t, seen[bp.Parent], "%s registered before parent %s", bp.Name, bp.Parent)
		}
		seen[bp.Name] = true
	}
	for _, name := range []string{"admin", "branch_manager", "department_head", "loan_officer", "auditor", "viewer"} {
		require.True(t, seen[name], name)
	}

	require.Len(t, TemplateBlueprints(), len(roles)-1)
}

func TestRegisterValidates(t *testing.T) {
	isolateRegistry(t)

	def := Definition{Name: Name{ResourceType: "loan", Action: "close", Scope: ScopeOwn}, Description: " Close loans "}
	require.NoError(t, Register(def))
	require.ErrorIs(t, Register(def), errDuplicateDefinition)
	require.ErrorIs(t, Register(Definition{Name: Name{ResourceType: "LOAN", Action: "CLOSE", Scope: "SOMEWHERE"}}), ErrInvalidName)

	stored, ok := Lookup(MustParseName("LOAN.CLOSE.OWN"))
	require.True(t, ok)
	require.Equal(t, "Close loans", stored.Description)
}

func TestRegisterRoleValidates(t *testing.T) {
	isolateRegistry(t)
	require.NoError(t, Register(Definition{Name: MustParseName("LOAN.CLOSE.OWN")}))

	require.ErrorIs(t, RegisterRole(RoleBlueprint{}), errEmptyRoleName)
	require.ErrorIs(t, RegisterRole(RoleBlueprint{Name: "clerk", Parent: "boss"}), errUnknownParent)
	require.ErrorIs(t, RegisterRole(RoleBlueprint{Name: "clerk", Permissions: names("LOAN.OPEN.OWN")}), errUnknownGrant)

	grant := MustParseName("LOAN.CLOSE.OWN")
	require.NoError(t, RegisterRole(RoleBlueprint{Name: " Clerk ", Permissions: []Name{grant, grant}}))
	require.ErrorIs(t, RegisterRole(RoleBlueprint{Name: "clerk"}), errDuplicateRole)

	roles := RoleBlueprints()
	require.Len(t, roles, 1)
	require.Equal(t, "clerk", roles[0].Name)
	require.Equal(t, []Name{grant}, roles[0].Permissions)

	roles[0].Permissions[0] = Name{}
	require.Equal(t, grant, RoleBlueprints()[0].Permissions[0])
}

func TestRegisterTemplateValidates(t *testing.T) {
	isolateRegistry(t)
	require.NoError(t, Register(Definition{Name: MustParseName("LOAN.CLOSE.OWN")}))

	require.ErrorIs(t, RegisterTemplate(TemplateBlueprint{}), errEmptyTemplateName)
	require.NoError(t, RegisterTemplate(TemplateBlueprint{Name: "closer", Permissions: names("LOAN.CLOSE.OWN")}))
	require.ErrorIs(t, RegisterTemplate(TemplateBlueprint{Name: "closer"}), errDuplicateTemplate)
	require.ErrorIs(t, RegisterTemplate(TemplateBlueprint{Name: "other", Permissions: names("AUDIT.READ.GLOBAL")}), errUnknownGrant)
}
