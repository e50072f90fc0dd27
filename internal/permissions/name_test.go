package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

func TestScopeOrdering(t *testing.T) {
	require.Equal(t, []Scope{ScopeOwn, ScopeTeam, ScopeDepartment, ScopeBranch, ScopeGlobal}, AllScopes())
	for i, scope := range AllScopes() {
		require.Equal(t, i, scope.Rank())
	}
	require.Equal(t, -1, Scope("REGION").Rank())
}

func TestScopeCoversIsMonotonic(t *testing.T) {
	for _, granted := range AllScopes() {
		for _, requested := range AllScopes() {
			require.Equal(t, requested.Rank() <= granted.Rank(), granted.Covers(requested), "%s covers %s", granted, requested)
		}
	}
	require.False(t, ScopeGlobal.Covers("REGION"))
	require.False(t, Scope("").Covers(ScopeOwn))
}

func TestParseScope(t *testing.T) {
	scope, err := ParseScope(" branch ")
	require.NoError(t, err)
	require.Equal(t, ScopeBranch, scope)

	_, err = ParseScope("REGION")
	require.Error(t, err)
}

func TestParseName(t *testing.T) {
	name, err := ParseName("application.approve.branch")
	require.NoError(t, err)
	require.Equal(t, Name{ResourceType: "APPLICATION", Action: "APPROVE", Scope: ScopeBranch}, name)
	require.Equal(t, "APPLICATION.APPROVE.BRANCH", name.String())

	name, err = ParseName("  REPORT.EXPORT.GLOBAL\n")
	require.NoError(t, err)
	require.Equal(t, "REPORT.EXPORT.GLOBAL", name.String())
}

func TestParseNameRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"APPLICATION.READ",
		"APPLICATION.READ.OWN.EXTRA",
		"APPLICATION..OWN",
		"APPLICATION.READ.REGION",
		"APP LICATION.READ.OWN",
		"1APP.READ.OWN",
		"APPLICATION.READ-ALL.OWN",
	} {
		_, err := ParseName(input)
		require.Error(t, err, input)
		require.ErrorIs(t, err, apperrors.ErrValidation, input)
		appErr := apperrors.FromError(err)
		require.Equal(t, input, appErr.Details["name"])
		require.NotEmpty(t, appErr.Details["reason"])
	}
}

func TestNewNameNormalises(t *testing.T) {
	name, err := NewName(" customer ", "read", "team")
	require.NoError(t, err)
	require.Equal(t, "CUSTOMER.READ.TEAM", name.String())
	require.False(t, name.IsZero())

	_, err = NewName("CUSTOMER", "", ScopeTeam)
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestMustParseNamePanics(t *testing.T) {
	require.Panics(t, func() { MustParseName("nope") })
	require.NotPanics(t, func() { MustParseName("AUDIT.READ.GLOBAL") })
}
