package checks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeeper/internal/database/testutil"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/internal/monitoring/checks"
)

func TestDatabaseCheck(t *testing.T) {
	require.Equal(t, monitoring.StatusDown, checks.Database(nil, 0).Run(context.Background()).Status)

	bare := testutil.MustOpenTestDB(t)
	result := checks.Database(bare, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "roles")

	migrated := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	result = checks.Database(migrated, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
}
