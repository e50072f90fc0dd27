package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// authorizationTables must exist before the evaluator can serve decisions.
var authorizationTables = []string{
	"permissions",
	"roles",
	"role_permissions",
	"role_assignments",
	"permission_templates",
	"audit_entries",
}

// Database returns a readiness probe that pings the database and confirms the
// authorization schema has been migrated.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "database not configured",
				Duration: time.Since(start),
			}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultDatabaseTimeout))
		defer cancel()

		if err := sqlDB.PingContext(probeCtx); err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		migrator := db.WithContext(probeCtx).Migrator()
		var missing []string
		for _, table := range authorizationTables {
			if !migrator.HasTable(table) {
				missing = append(missing, table)
			}
		}
		if len(missing) > 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  fmt.Sprintf("schema incomplete: missing %s", strings.Join(missing, ", ")),
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
