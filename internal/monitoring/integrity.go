package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/models"
)

// IntegrityStatus is the headline verdict of an integrity report.
type IntegrityStatus string

const (
	IntegrityHealthy   IntegrityStatus = "healthy"
	IntegrityDegraded  IntegrityStatus = "degraded"
	IntegrityUnhealthy IntegrityStatus = "unhealthy"
)

// Count check statuses.
const (
	CheckOK      = "ok"
	CheckWarning = "warning"
	CheckError   = "error"
)

// CountCheck reports a table population.
type CountCheck struct {
	Count  int64  `json:"count"`
	Status string `json:"status"`
}

// IntegrityChecks carries the individual checks of a report.
type IntegrityChecks struct {
	Permissions                CountCheck `json:"permissions"`
	Roles                      CountCheck `json:"roles"`
	AdminRoleExists            bool       `json:"admin_role_exists"`
	CoreSystemPermissionExists bool       `json:"core_system_permission_exists"`
}

// IntegrityReport is the operator-facing self check of the authorization model.
type IntegrityReport struct {
	Status      IntegrityStatus `json:"status"`
	Checks      IntegrityChecks `json:"checks"`
	Message     string          `json:"message"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// IntegrityOptions names the mandatory seed objects. Counts below the
// minimums only degrade the report.
type IntegrityOptions struct {
	AdminRole      string
	CorePermission string
	MinPermissions int64
	MinRoles       int64
	Timeout        time.Duration
}

// IntegrityReporter inspects the catalog and seed roles.
type IntegrityReporter struct {
	db   *gorm.DB
	opts IntegrityOptions
}

const defaultIntegrityTimeout = 5 * time.Second

// NewIntegrityReporter constructs a reporter over db.
func NewIntegrityReporter(db *gorm.DB, opts IntegrityOptions) (*IntegrityReporter, error) {
	if db == nil {
		return nil, errors.New("integrity: db is required")
	}
	if strings.TrimSpace(opts.AdminRole) == "" {
		opts.AdminRole = "admin"
	}
	if strings.TrimSpace(opts.CorePermission) == "" {
		opts.CorePermission = "SYSTEM.MANAGE.GLOBAL"
	}
	if opts.MinPermissions <= 0 {
		opts.MinPermissions = 1
	}
	if opts.MinRoles <= 0 {
		opts.MinRoles = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultIntegrityTimeout
	}
	return &IntegrityReporter{db: db, opts: opts}, nil
}

// Report runs every check. A failing mandatory check or any query error makes
// the report unhealthy; empty tables alone only degrade it.
func (r *IntegrityReporter) Report(ctx context.Context) IntegrityReport {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var (
		report                              IntegrityReport
		permErr, roleErr, adminErr, coreErr error
		permCount, roleCount, adminN, coreN int64
	)
	db := r.db.WithContext(ctx)

	var g errgroup.Group
	g.Go(recovered(&permErr, func() error {
		return db.Model(&models.Permission{}).Count(&permCount).Error
	}))
	g.Go(recovered(&roleErr, func() error {
		return db.Model(&models.Role{}).Count(&roleCount).Error
	}))
	g.Go(recovered(&adminErr, func() error {
		return db.Model(&models.Role{}).
			Where("name = ? AND is_active = ?", r.opts.AdminRole, true).
			Count(&adminN).Error
	}))
	g.Go(recovered(&coreErr, func() error {
		return db.Model(&models.Permission{}).
			Where("name = ?", r.opts.CorePermission).
			Count(&coreN).Error
	}))
	_ = g.Wait()

	report.Checks.Permissions = countCheck(permCount, r.opts.MinPermissions, permErr)
	report.Checks.Roles = countCheck(roleCount, r.opts.MinRoles, roleErr)
	report.Checks.AdminRoleExists = adminErr == nil && adminN > 0
	report.Checks.CoreSystemPermissionExists = coreErr == nil && coreN > 0
	report.EvaluatedAt = time.Now().UTC()

	errs := multierr.Combine(
		wrapCheck("permissions", permErr),
		wrapCheck("roles", roleErr),
		wrapCheck("admin_role", adminErr),
		wrapCheck("core_permission", coreErr),
	)

	var problems []string
	switch {
	case errs != nil:
		report.Status = IntegrityUnhealthy
		for _, err := range multierr.Errors(errs) {
			problems = append(problems, err.Error())
		}
	default:
		if !report.Checks.AdminRoleExists {
			problems = append(problems, fmt.Sprintf("admin role %q is missing or inactive", r.opts.AdminRole))
		}
		if !report.Checks.CoreSystemPermissionExists {
			problems = append(problems, fmt.Sprintf("core permission %s is missing", r.opts.CorePermission))
		}
		if len(problems) > 0 {
			report.Status = IntegrityUnhealthy
			break
		}
		if report.Checks.Permissions.Status == CheckWarning {
			problems = append(problems, fmt.Sprintf("%d permissions defined, expected at least %d", permCount, r.opts.MinPermissions))
		}
		if report.Checks.Roles.Status == CheckWarning {
			problems = append(problems, fmt.Sprintf("%d roles defined, expected at least %d", roleCount, r.opts.MinRoles))
		}
		if len(problems) > 0 {
			report.Status = IntegrityDegraded
		} else {
			report.Status = IntegrityHealthy
		}
	}

	if len(problems) == 0 {
		report.Message = "authorization model is intact"
	} else {
		report.Message = strings.Join(problems, "; ")
	}

	RecordIntegrityReport(report, time.Since(start))
	return report
}

// recovered runs check for an errgroup, storing its error in dst. A panic is
// stored as that check's error.
func recovered(dst *error, check func() error) func() error {
	return func() error {
		defer func() {
			if p := recover(); p != nil {
				*dst = fmt.Errorf("panic: %v", p)
			}
		}()
		*dst = check()
		return nil
	}
}

func countCheck(count, minimum int64, err error) CountCheck {
	switch {
	case err != nil:
		return CountCheck{Status: CheckError}
	case count < minimum:
		return CountCheck{Count: count, Status: CheckWarning}
	}
	return CountCheck{Count: count, Status: CheckOK}
}

func wrapCheck(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s check failed: %w", name, err)
}
