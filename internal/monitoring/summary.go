package monitoring

import "time"

// Summary surfaces aggregated monitoring data for administrative dashboards.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Auth        AuthSummary        `json:"auth"`
	Permissions PermissionSummary  `json:"permissions"`
	Decisions   DecisionSummary    `json:"decisions"`
	Audit       AuditSummary       `json:"audit"`
	Cache       CacheSummary       `json:"cache"`
	Integrity   *IntegritySnapshot `json:"integrity,omitempty"`
}

type AuthSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
	Error   uint64 `json:"error"`
}

type PermissionSummary struct {
	Allowed uint64 `json:"allowed"`
	Denied  uint64 `json:"denied"`
	Error   uint64 `json:"error"`
}

// DecisionSummary counts decisions by evaluation path. FallbackRatio is the
// share of allowed decisions that still depend on the legacy table; it should
// trend to zero as migration completes.
type DecisionSummary struct {
	Direct        uint64                `json:"direct"`
	Fallback      uint64                `json:"fallback"`
	None          uint64                `json:"none"`
	Error         uint64                `json:"error"`
	FallbackRatio float64               `json:"fallback_ratio"`
	FallbackRoles []FallbackRoleSummary `json:"fallback_roles"`
}

type FallbackRoleSummary struct {
	Role  string `json:"role"`
	Count uint64 `json:"count"`
}

type AuditSummary struct {
	Recorded uint64 `json:"recorded"`
	Failed   uint64 `json:"failed"`
}

type CacheSummary struct {
	LocalInvalidations  uint64 `json:"local_invalidations"`
	RemoteInvalidations uint64 `json:"remote_invalidations"`
	Hits                uint64 `json:"hits"`
	Misses              uint64 `json:"misses"`
}

// IntegritySnapshot is the headline of the most recent integrity report.
type IntegritySnapshot struct {
	Status      IntegrityStatus `json:"status"`
	Message     string          `json:"message"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
