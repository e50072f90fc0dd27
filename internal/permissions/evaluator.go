package permissions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/charlesng35/gatekeeper/internal/monitoring"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/logger"
)

// RoleResolver yields the inheritance closure of a role.
type RoleResolver interface {
	Resolve(ctx context.Context, roleID string) (*ResolvedRole, error)
}

// EvaluatorOption customises an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLegacyTable enables the role-name fallback path.
func WithLegacyTable(table *LegacyTable) EvaluatorOption {
	return func(e *Evaluator) {
		e.legacy = table
	}
}

// WithLogger overrides the evaluator's logger.
func WithLogger(log *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// Evaluator answers authorization requests.
type Evaluator struct {
	resolver RoleResolver
	legacy   *LegacyTable
	log      *zap.Logger
}

// NewEvaluator constructs an evaluator. Fallback is disabled unless a legacy
// table is supplied.
func NewEvaluator(resolver RoleResolver, opts ...EvaluatorOption) (*Evaluator, error) {
	if resolver == nil {
		return nil, errors.New("evaluator: resolver is required")
	}
	e := &Evaluator{
		resolver: resolver,
		log:      logger.WithModule("authz"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// FallbackEnabled reports whether a legacy table is configured.
func (e *Evaluator) FallbackEnabled() bool {
	return e.legacy != nil
}

type candidate struct {
	grant Grant
	held  RoleRef
}

// Authorize decides req for actor. Direct grants always take precedence over
// the legacy fallback. A non-nil error accompanies a deny decision whose Via is
// PathError; it never accompanies an allow.
func (e *Evaluator) Authorize(ctx context.Context, actor Actor, req Request) (Decision, error) {
	decision, err := e.newDecision(req)
	if err != nil {
		return decision, err
	}

	roleIDs := uniqueNonEmpty(actor.RoleIDs)
	if len(roleIDs) == 0 {
		decision.Via = PathNone
		decision.Reason = "actor holds no roles"
		e.record(decision)
		return decision, nil
	}

	var (
		candidates  []candidate
		activeNames []string
	)
	for _, roleID := range roleIDs {
		resolved, err := e.resolver.Resolve(ctx, roleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				e.log.Debug("skipping unknown actor role", zap.String("user_id", actor.UserID), zap.String("role_id", roleID))
				continue
			}
			return e.fail(decision, actor, fmt.Errorf("resolve role %s: %w", roleID, err))
		}
		if !resolved.Role.IsActive {
			continue
		}
		activeNames = append(activeNames, resolved.Role.Name)
		for _, grant := range resolved.Grants {
			perm := grant.Permission
			if perm.ResourceType != decision.ResourceType || perm.Action != decision.Action {
				continue
			}
			if !Scope(perm.Scope).Covers(decision.RequestedScope) {
				continue
			}
			candidates = append(candidates, candidate{grant: grant, held: resolved.Role})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].grant, candidates[j].grant
		if ra, rb := Scope(a.Permission.Scope).Rank(), Scope(b.Permission.Scope).Rank(); ra != rb {
			return ra > rb
		}
		if a.Permission.Name != b.Permission.Name {
			return a.Permission.Name < b.Permission.Name
		}
		return a.GrantedBy.Name < b.GrantedBy.Name
	})

	decision.Attempted = append(decision.Attempted, PathDirect)
	for _, c := range candidates {
		if !orgMatches(Scope(c.grant.Permission.Scope), actor, req.Resource) {
			continue
		}
		if !restrictionsAllow(c.held, actor, req.Resource) || !restrictionsAllow(c.grant.GrantedBy, actor, req.Resource) {
			continue
		}
		decision.Allowed = true
		decision.Via = PathDirect
		decision.Permission = c.grant.Permission.Name
		decision.RoleID = c.grant.GrantedBy.ID
		decision.RoleName = c.grant.GrantedBy.Name
		if c.held.ID != c.grant.GrantedBy.ID {
			decision.HeldRoleID = c.held.ID
		}
		e.record(decision)
		return decision, nil
	}

	if e.legacy != nil && len(activeNames) > 0 {
		decision.Attempted = append(decision.Attempted, PathFallback)
		sort.Strings(activeNames)
		for _, name := range activeNames {
			if !e.legacy.Covers(name, decision.ResourceType, decision.Action) {
				continue
			}
			decision.Allowed = true
			decision.Via = PathFallback
			decision.RoleName = name
			decision.Reason = fmt.Sprintf("legacy role mapping v%d", e.legacy.Version())
			e.log.Warn("authorization granted through legacy role fallback",
				zap.String("user_id", actor.UserID),
				zap.String("role_name", name),
				zap.String("requested", decision.Requested()),
				zap.Int("legacy_version", e.legacy.Version()),
			)
			monitoring.RecordLegacyFallback(name)
			e.record(decision)
			return decision, nil
		}
	}

	decision.Via = PathNone
	if len(candidates) == 0 {
		decision.Reason = fmt.Sprintf("no grant of %s.%s at scope %s or broader", decision.ResourceType, decision.Action, decision.RequestedScope)
	} else {
		decision.Reason = "matching grants do not cover the resource's organizational placement"
	}
	e.record(decision)
	return decision, nil
}

// Allowed is a convenience wrapper returning only the verdict.
func (e *Evaluator) Allowed(ctx context.Context, actor Actor, req Request) (bool, error) {
	decision, err := e.Authorize(ctx, actor, req)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

func (e *Evaluator) newDecision(req Request) (Decision, error) {
	decision := Decision{
		Via:            PathNone,
		ResourceType:   normaliseSegment(req.ResourceType),
		Action:         normaliseSegment(req.Action),
		RequestedScope: ScopeOwn,
	}
	if req.Scope != "" {
		decision.RequestedScope = Scope(normaliseSegment(string(req.Scope)))
	}
	name := Name{ResourceType: decision.ResourceType, Action: decision.Action, Scope: decision.RequestedScope}
	if reason := name.problem(); reason != "" {
		decision.Reason = reason
		return decision, apperrors.NewValidation("Invalid authorization request", map[string]any{
			"requested": name.String(),
			"reason":    reason,
		})
	}
	return decision, nil
}

func (e *Evaluator) fail(decision Decision, actor Actor, err error) (Decision, error) {
	decision.Allowed = false
	decision.Via = PathError
	decision.Reason = "authorization evaluation failed"
	e.log.Error("authorization evaluation failed",
		zap.String("user_id", actor.UserID),
		zap.Strings("role_ids", actor.RoleIDs),
		zap.String("requested", decision.Requested()),
		zap.Error(err),
	)
	e.record(decision)
	return decision, err
}

func (e *Evaluator) record(decision Decision) {
	result := "denied"
	switch {
	case decision.Via == PathError:
		result = "error"
	case decision.Allowed:
		result = "allowed"
	}
	monitoring.RecordPermissionCheck(decision.Requested(), result)
	monitoring.RecordAuthorizationDecision(string(decision.Via), decision.ResourceType)
}

// orgMatches applies the organizational test implied by a grant's scope.
// Empty identifiers never match.
func orgMatches(scope Scope, actor Actor, res *Resource) bool {
	if res == nil {
		return true
	}
	switch scope {
	case ScopeGlobal:
		return true
	case ScopeBranch:
		return sameUnit(actor.BranchID, res.BranchID)
	case ScopeDepartment:
		return sameUnit(actor.DepartmentID, res.DepartmentID)
	case ScopeTeam:
		return sameUnit(actor.TeamID, res.TeamID)
	case ScopeOwn:
		return sameUnit(actor.UserID, res.OwnerID)
	}
	return false
}

// restrictionsAllow confines a role to its allowed units. Without a resource
// the actor's own placement is checked.
func restrictionsAllow(role RoleRef, actor Actor, res *Resource) bool {
	department, branch := actor.DepartmentID, actor.BranchID
	if res != nil {
		department, branch = res.DepartmentID, res.BranchID
	}
	if role.DepartmentRestricted && (department == "" || !slices.Contains(role.AllowedDepartments, department)) {
		return false
	}
	if role.BranchRestricted && (branch == "" || !slices.Contains(role.AllowedBranches, branch)) {
		return false
	}
	return true
}

func sameUnit(a, b string) bool {
	return a != "" && a == b
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
