package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/database"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
)

// DefaultCacheSize bounds the number of resolved roles kept in memory.
const DefaultCacheSize = 1024

// RoleRef identifies a role within a resolved chain.
type RoleRef struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Level                int      `json:"level"`
	IsActive             bool     `json:"is_active"`
	DepartmentRestricted bool     `json:"department_restricted"`
	BranchRestricted     bool     `json:"branch_restricted"`
	AllowedDepartments   []string `json:"allowed_departments,omitempty"`
	AllowedBranches      []string `json:"allowed_branches,omitempty"`
}

// Grant is a permission reachable from a role together with the role that
// directly holds it.
type Grant struct {
	Permission models.Permission
	GrantedBy  RoleRef
}

// Name returns the grant's typed permission identity.
func (g Grant) Name() Name {
	return NameOf(g.Permission)
}

// ResolvedRole is the cached inheritance closure of one role.
type ResolvedRole struct {
	Role   RoleRef
	Chain  []RoleRef
	Grants []Grant
}

// Permissions returns the deduplicated effective permission set ordered by name.
func (r *ResolvedRole) Permissions() []models.Permission {
	seen := make(map[string]struct{}, len(r.Grants))
	out := make([]models.Permission, 0, len(r.Grants))
	for _, grant := range r.Grants {
		if _, ok := seen[grant.Permission.ID]; ok {
			continue
		}
		seen[grant.Permission.ID] = struct{}{}
		out = append(out, grant.Permission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolver computes effective permissions through the role hierarchy and
// memoises them per role.
type Resolver struct {
	db    *gorm.DB
	cache *lru.Cache[string, *ResolvedRole]
	group singleflight.Group

	mu         sync.Mutex
	generation uint64
}

// NewResolver builds a resolver with an LRU of the given size.
func NewResolver(db *gorm.DB, cacheSize int) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("resolver: db is required")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *ResolvedRole](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: create cache: %w", err)
	}
	return &Resolver{db: db, cache: cache}, nil
}

// Resolve returns the inheritance closure of roleID.
func (r *Resolver) Resolve(ctx context.Context, roleID string) (*ResolvedRole, error) {
	if resolved, ok := r.cache.Get(roleID); ok {
		monitoring.RecordResolverLookup("hit")
		return resolved, nil
	}
	monitoring.RecordResolverLookup("miss")

	r.mu.Lock()
	generation := r.generation
	r.mu.Unlock()

	// Keyed by generation so callers arriving after an invalidation never
	// join a load that started before it.
	key := fmt.Sprintf("%d/%s", generation, roleID)
	value, err, _ := r.group.Do(key, func() (any, error) {
		// Shared loads must not fail because the first caller went away.
		resolved, err := r.load(context.WithoutCancel(ctx), roleID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if r.generation == generation {
			r.cache.Add(roleID, resolved)
		}
		r.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*ResolvedRole), nil
}

// EffectivePermissions returns the deduplicated permission set of roleID.
func (r *Resolver) EffectivePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	resolved, err := r.Resolve(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return resolved.Permissions(), nil
}

// InvalidateAll drops every cached closure after a local mutation.
func (r *Resolver) InvalidateAll(context.Context) error {
	r.Purge()
	monitoring.RecordCacheInvalidation("local")
	return nil
}

// Purge drops every cached closure. Loads already in flight finish but their
// results are not stored.
func (r *Resolver) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.cache.Purge()
}

// Len reports the number of cached closures.
func (r *Resolver) Len() int {
	return r.cache.Len()
}

func (r *Resolver) load(ctx context.Context, roleID string) (*ResolvedRole, error) {
	db := r.db.WithContext(ctx)

	chain, err := loadChain(db, roleID)
	if err != nil {
		return nil, err
	}

	activeIDs := make([]string, 0, len(chain))
	byID := make(map[string]RoleRef, len(chain))
	for _, ref := range chain {
		byID[ref.ID] = ref
		if ref.IsActive {
			activeIDs = append(activeIDs, ref.ID)
		}
	}

	resolved := &ResolvedRole{Role: chain[0], Chain: chain}
	if len(activeIDs) == 0 {
		return resolved, nil
	}

	var links []models.RolePermission
	if err := db.Where("role_id IN ?", activeIDs).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("resolver: load grants: %w", err)
	}
	if len(links) == 0 {
		return resolved, nil
	}

	permIDs := make([]string, 0, len(links))
	for _, link := range links {
		permIDs = append(permIDs, link.PermissionID)
	}
	var perms []models.Permission
	if err := db.Where("id IN ?", permIDs).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("resolver: load permissions: %w", err)
	}
	permsByID := make(map[string]models.Permission, len(perms))
	for _, perm := range perms {
		permsByID[perm.ID] = perm
	}

	for _, link := range links {
		perm, ok := permsByID[link.PermissionID]
		if !ok {
			// soft-deleted catalog entry
			continue
		}
		resolved.Grants = append(resolved.Grants, Grant{Permission: perm, GrantedBy: byID[link.RoleID]})
	}
	sort.SliceStable(resolved.Grants, func(i, j int) bool {
		a, b := resolved.Grants[i], resolved.Grants[j]
		if a.Permission.Name != b.Permission.Name {
			return a.Permission.Name < b.Permission.Name
		}
		return a.GrantedBy.Level > b.GrantedBy.Level
	})
	return resolved, nil
}

// loadChain returns roleID followed by its ancestors, nearest first.
func loadChain(db *gorm.DB, roleID string) ([]RoleRef, error) {
	var chain []RoleRef
	visited := make(map[string]struct{})

	current := roleID
	for current != "" {
		if _, seen := visited[current]; seen {
			return nil, ErrHierarchyCorrupted.WithDetails(map[string]any{"role_id": roleID, "repeated": current})
		}
		visited[current] = struct{}{}

		var role models.Role
		if err := db.Where("id = ?", current).Take(&role).Error; err != nil {
			if database.IsNotFound(err) {
				if current == roleID {
					return nil, ErrRoleNotFound.WithDetails(map[string]any{"role_id": roleID})
				}
				// dangling parent pointer: the chain ends here
				break
			}
			return nil, fmt.Errorf("resolver: load role %s: %w", current, err)
		}
		chain = append(chain, RefOf(role))

		if role.ParentRoleID == nil {
			break
		}
		current = *role.ParentRoleID
	}
	return chain, nil
}

// RefOf builds a RoleRef from a stored role.
func RefOf(role models.Role) RoleRef {
	return RoleRef{
		ID:                   role.ID,
		Name:                 role.Name,
		Level:                role.Level,
		IsActive:             role.IsActive,
		DepartmentRestricted: role.DepartmentRestricted,
		BranchRestricted:     role.BranchRestricted,
		AllowedDepartments:   append([]string(nil), role.AllowedDepartments...),
		AllowedBranches:      append([]string(nil), role.AllowedBranches...),
	}
}
