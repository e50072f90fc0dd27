package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gatekeeper/internal/database"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

// SyntheticRolePrefix names the per-user roles that carry templates applied to a user.
const SyntheticRolePrefix = "user:"

// EffectivePermissionResolver returns the inheritance closure of a role.
type EffectivePermissionResolver interface {
	EffectivePermissions(ctx context.Context, roleID string) ([]models.Permission, error)
}

// RoleServiceOption customises a RoleService.
type RoleServiceOption func(*RoleService)

// WithInvalidator replaces the cache invalidated after hierarchy and grant
// changes. Defaults to the resolver when it implements CacheInvalidator.
func WithInvalidator(inv CacheInvalidator) RoleServiceOption {
	return func(s *RoleService) {
		s.invalidator = inv
	}
}

// WithSystemRoleMatrixProtection makes every grant and revoke on a system role
// fail with SystemRoleProtected.
func WithSystemRoleMatrixProtection(enabled bool) RoleServiceOption {
	return func(s *RoleService) {
		s.protectMatrix = enabled
	}
}

// GrantOption adjusts a single grant or revoke call.
type GrantOption func(*grantOptions)

type grantOptions struct {
	protectSystemRoles bool
}

// ProtectSystemRoles requests matrix-level protection for this call.
func ProtectSystemRoles() GrantOption {
	return func(o *grantOptions) {
		o.protectSystemRoles = true
	}
}

// RoleService manages the role hierarchy, direct grants and assignments.
type RoleService struct {
	db            *gorm.DB
	audit         *AuditService
	catalog       *permissions.Catalog
	resolver      EffectivePermissionResolver
	invalidator   CacheInvalidator
	protectMatrix bool
}

// NewRoleService constructs a RoleService.
func NewRoleService(db *gorm.DB, audit *AuditService, resolver EffectivePermissionResolver, opts ...RoleServiceOption) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	if audit == nil {
		return nil, errors.New("role service: audit service is required")
	}
	if resolver == nil {
		return nil, errors.New("role service: resolver is required")
	}
	catalog, err := permissions.NewCatalog(db)
	if err != nil {
		return nil, err
	}

	svc := &RoleService{
		db:       db,
		audit:    audit,
		catalog:  catalog,
		resolver: resolver,
	}
	if inv, ok := resolver.(CacheInvalidator); ok {
		svc.invalidator = inv
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateRoleInput describes the payload accepted by CreateRole.
type CreateRoleInput struct {
	Name                 string   `json:"name" validate:"required,max=100"`
	DisplayName          string   `json:"display_name" validate:"max=160"`
	Description          string   `json:"description"`
	Level                int      `json:"level" validate:"gte=0,lte=100"`
	ParentRoleID         *string  `json:"parent_role_id"`
	DepartmentRestricted bool     `json:"department_restricted"`
	BranchRestricted     bool     `json:"branch_restricted"`
	AllowedDepartments   []string `json:"allowed_departments"`
	AllowedBranches      []string `json:"allowed_branches"`
	IsActive             *bool    `json:"is_active"`
}

// UpdateRoleInput lists mutable role fields. Nil leaves a field unchanged.
type UpdateRoleInput struct {
	Name                 *string   `json:"name" validate:"omitempty,max=100"`
	DisplayName          *string   `json:"display_name" validate:"omitempty,max=160"`
	Description          *string   `json:"description"`
	Level                *int      `json:"level" validate:"omitempty,gte=0,lte=100"`
	DepartmentRestricted *bool     `json:"department_restricted"`
	BranchRestricted     *bool     `json:"branch_restricted"`
	AllowedDepartments   *[]string `json:"allowed_departments"`
	AllowedBranches      *[]string `json:"allowed_branches"`
	IsActive             *bool     `json:"is_active"`
}

// RoleListOptions filters ListRoles.
type RoleListOptions struct {
	IncludeInactive  bool
	IncludeSynthetic bool
}

// AssignmentFilter narrows ListAssignments. Empty fields match everything.
type AssignmentFilter struct {
	UserID string
	RoleID string
}

// GrantResult reports whether a grant or revoke changed the role.
type GrantResult struct {
	Role       models.Role       `json:"role"`
	Permission models.Permission `json:"permission"`
	Changed    bool              `json:"changed"`
}

// CreateRole registers a new, non-system role.
func (s *RoleService) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role *models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := insertRole(tx, input, nil)
		if err != nil {
			return err
		}
		role = created

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditRoleCreate,
			EntityType:   EntityRole,
			EntityID:     role.ID,
			TargetRoleID: role.ID,
			Details:      roleSnapshot(role),
		})
		return err
	})
	if err != nil {
		return nil, wrap("role service", "create role", err)
	}
	return role, nil
}

// UpdateRole changes role attributes. Renaming a system role is rejected.
func (s *RoleService) UpdateRole(ctx context.Context, roleID string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)
	if err := validateInput("Invalid role update", input); err != nil {
		return nil, err
	}

	var role models.Role
	changes := map[string]any{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadRole(tx, roleID, &role); err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Name != nil {
			name := normaliseRoleName(*input.Name)
			if name == "" {
				return apperrors.NewValidation("Invalid role update", map[string]any{"name": "required"})
			}
			if name != role.Name {
				if role.IsSystemRole {
					return systemRoleProtected(role.Name, "rename")
				}
				if err := checkRoleName(name); err != nil {
					return err
				}
				updates["name"] = name
			}
		}
		if value := trimmedPtr(input.DisplayName); value != nil && *value != role.DisplayName {
			updates["display_name"] = *value
		}
		if value := trimmedPtr(input.Description); value != nil && *value != role.Description {
			updates["description"] = *value
		}
		if input.Level != nil && *input.Level != role.Level {
			updates["level"] = *input.Level
		}
		if input.DepartmentRestricted != nil && *input.DepartmentRestricted != role.DepartmentRestricted {
			updates["department_restricted"] = *input.DepartmentRestricted
		}
		if input.BranchRestricted != nil && *input.BranchRestricted != role.BranchRestricted {
			updates["branch_restricted"] = *input.BranchRestricted
		}
		if input.AllowedDepartments != nil {
			if next := normaliseIDs(*input.AllowedDepartments); !sameSet(next, role.AllowedDepartments) {
				updates["allowed_departments"] = datatypes.NewJSONSlice(nonNil(next))
				changes["allowed_departments"] = nonNil(next)
			}
		}
		if input.AllowedBranches != nil {
			if next := normaliseIDs(*input.AllowedBranches); !sameSet(next, role.AllowedBranches) {
				updates["allowed_branches"] = datatypes.NewJSONSlice(nonNil(next))
				changes["allowed_branches"] = nonNil(next)
			}
		}
		if input.IsActive != nil && *input.IsActive != role.IsActive {
			updates["is_active"] = *input.IsActive
		}

		for key, value := range updates {
			if _, ok := changes[key]; !ok {
				changes[key] = value
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&role).Updates(updates).Error; err != nil {
				if database.IsUniqueConstraintError(err) {
					return ErrRoleExists.WithDetails(map[string]any{"name": updates["name"]})
				}
				return fmt.Errorf("role service: update role: %w", err)
			}
			if err := loadRole(tx, roleID, &role); err != nil {
				return err
			}
		}

		_, err := s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditRoleUpdate,
			EntityType:   EntityRole,
			EntityID:     role.ID,
			TargetRoleID: role.ID,
			Details:      map[string]any{"changes": changes},
		})
		return err
	})
	if err != nil {
		return nil, wrap("role service", "update role", err)
	}

	if len(changes) > 0 {
		invalidate(ctx, s.invalidator, AuditRoleUpdate)
	}
	return &role, nil
}

// DeleteRole removes a non-system role, its grants and its assignments.
// Children are detached and become roots.
func (s *RoleService) DeleteRole(ctx context.Context, roleID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := loadRole(tx, roleID, &role); err != nil {
			return err
		}
		if role.IsSystemRole {
			return systemRoleProtected(role.Name, "delete")
		}

		detached := tx.Model(&models.Role{}).Where("parent_role_id = ?", role.ID).Update("parent_role_id", nil)
		if detached.Error != nil {
			return fmt.Errorf("role service: detach children: %w", detached.Error)
		}
		grants := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermission{})
		if grants.Error != nil {
			return fmt.Errorf("role service: delete grants: %w", grants.Error)
		}
		assignments := tx.Where("role_id = ?", role.ID).Delete(&models.RoleAssignment{})
		if assignments.Error != nil {
			return fmt.Errorf("role service: delete assignments: %w", assignments.Error)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("role service: delete role: %w", err)
		}

		_, err := s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditRoleDelete,
			EntityType:   EntityRole,
			EntityID:     role.ID,
			TargetRoleID: role.ID,
			Details: map[string]any{
				"name":                role.Name,
				"detached_children":   detached.RowsAffected,
				"removed_grants":      grants.RowsAffected,
				"removed_assignments": assignments.RowsAffected,
			},
		})
		return err
	})
	if err != nil {
		return wrap("role service", "delete role", err)
	}

	invalidate(ctx, s.invalidator, AuditRoleDelete)
	return nil
}

// SetParent re-parents a role. A nil or empty parentID makes it a root. The
// ancestor chain of the new parent is walked so the role cannot become its
// own ancestor.
func (s *RoleService) SetParent(ctx context.Context, roleID string, parentID *string) (*models.Role, error) {
	ctx = ensureContext(ctx)
	parentID = trimmedPtr(parentID)
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	var role models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadRole(tx, roleID, &role); err != nil {
			return err
		}
		if parentID != nil {
			if err := ensureAcyclic(tx, role.ID, *parentID); err != nil {
				return err
			}
		}

		previous := role.ParentRoleID
		if err := tx.Model(&role).Update("parent_role_id", parentID).Error; err != nil {
			return fmt.Errorf("role service: set parent: %w", err)
		}
		role.ParentRoleID = parentID

		_, err := s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditRoleSetParent,
			EntityType:   EntityRole,
			EntityID:     role.ID,
			TargetRoleID: role.ID,
			Details: map[string]any{
				"previous_parent_id": derefString(previous),
				"parent_id":          derefString(parentID),
			},
		})
		return err
	})
	if err != nil {
		return nil, wrap("role service", "set parent", err)
	}

	invalidate(ctx, s.invalidator, AuditRoleSetParent)
	return &role, nil
}

// GrantPermission links a permission to a role. permissionRef is either a
// catalog id or a RESOURCE.ACTION.SCOPE name. Granting twice is a no-op that
// is still audited.
func (s *RoleService) GrantPermission(ctx context.Context, roleID, permissionRef string, opts ...GrantOption) (*GrantResult, error) {
	return s.changeGrant(ctx, roleID, permissionRef, AuditRoleGrant, opts)
}

// RevokePermission unlinks a permission from a role. Revoking a permission the
// role does not hold directly is a no-op.
func (s *RoleService) RevokePermission(ctx context.Context, roleID, permissionRef string, opts ...GrantOption) (*GrantResult, error) {
	return s.changeGrant(ctx, roleID, permissionRef, AuditRoleRevoke, opts)
}

func (s *RoleService) changeGrant(ctx context.Context, roleID, permissionRef, action string, opts []GrantOption) (*GrantResult, error) {
	ctx = ensureContext(ctx)
	options := grantOptions{protectSystemRoles: s.protectMatrix}
	for _, opt := range opts {
		opt(&options)
	}

	result := &GrantResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadRole(tx, roleID, &result.Role); err != nil {
			return err
		}
		if result.Role.IsSystemRole && options.protectSystemRoles {
			return systemRoleMatrixProtected(result.Role.Name, action)
		}

		perm, err := resolvePermissionRef(ctx, s.catalog.WithDB(tx), permissionRef)
		if err != nil {
			return err
		}
		result.Permission = *perm

		switch action {
		case AuditRoleGrant:
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RolePermission{
				RoleID:       result.Role.ID,
				PermissionID: perm.ID,
			})
			if res.Error != nil {
				return fmt.Errorf("role service: grant: %w", res.Error)
			}
			result.Changed = res.RowsAffected > 0
		default:
			res := tx.Where("role_id = ? AND permission_id = ?", result.Role.ID, perm.ID).Delete(&models.RolePermission{})
			if res.Error != nil {
				return fmt.Errorf("role service: revoke: %w", res.Error)
			}
			result.Changed = res.RowsAffected > 0
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       action,
			EntityType:   EntityRole,
			EntityID:     result.Role.ID,
			TargetRoleID: result.Role.ID,
			PermissionID: perm.ID,
			Details: map[string]any{
				"permission": perm.Name,
				"changed":    result.Changed,
			},
		})
		return err
	})
	if err != nil {
		return nil, wrap("role service", action, err)
	}

	if result.Changed {
		invalidate(ctx, s.invalidator, action)
	}
	return result, nil
}

// ResolveEffectivePermissions returns the role's own and inherited permissions.
func (s *RoleService) ResolveEffectivePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	perms, err := s.resolver.EffectivePermissions(ensureContext(ctx), roleID)
	if err != nil {
		return nil, wrap("role service", "resolve effective permissions", err)
	}
	return perms, nil
}

// DirectPermissions returns the live permissions granted to the role itself.
func (s *RoleService) DirectPermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	if err := loadRole(s.db.WithContext(ctx), roleID, &role); err != nil {
		return nil, err
	}

	var perms []models.Permission
	err := s.db.WithContext(ctx).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", role.ID).
		Order("permissions.name ASC").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("role service: direct permissions: %w", err)
	}
	return perms, nil
}

// AssignRole gives userID the role. Assigning a held role is a no-op that is
// still audited.
func (s *RoleService) AssignRole(ctx context.Context, userID, roleID string) (*models.RoleAssignment, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("Invalid role assignment", map[string]any{"user_id": "required"})
	}

	var assignment models.RoleAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := loadRole(tx, roleID, &role); err != nil {
			return err
		}
		created, err := assignRole(ctx, tx, userID, role.ID, &assignment)
		if err != nil {
			return err
		}
		assignment.Role = &role

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditAssignmentCreate,
			EntityType:   EntityAssignment,
			EntityID:     assignment.ID,
			TargetUserID: userID,
			TargetRoleID: role.ID,
			Details:      map[string]any{"role": role.Name, "changed": created},
		})
		return err
	})
	if err != nil {
		return nil, wrap("role service", "assign role", err)
	}
	return &assignment, nil
}

// UnassignRole removes the role from userID.
func (s *RoleService) UnassignRole(ctx context.Context, userID, roleID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment models.RoleAssignment
		err := tx.Where("user_id = ? AND role_id = ?", userID, strings.TrimSpace(roleID)).Take(&assignment).Error
		if err != nil {
			if database.IsNotFound(err) {
				return ErrAssignmentNotFound.WithDetails(map[string]any{"user_id": userID, "role_id": roleID})
			}
			return fmt.Errorf("role service: load assignment: %w", err)
		}
		if err := tx.Delete(&assignment).Error; err != nil {
			return fmt.Errorf("role service: delete assignment: %w", err)
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditAssignmentDelete,
			EntityType:   EntityAssignment,
			EntityID:     assignment.ID,
			TargetUserID: userID,
			TargetRoleID: assignment.RoleID,
		})
		return err
	})
	return wrap("role service", "unassign role", err)
}

// ListRoles returns roles ordered by level then name.
func (s *RoleService) ListRoles(ctx context.Context, opts RoleListOptions) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Role{})
	if !opts.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if !opts.IncludeSynthetic {
		query = query.Where("is_synthetic = ?", false)
	}

	var roles []models.Role
	if err := query.Order("level DESC").Order("name ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return roles, nil
}

// GetRole loads a role by id.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	var role models.Role
	if err := loadRole(s.db.WithContext(ensureContext(ctx)), roleID, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// ListAssignments returns assignments with their roles, newest first.
func (s *RoleService) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]models.RoleAssignment, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Preload("Role")
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if roleID := strings.TrimSpace(filter.RoleID); roleID != "" {
		query = query.Where("role_id = ?", roleID)
	}

	var assignments []models.RoleAssignment
	if err := query.Order("assigned_at DESC").Order("id ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("role service: list assignments: %w", err)
	}
	return assignments, nil
}

// RoleIDsForUser returns the ids of every role assigned to userID.
func (s *RoleService) RoleIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.RoleAssignment{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("role_id ASC").
		Pluck("role_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("role service: role ids for user: %w", err)
	}
	return ids, nil
}

// insertRole validates input and creates the role inside tx.
// A non-nil owner marks the role as the synthetic role of that user.
func insertRole(tx *gorm.DB, input CreateRoleInput, owner *string) (*models.Role, error) {
	synthetic := owner != nil
	input.Name = normaliseRoleName(input.Name)
	if err := validateInput("Invalid role", input); err != nil {
		return nil, err
	}
	if !synthetic {
		if err := checkRoleName(input.Name); err != nil {
			return nil, err
		}
	}

	parentID := trimmedPtr(input.ParentRoleID)
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		var parent models.Role
		if err := loadRole(tx, *parentID, &parent); err != nil {
			return nil, err
		}
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	role := &models.Role{
		Name:                 input.Name,
		DisplayName:          strings.TrimSpace(input.DisplayName),
		Description:          strings.TrimSpace(input.Description),
		Level:                input.Level,
		ParentRoleID:         parentID,
		IsSynthetic:          synthetic,
		OwnerUserID:          owner,
		DepartmentRestricted: input.DepartmentRestricted,
		BranchRestricted:     input.BranchRestricted,
		AllowedDepartments:   datatypes.NewJSONSlice(nonNil(normaliseIDs(input.AllowedDepartments))),
		AllowedBranches:      datatypes.NewJSONSlice(nonNil(normaliseIDs(input.AllowedBranches))),
		IsActive:             active,
	}
	if role.DisplayName == "" {
		role.DisplayName = role.Name
	}

	if err := tx.Create(role).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrRoleExists.WithDetails(map[string]any{"name": role.Name})
		}
		return nil, fmt.Errorf("role service: create role: %w", err)
	}
	return role, nil
}

// assignRole inserts the assignment if missing and loads it into out.
func assignRole(ctx context.Context, tx *gorm.DB, userID, roleID string, out *models.RoleAssignment) (bool, error) {
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		AssignedAt: time.Now().UTC(),
		AssignedBy: actorID(ctx),
	})
	if res.Error != nil {
		return false, fmt.Errorf("assign role: %w", res.Error)
	}
	if err := tx.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).Take(out).Error; err != nil {
		return false, fmt.Errorf("assign role: reload: %w", err)
	}
	return res.RowsAffected > 0, nil
}

// ensureAcyclic walks from parentID to the root and fails if roleID is met.
func ensureAcyclic(tx *gorm.DB, roleID, parentID string) error {
	visited := map[string]struct{}{}
	current := parentID
	for current != "" {
		if current == roleID {
			return apperrors.ErrCyclicHierarchy.WithDetails(map[string]any{
				"role_id":   roleID,
				"parent_id": parentID,
			})
		}
		if _, seen := visited[current]; seen {
			return permissions.ErrHierarchyCorrupted.WithDetails(map[string]any{"role_id": current})
		}
		visited[current] = struct{}{}

		var node models.Role
		if err := tx.Select("id", "parent_role_id").Where("id = ?", current).Take(&node).Error; err != nil {
			if database.IsNotFound(err) {
				if current == parentID {
					return roleNotFound(parentID)
				}
				// dangling pointer: the chain ends here
				return nil
			}
			return fmt.Errorf("role service: walk ancestors: %w", err)
		}
		current = derefString(node.ParentRoleID)
	}
	return nil
}

func loadRole(tx *gorm.DB, roleID string, out *models.Role) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return roleNotFound(roleID)
	}
	if err := tx.Where("id = ?", roleID).Take(out).Error; err != nil {
		if database.IsNotFound(err) {
			return roleNotFound(roleID)
		}
		return fmt.Errorf("load role: %w", err)
	}
	return nil
}

// resolvePermissionRef accepts a catalog id or a portable name.
func resolvePermissionRef(ctx context.Context, catalog *permissions.Catalog, ref string) (*models.Permission, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, ".") {
		return catalog.FindByName(ctx, ref)
	}
	if ref == "" {
		return nil, apperrors.NewValidation("Permission is required", map[string]any{"permission": "required"})
	}
	return catalog.FindByID(ctx, ref)
}

func checkRoleName(name string) error {
	if strings.HasPrefix(name, SyntheticRolePrefix) {
		return apperrors.NewValidation("Invalid role", map[string]any{
			"name": "prefix " + SyntheticRolePrefix + " is reserved",
		})
	}
	return nil
}

func normaliseRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func roleSnapshot(role *models.Role) map[string]any {
	return map[string]any{
		"name":                  role.Name,
		"level":                 role.Level,
		"parent_role_id":        derefString(role.ParentRoleID),
		"is_active":             role.IsActive,
		"department_restricted": role.DepartmentRestricted,
		"branch_restricted":     role.BranchRestricted,
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
