package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/gatekeeper/internal/database"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

// TemplateFormatVersion is stamped into exported documents.
const TemplateFormatVersion = 1

// maxUserIDLength matches the role_assignments.user_id column.
const maxUserIDLength = 128

// CreateTemplateInput describes a template authored from scratch. Every
// permission must already exist in the catalog.
type CreateTemplateInput struct {
	Name         string   `json:"name" validate:"required,max=120"`
	Description  string   `json:"description"`
	TemplateType string   `json:"template_type" validate:"omitempty,oneof=role custom"`
	Permissions  []string `json:"permissions"`
}

// TemplateDocument is the portable export format. Permissions are always
// RESOURCE.ACTION.SCOPE names so documents move between deployments.
type TemplateDocument struct {
	Name         string         `json:"name" validate:"required,max=120"`
	Description  string         `json:"description"`
	TemplateType string         `json:"template_type" validate:"omitempty,oneof=role custom"`
	Permissions  []string       `json:"permissions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TemplateView is a template with its permissions rendered as portable names.
type TemplateView struct {
	models.PermissionTemplate
	PermissionNames []string `json:"permissions"`
	// Orphaned counts references to permissions deleted from the catalog.
	Orphaned int `json:"orphaned_permissions,omitempty"`
}

// ImportResult reports the outcome of ImportTemplate.
type ImportResult struct {
	Template *TemplateView `json:"template"`
	Unmapped []string      `json:"unmapped"`
	Created  bool          `json:"created"`
}

// ApplyTarget selects where ApplyTemplate copies permissions. Exactly one
// field must be set.
type ApplyTarget struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

// ApplyResult reports what ApplyTemplate granted.
type ApplyResult struct {
	TemplateID   string `json:"template_id"`
	TargetRoleID string `json:"target_role_id"`
	GrantedCount int    `json:"granted_count"`
	AlreadyHeld  int    `json:"already_held"`
}

// ExportRoleInput names the template created from a role.
type ExportRoleInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
}

// TemplateListOptions filters ListTemplates.
type TemplateListOptions struct {
	IncludeInactive bool
	TemplateType    string
}

// TemplateService manages reusable permission bundles.
type TemplateService struct {
	db            *gorm.DB
	audit         *AuditService
	catalog       *permissions.Catalog
	invalidator   CacheInvalidator
	protectMatrix bool
}

// TemplateServiceOption customises a TemplateService.
type TemplateServiceOption func(*TemplateService)

// WithTemplateMatrixProtection makes applying a template to a system role fail
// with SystemRoleProtected, matching the role service setting.
func WithTemplateMatrixProtection(enabled bool) TemplateServiceOption {
	return func(s *TemplateService) {
		s.protectMatrix = enabled
	}
}

// NewTemplateService constructs a TemplateService. inv may be nil when no
// effective-permission cache is in use.
func NewTemplateService(db *gorm.DB, audit *AuditService, inv CacheInvalidator, opts ...TemplateServiceOption) (*TemplateService, error) {
	if db == nil {
		return nil, errors.New("template service: db is required")
	}
	if audit == nil {
		return nil, errors.New("template service: audit service is required")
	}
	catalog, err := permissions.NewCatalog(db)
	if err != nil {
		return nil, err
	}
	svc := &TemplateService{db: db, audit: audit, catalog: catalog, invalidator: inv}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateTemplate stores a new custom template. Unknown permission names fail
// the call with their list in the error details.
func (s *TemplateService) CreateTemplate(ctx context.Context, input CreateTemplateInput) (*TemplateView, error) {
	ctx = ensureContext(ctx)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput("Invalid template", input); err != nil {
		return nil, err
	}

	var view *TemplateView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := resolveNames(ctx, s.catalog.WithDB(tx), input.Permissions)
		if err != nil {
			return err
		}
		if len(resolved.unmapped) > 0 {
			return apperrors.NewValidation("Unknown permissions", map[string]any{"unmapped": resolved.unmapped})
		}

		tpl := models.PermissionTemplate{
			Name:         input.Name,
			Description:  strings.TrimSpace(input.Description),
			TemplateType: templateType(input.TemplateType, models.TemplateTypeCustom),
			IsActive:     true,
			CreatedBy:    actorID(ctx),
		}
		if err := insertTemplate(tx, &tpl, resolved.ids); err != nil {
			return err
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:     AuditTemplateCreate,
			EntityType: EntityTemplate,
			EntityID:   tpl.ID,
			Details:    map[string]any{"name": tpl.Name, "permissions": resolved.names},
		})
		if err != nil {
			return err
		}
		view, err = s.loadView(ctx, tx, tpl.ID)
		return err
	})
	if err != nil {
		return nil, wrap("template service", "create template", err)
	}
	return view, nil
}

// GetTemplate loads a template by id.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*TemplateView, error) {
	ctx = ensureContext(ctx)
	view, err := s.loadView(ctx, s.db.WithContext(ctx), id)
	if err != nil {
		return nil, wrap("template service", "get template", err)
	}
	return view, nil
}

// ListTemplates returns templates ordered by name.
func (s *TemplateService) ListTemplates(ctx context.Context, opts TemplateListOptions) ([]TemplateView, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Preload("Permissions")
	if !opts.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if kind := strings.TrimSpace(opts.TemplateType); kind != "" {
		query = query.Where("template_type = ?", kind)
	}

	var templates []models.PermissionTemplate
	if err := query.Order("name ASC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("template service: list templates: %w", err)
	}
	views, err := s.views(ctx, s.catalog, templates)
	if err != nil {
		return nil, fmt.Errorf("template service: list templates: %w", err)
	}
	return views, nil
}

// ExportTemplate renders a template as a portable document. Permissions that
// were deleted from the catalog are left out and counted in the metadata.
func (s *TemplateService) ExportTemplate(ctx context.Context, id string) (*TemplateDocument, error) {
	ctx = ensureContext(ctx)

	view, err := s.loadView(ctx, s.db.WithContext(ctx), id)
	if err != nil {
		return nil, wrap("template service", "export template", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &TemplateDocument{
		Name:         view.Name,
		Description:  view.Description,
		TemplateType: view.TemplateType,
		Permissions:  append([]string{}, view.PermissionNames...),
		Metadata: map[string]any{
			"format_version":       TemplateFormatVersion,
			"exported_at":          time.Now().UTC().Format(time.RFC3339),
			"is_system_template":   view.IsSystemTemplate,
			"usage_count":          view.UsageCount,
			"orphaned_permissions": view.Orphaned,
		},
	}, nil
}

// ImportTemplate creates or, with updateIfExists, replaces a template from a
// portable document. Names that are malformed or absent from the catalog are
// returned as unmapped and left out. Importing never changes usage_count.
func (s *TemplateService) ImportTemplate(ctx context.Context, doc TemplateDocument, updateIfExists bool) (*ImportResult, error) {
	ctx = ensureContext(ctx)
	doc.Name = strings.TrimSpace(doc.Name)
	if err := validateInput("Invalid template document", doc); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := resolveNames(ctx, s.catalog.WithDB(tx), doc.Permissions)
		if err != nil {
			return err
		}
		result.Unmapped = resolved.unmapped

		var tpl models.PermissionTemplate
		err = tx.Where("name = ?", doc.Name).Take(&tpl).Error
		switch {
		case err == nil:
			if !updateIfExists {
				return ErrTemplateExists.WithDetails(map[string]any{"name": doc.Name})
			}
			updates := map[string]any{"description": strings.TrimSpace(doc.Description)}
			if kind := strings.TrimSpace(doc.TemplateType); kind != "" {
				updates["template_type"] = kind
			}
			if err := tx.Model(&tpl).Updates(updates).Error; err != nil {
				return fmt.Errorf("update template: %w", err)
			}
			if err := replaceTemplatePermissions(tx, tpl.ID, resolved.ids); err != nil {
				return err
			}
		case database.IsNotFound(err):
			tpl = models.PermissionTemplate{
				Name:         doc.Name,
				Description:  strings.TrimSpace(doc.Description),
				TemplateType: templateType(doc.TemplateType, models.TemplateTypeCustom),
				IsActive:     true,
				CreatedBy:    actorID(ctx),
			}
			if err := insertTemplate(tx, &tpl, resolved.ids); err != nil {
				return err
			}
			result.Created = true
		default:
			return fmt.Errorf("load template: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:     AuditTemplateImport,
			EntityType: EntityTemplate,
			EntityID:   tpl.ID,
			Details: map[string]any{
				"name":        tpl.Name,
				"created":     result.Created,
				"permissions": resolved.names,
				"unmapped":    resolved.unmapped,
			},
		})
		if err != nil {
			return err
		}
		result.Template, err = s.loadView(ctx, tx, tpl.ID)
		return err
	})
	if err != nil {
		return nil, wrap("template service", "import template", err)
	}

	return result, nil
}

// CreateRoleFromTemplate creates a role and grants it every live permission of
// the template in one transaction.
func (s *TemplateService) CreateRoleFromTemplate(ctx context.Context, templateID string, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role *models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := loadTemplate(tx, templateID)
		if err != nil {
			return err
		}
		if !tpl.IsActive {
			return ErrTemplateInactive.WithDetails(map[string]any{"template_id": tpl.ID})
		}

		role, err = insertRole(tx, input, nil)
		if err != nil {
			return err
		}
		granted, _, err := s.grantTemplate(ctx, tx, tpl, role.ID)
		if err != nil {
			return err
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditRoleFromTemplate,
			EntityType:   EntityRole,
			EntityID:     role.ID,
			TargetRoleID: role.ID,
			Details: map[string]any{
				"name":          role.Name,
				"template_id":   tpl.ID,
				"template":      tpl.Name,
				"granted_count": granted,
			},
		})
		return err
	})
	if err != nil {
		return nil, wrap("template service", "create role from template", err)
	}
	return role, nil
}

// ApplyTemplate copies the template's permissions onto a role, or onto the
// user's synthetic role which is created and assigned on first use. Each call
// counts as one use of the template.
func (s *TemplateService) ApplyTemplate(ctx context.Context, templateID string, target ApplyTarget) (*ApplyResult, error) {
	ctx = ensureContext(ctx)
	target.UserID = strings.TrimSpace(target.UserID)
	target.RoleID = strings.TrimSpace(target.RoleID)
	if (target.UserID == "") == (target.RoleID == "") {
		return nil, apperrors.NewValidation("Exactly one of user_id or role_id is required", map[string]any{
			"user_id": target.UserID,
			"role_id": target.RoleID,
		})
	}

	if len(target.UserID) > maxUserIDLength {
		return nil, apperrors.NewValidation("user_id is too long", map[string]any{
			"user_id": fmt.Sprintf("must be at most %d characters", maxUserIDLength),
		})
	}

	result := &ApplyResult{}
	targetKind := "role"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := loadTemplate(tx, templateID)
		if err != nil {
			return err
		}
		if !tpl.IsActive {
			return ErrTemplateInactive.WithDetails(map[string]any{"template_id": tpl.ID})
		}
		result.TemplateID = tpl.ID

		var role models.Role
		if target.UserID != "" {
			targetKind = "user"
			if err := syntheticRoleFor(ctx, tx, target.UserID, &role); err != nil {
				return err
			}
		} else {
			if err := loadRole(tx, target.RoleID, &role); err != nil {
				return err
			}
			if role.IsSystemRole && s.protectMatrix {
				return systemRoleMatrixProtected(role.Name, AuditTemplateApply)
			}
		}
		result.TargetRoleID = role.ID

		result.GrantedCount, result.AlreadyHeld, err = s.grantTemplate(ctx, tx, tpl, role.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.PermissionTemplate{}).
			Where("id = ?", tpl.ID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("bump usage: %w", err)
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditTemplateApply,
			EntityType:   EntityTemplate,
			EntityID:     tpl.ID,
			TargetUserID: target.UserID,
			TargetRoleID: role.ID,
			Details: map[string]any{
				"template":      tpl.Name,
				"target":        targetKind,
				"granted_count": result.GrantedCount,
				"already_held":  result.AlreadyHeld,
			},
		})
		return err
	})
	if err != nil {
		return nil, wrap("template service", "apply template", err)
	}

	monitoring.RecordTemplateApplication(targetKind)
	if result.GrantedCount > 0 {
		invalidate(ctx, s.invalidator, AuditTemplateApply)
	}
	return result, nil
}

// ExportRoleAsTemplate snapshots a role's direct permissions into a new
// role-type template. Permissions inherited from parent roles are not copied;
// applying the template to a role under the same parent reproduces the closure.
func (s *TemplateService) ExportRoleAsTemplate(ctx context.Context, roleID string, input ExportRoleInput) (*TemplateView, error) {
	ctx = ensureContext(ctx)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput("Invalid template", input); err != nil {
		return nil, err
	}

	var view *TemplateView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := loadRole(tx, roleID, &role); err != nil {
			return err
		}

		var perms []models.Permission
		if err := tx.Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
			Where("role_permissions.role_id = ?", role.ID).
			Order("permissions.name ASC").
			Find(&perms).Error; err != nil {
			return fmt.Errorf("load role permissions: %w", err)
		}
		ids := make([]string, len(perms))
		for i, perm := range perms {
			ids[i] = perm.ID
		}

		description := strings.TrimSpace(input.Description)
		if description == "" {
			description = fmt.Sprintf("Permissions of role %s", role.Name)
		}
		tpl := models.PermissionTemplate{
			Name:         input.Name,
			Description:  description,
			TemplateType: models.TemplateTypeRole,
			IsActive:     true,
			CreatedBy:    actorID(ctx),
		}
		if err := insertTemplate(tx, &tpl, ids); err != nil {
			return err
		}

		_, err := s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditTemplateFromRole,
			EntityType:   EntityTemplate,
			EntityID:     tpl.ID,
			TargetRoleID: role.ID,
			Details:      map[string]any{"name": tpl.Name, "role": role.Name, "permissions": len(ids)},
		})
		if err != nil {
			return err
		}
		view, err = s.loadView(ctx, tx, tpl.ID)
		return err
	})
	if err != nil {
		return nil, wrap("template service", "export role as template", err)
	}
	return view, nil
}

// CloneTemplate copies a template under a new name. The copy is never a
// system template and starts with zero usage.
func (s *TemplateService) CloneTemplate(ctx context.Context, id, newName string) (*TemplateView, error) {
	ctx = ensureContext(ctx)
	newName = strings.TrimSpace(newName)
	if err := validateInput("Invalid template", ExportRoleInput{Name: newName}); err != nil {
		return nil, err
	}

	var view *TemplateView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := loadTemplate(tx, id)
		if err != nil {
			return err
		}

		clone := models.PermissionTemplate{
			Name:         newName,
			Description:  source.Description,
			TemplateType: source.TemplateType,
			IsActive:     true,
			CreatedBy:    actorID(ctx),
		}
		if err := insertTemplate(tx, &clone, source.PermissionIDs()); err != nil {
			return err
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:     AuditTemplateClone,
			EntityType: EntityTemplate,
			EntityID:   clone.ID,
			Details:    map[string]any{"name": clone.Name, "source_id": source.ID, "source": source.Name},
		})
		if err != nil {
			return err
		}
		view, err = s.loadView(ctx, tx, clone.ID)
		return err
	})
	if err != nil {
		return nil, wrap("template service", "clone template", err)
	}
	return view, nil
}

// SetTemplateActive enables or disables a template. Inactive templates cannot
// be applied or instantiated.
func (s *TemplateService) SetTemplateActive(ctx context.Context, id string, active bool) (*TemplateView, error) {
	ctx = ensureContext(ctx)

	var view *TemplateView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := loadTemplate(tx, id)
		if err != nil {
			return err
		}
		changed := tpl.IsActive != active
		if changed {
			if err := tx.Model(&models.PermissionTemplate{}).Where("id = ?", tpl.ID).Update("is_active", active).Error; err != nil {
				return fmt.Errorf("set active: %w", err)
			}
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:     AuditTemplateSetActive,
			EntityType: EntityTemplate,
			EntityID:   tpl.ID,
			Details:    map[string]any{"name": tpl.Name, "is_active": active, "changed": changed},
		})
		if err != nil {
			return err
		}
		view, err = s.loadView(ctx, tx, tpl.ID)
		return err
	})
	if err != nil {
		return nil, wrap("template service", "set template active", err)
	}
	return view, nil
}

// DeleteTemplate removes a non-system template. Roles created from it keep
// their grants.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := loadTemplate(tx, id)
		if err != nil {
			return err
		}
		if tpl.IsSystemTemplate {
			return ErrSystemTemplateProtected.WithDetails(map[string]any{"template": tpl.Name})
		}
		if err := tx.Where("template_id = ?", tpl.ID).Delete(&models.TemplatePermission{}).Error; err != nil {
			return fmt.Errorf("delete template permissions: %w", err)
		}
		if err := tx.Where("id = ?", tpl.ID).Delete(&models.PermissionTemplate{}).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:     AuditTemplateDelete,
			EntityType: EntityTemplate,
			EntityID:   tpl.ID,
			Details:    map[string]any{"name": tpl.Name, "permissions": len(tpl.Permissions)},
		})
		return err
	})
	return wrap("template service", "delete template", err)
}

// grantTemplate links every live template permission to roleID and reports
// how many links were new.
func (s *TemplateService) grantTemplate(ctx context.Context, tx *gorm.DB, tpl *models.PermissionTemplate, roleID string) (int, int, error) {
	live, err := s.catalog.WithDB(tx).FindByIDs(ctx, tpl.PermissionIDs())
	if err != nil {
		return 0, 0, err
	}

	granted, held := 0, 0
	for _, id := range tpl.PermissionIDs() {
		if _, ok := live[id]; !ok {
			continue
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RolePermission{RoleID: roleID, PermissionID: id})
		if res.Error != nil {
			return 0, 0, fmt.Errorf("grant template permission: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			granted++
		} else {
			held++
		}
	}
	return granted, held, nil
}

func (s *TemplateService) loadView(ctx context.Context, tx *gorm.DB, id string) (*TemplateView, error) {
	tpl, err := loadTemplate(tx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, s.catalog.WithDB(tx), []models.PermissionTemplate{*tpl})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views renders templates with portable names using one catalog lookup.
func (s *TemplateService) views(ctx context.Context, catalog *permissions.Catalog, templates []models.PermissionTemplate) ([]TemplateView, error) {
	var ids []string
	for i := range templates {
		ids = append(ids, templates[i].PermissionIDs()...)
	}
	live, err := catalog.FindByIDs(ctx, normaliseIDs(ids))
	if err != nil {
		return nil, err
	}

	views := make([]TemplateView, len(templates))
	for i, tpl := range templates {
		view := TemplateView{PermissionTemplate: tpl, PermissionNames: []string{}}
		for _, id := range tpl.PermissionIDs() {
			perm, ok := live[id]
			if !ok {
				view.Orphaned++
				continue
			}
			view.PermissionNames = append(view.PermissionNames, perm.Name)
		}
		views[i] = view
	}
	return views, nil
}

type resolvedNames struct {
	ids      []string
	names    []string
	unmapped []string
}

// resolveNames maps portable names to catalog ids, keeping input order and
// dropping duplicates. Malformed and unknown names are reported as unmapped.
func resolveNames(ctx context.Context, catalog *permissions.Catalog, values []string) (resolvedNames, error) {
	out := resolvedNames{ids: []string{}, names: []string{}, unmapped: []string{}}

	type pending struct {
		raw  string
		name permissions.Name
	}
	var parsed []pending
	var lookup []permissions.Name
	seen := map[string]struct{}{}
	for _, raw := range values {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, err := permissions.ParseName(raw)
		key := raw
		if err == nil {
			key = name.String()
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if err != nil {
			out.unmapped = append(out.unmapped, raw)
			continue
		}
		parsed = append(parsed, pending{raw: raw, name: name})
		lookup = append(lookup, name)
	}

	found, err := catalog.FindByNames(ctx, lookup)
	if err != nil {
		return out, err
	}
	for _, p := range parsed {
		perm, ok := found[p.name]
		if !ok {
			out.unmapped = append(out.unmapped, p.raw)
			continue
		}
		out.ids = append(out.ids, perm.ID)
		out.names = append(out.names, perm.Name)
	}
	return out, nil
}

func loadTemplate(tx *gorm.DB, id string) (*models.PermissionTemplate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, templateNotFound(id)
	}
	var tpl models.PermissionTemplate
	if err := tx.Preload("Permissions").Where("id = ?", id).Take(&tpl).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, templateNotFound(id)
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	return &tpl, nil
}

func insertTemplate(tx *gorm.DB, tpl *models.PermissionTemplate, permissionIDs []string) error {
	if err := tx.Omit(clause.Associations).Create(tpl).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return ErrTemplateExists.WithDetails(map[string]any{"name": tpl.Name})
		}
		return fmt.Errorf("create template: %w", err)
	}
	return replaceTemplatePermissions(tx, tpl.ID, permissionIDs)
}

// replaceTemplatePermissions rewrites the ordered membership of a template.
func replaceTemplatePermissions(tx *gorm.DB, templateID string, permissionIDs []string) error {
	if err := tx.Where("template_id = ?", templateID).Delete(&models.TemplatePermission{}).Error; err != nil {
		return fmt.Errorf("clear template permissions: %w", err)
	}
	ids := normaliseIDs(permissionIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.TemplatePermission, len(ids))
	for i, id := range ids {
		rows[i] = models.TemplatePermission{TemplateID: templateID, PermissionID: id, Position: i}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("store template permissions: %w", err)
	}
	return nil
}

// syntheticRoleFor loads or creates the per-user role and makes sure the user
// holds it. The role name is derived from a digest of the exact user id, so ids
// differing only in case never share a role and long ids still fit the name
// column.
func syntheticRoleFor(ctx context.Context, tx *gorm.DB, userID string, out *models.Role) error {
	name := syntheticRoleName(userID)
	err := tx.Where("name = ?", name).Take(out).Error
	switch {
	case err == nil:
		if out.OwnerUserID == nil || *out.OwnerUserID != userID {
			return fmt.Errorf("synthetic role %s is not owned by the requested user", name)
		}
	case database.IsNotFound(err):
		owner := userID
		created, err := insertRole(tx, CreateRoleInput{
			Name:        name,
			DisplayName: "Direct user grants",
			Description: "Holds permission templates applied directly to a user",
		}, &owner)
		if err != nil {
			return err
		}
		*out = *created
	default:
		return fmt.Errorf("load synthetic role: %w", err)
	}

	var assignment models.RoleAssignment
	_, err = assignRole(ctx, tx, userID, out.ID, &assignment)
	return err
}

// syntheticRoleName is "user:" followed by the hex SHA-256 of userID.
func syntheticRoleName(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return SyntheticRolePrefix + hex.EncodeToString(sum[:])
}

func templateType(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
