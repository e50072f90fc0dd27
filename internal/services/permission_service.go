package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

// DefinePermissionInput describes a catalog entry.
type DefinePermissionInput struct {
	ResourceType string `json:"resource_type" validate:"required,identifier,max=64"`
	Action       string `json:"action" validate:"required,identifier,max=64"`
	Scope        string `json:"scope" validate:"required"`
	Description  string `json:"description"`
}

// DefineResult reports the stored permission and what Define did.
type DefineResult struct {
	Permission *models.Permission  `json:"permission"`
	Outcome    permissions.Outcome `json:"outcome"`
}

// PermissionService exposes the catalog to administrators with auditing.
type PermissionService struct {
	db          *gorm.DB
	audit       *AuditService
	catalog     *permissions.Catalog
	invalidator CacheInvalidator
}

// NewPermissionService constructs a PermissionService using the provided database handle.
func NewPermissionService(db *gorm.DB, audit *AuditService, inv CacheInvalidator) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	if audit == nil {
		return nil, errors.New("permission service: audit service is required")
	}
	catalog, err := permissions.NewCatalog(db)
	if err != nil {
		return nil, err
	}
	return &PermissionService{db: db, audit: audit, catalog: catalog, invalidator: inv}, nil
}

// Define creates the permission or refreshes its description. Redefining an
// identical entry succeeds without change.
func (s *PermissionService) Define(ctx context.Context, input DefinePermissionInput) (*DefineResult, error) {
	ctx = ensureContext(ctx)
	if err := validateInput("Invalid permission", input); err != nil {
		return nil, err
	}
	scope, err := permissions.ParseScope(input.Scope)
	if err != nil {
		return nil, apperrors.NewValidation("Invalid permission", map[string]any{"scope": input.Scope})
	}
	name, err := permissions.NewName(input.ResourceType, input.Action, scope)
	if err != nil {
		return nil, err
	}

	result := &DefineResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perm, outcome, err := s.catalog.WithDB(tx).Define(ctx, permissions.Definition{Name: name, Description: input.Description})
		if err != nil {
			return err
		}
		result.Permission, result.Outcome = perm, outcome

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditPermissionDefine,
			EntityType:   EntityPermission,
			EntityID:     perm.ID,
			PermissionID: perm.ID,
			Details:      map[string]any{"name": perm.Name, "outcome": string(outcome)},
		})
		return err
	})
	if err != nil {
		return nil, wrap("permission service", "define", err)
	}

	if result.Outcome == permissions.OutcomeRestored {
		invalidate(ctx, s.invalidator, AuditPermissionDefine)
	}
	return result, nil
}

// Delete soft-deletes a permission. Existing grants stop taking effect and
// template references become orphans.
func (s *PermissionService) Delete(ctx context.Context, value string) (*models.Permission, error) {
	ctx = ensureContext(ctx)
	name, err := permissions.ParseName(value)
	if err != nil {
		return nil, err
	}

	var deleted *models.Permission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perm, err := s.catalog.WithDB(tx).Delete(ctx, name)
		if err != nil {
			return err
		}
		deleted = perm

		_, err = s.audit.Record(ctx, tx, AuditRecord{
			Action:       AuditPermissionDelete,
			EntityType:   EntityPermission,
			EntityID:     perm.ID,
			PermissionID: perm.ID,
			Details:      map[string]any{"name": perm.Name},
		})
		return err
	})
	if err != nil {
		return nil, wrap("permission service", "delete", err)
	}

	invalidate(ctx, s.invalidator, AuditPermissionDelete)
	return deleted, nil
}

// FindByName returns the live permission for a portable name.
func (s *PermissionService) FindByName(ctx context.Context, value string) (*models.Permission, error) {
	return s.catalog.FindByName(ensureContext(ctx), value)
}

// List returns live permissions ordered by name.
func (s *PermissionService) List(ctx context.Context, filter permissions.ListFilter) ([]models.Permission, error) {
	return s.catalog.List(ensureContext(ctx), filter)
}
