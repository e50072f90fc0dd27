package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/database"
	"github.com/charlesng35/gatekeeper/internal/models"
)

// Outcome reports what Define did with the catalog.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeRestored  Outcome = "restored"
	OutcomeUnchanged Outcome = "unchanged"
)

// Changed reports whether the catalog row was written.
func (o Outcome) Changed() bool {
	return o != OutcomeUnchanged
}

// ListFilter narrows catalog listings. Empty fields match everything.
type ListFilter struct {
	ResourceType string
	Scope        Scope
}

// Catalog owns the set of permission definitions.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog constructs a catalog backed by db.
func NewCatalog(db *gorm.DB) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("catalog: db is required")
	}
	return &Catalog{db: db}, nil
}

// WithDB returns a catalog bound to tx, used to join an outer transaction.
func (c *Catalog) WithDB(tx *gorm.DB) *Catalog {
	return &Catalog{db: tx}
}

// Define ensures a permission exists for the definition's triple. A soft-deleted
// entry is restored rather than duplicated, and a differing non-empty
// description replaces the stored one.
func (c *Catalog) Define(ctx context.Context, def Definition) (*models.Permission, Outcome, error) {
	name, err := NewName(def.Name.ResourceType, def.Name.Action, def.Name.Scope)
	if err != nil {
		return nil, "", err
	}
	description := strings.TrimSpace(def.Description)
	db := c.db.WithContext(ctx)

	existing, err := c.lookupUnscoped(db, name)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return c.reconcile(db, existing, description)
	}

	record := models.Permission{
		ResourceType: name.ResourceType,
		Action:       name.Action,
		Scope:        string(name.Scope),
		Name:         name.String(),
		Description:  description,
	}
	// The nested transaction turns into a savepoint when db is already a
	// transaction, so a lost insert race does not poison the outer one.
	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
	if err == nil {
		return &record, OutcomeCreated, nil
	}
	if !database.IsUniqueConstraintError(err) {
		return nil, "", fmt.Errorf("catalog: create %s: %w", name, err)
	}

	existing, err = c.lookupUnscoped(db, name)
	if err != nil {
		return nil, "", err
	}
	if existing == nil {
		return nil, "", fmt.Errorf("catalog: %s vanished after a concurrent insert", name)
	}
	return c.reconcile(db, existing, description)
}

// FindByName parses value and returns the live catalog entry it names.
func (c *Catalog) FindByName(ctx context.Context, value string) (*models.Permission, error) {
	name, err := ParseName(value)
	if err != nil {
		return nil, err
	}
	return c.Find(ctx, name)
}

// Find returns the live catalog entry for name.
func (c *Catalog) Find(ctx context.Context, name Name) (*models.Permission, error) {
	var perm models.Permission
	err := c.db.WithContext(ctx).
		Where("resource_type = ? AND action = ? AND scope = ?", name.ResourceType, name.Action, string(name.Scope)).
		Take(&perm).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPermissionNotFound.WithDetails(map[string]any{"name": name.String()})
		}
		return nil, fmt.Errorf("catalog: find %s: %w", name, err)
	}
	return &perm, nil
}

// FindByID returns the live catalog entry with the given id.
func (c *Catalog) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	var perm models.Permission
	if err := c.db.WithContext(ctx).Where("id = ?", id).Take(&perm).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPermissionNotFound.WithDetails(map[string]any{"id": id})
		}
		return nil, fmt.Errorf("catalog: find %s: %w", id, err)
	}
	return &perm, nil
}

// FindByNames resolves several names at once. Names without a live entry are
// simply absent from the result.
func (c *Catalog) FindByNames(ctx context.Context, list []Name) (map[Name]models.Permission, error) {
	out := make(map[Name]models.Permission, len(list))
	if len(list) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(list))
	for _, name := range list {
		keys = append(keys, name.String())
	}

	var perms []models.Permission
	if err := c.db.WithContext(ctx).Where("name IN ?", keys).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("catalog: resolve names: %w", err)
	}
	for _, perm := range perms {
		out[NameOf(perm)] = perm
	}
	return out, nil
}

// FindByIDs returns live catalog entries keyed by id.
func (c *Catalog) FindByIDs(ctx context.Context, ids []string) (map[string]models.Permission, error) {
	out := make(map[string]models.Permission, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var perms []models.Permission
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("catalog: resolve ids: %w", err)
	}
	for _, perm := range perms {
		out[perm.ID] = perm
	}
	return out, nil
}

// List returns live catalog entries ordered by name.
func (c *Catalog) List(ctx context.Context, filter ListFilter) ([]models.Permission, error) {
	query := c.db.WithContext(ctx).Model(&models.Permission{})
	if rt := normaliseSegment(filter.ResourceType); rt != "" {
		query = query.Where("resource_type = ?", rt)
	}
	if filter.Scope != "" {
		query = query.Where("scope = ?", string(filter.Scope))
	}

	var perms []models.Permission
	if err := query.Order("name ASC").Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	return perms, nil
}

// Delete soft-deletes the named entry. Grants referencing it stop taking
// effect until Define restores it.
func (c *Catalog) Delete(ctx context.Context, name Name) (*models.Permission, error) {
	perm, err := c.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Delete(perm).Error; err != nil {
		return nil, fmt.Errorf("catalog: delete %s: %w", name, err)
	}
	return perm, nil
}

func (c *Catalog) lookupUnscoped(db *gorm.DB, name Name) (*models.Permission, error) {
	var perm models.Permission
	err := db.Unscoped().
		Where("resource_type = ? AND action = ? AND scope = ?", name.ResourceType, name.Action, string(name.Scope)).
		Take(&perm).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: lookup %s: %w", name, err)
	}
	return &perm, nil
}

func (c *Catalog) reconcile(db *gorm.DB, perm *models.Permission, description string) (*models.Permission, Outcome, error) {
	outcome := OutcomeUnchanged
	updates := map[string]any{}

	if perm.DeletedAt.Valid {
		updates["deleted_at"] = nil
		outcome = OutcomeRestored
	}
	if description != "" && description != perm.Description {
		updates["description"] = description
		if outcome == OutcomeUnchanged {
			outcome = OutcomeUpdated
		}
	}
	if len(updates) == 0 {
		return perm, outcome, nil
	}

	if err := db.Unscoped().Model(perm).Updates(updates).Error; err != nil {
		return nil, "", fmt.Errorf("catalog: update %s: %w", perm.Name, err)
	}
	perm.DeletedAt = gorm.DeletedAt{}
	if description != "" {
		perm.Description = description
	}
	return perm, outcome, nil
}

// NameOf returns the typed identity of a stored permission.
func NameOf(perm models.Permission) Name {
	return Name{ResourceType: perm.ResourceType, Action: perm.Action, Scope: Scope(perm.Scope)}
}
