package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Definition describes a catalog permission registered at start-up.
type Definition struct {
	Name        Name
	Description string
}

// RoleBlueprint describes a seeded system role together with its direct grants.
// Parent names another blueprint which must be registered first.
type RoleBlueprint struct {
	Name                 string
	DisplayName          string
	Description          string
	Level                int
	Parent               string
	DepartmentRestricted bool
	BranchRestricted     bool
	Permissions          []Name
}

// TemplateBlueprint describes a seeded system template.
type TemplateBlueprint struct {
	Name         string
	Description  string
	TemplateType string
	Permissions  []Name
}

type registry struct {
	mu          sync.RWMutex
	definitions map[Name]Definition
	roles       []RoleBlueprint
	roleIndex   map[string]int
	templates   []TemplateBlueprint
	tmplIndex   map[string]int
}

var globalRegistry = newRegistry()

func newRegistry() *registry {
	return &registry{
		definitions: make(map[Name]Definition),
		roleIndex:   make(map[string]int),
		tmplIndex:   make(map[string]int),
	}
}

var (
	errDuplicateDefinition = errors.New("permission: already registered")
	errEmptyRoleName       = errors.New("permission: role blueprint name is required")
	errDuplicateRole       = errors.New("permission: role blueprint already registered")
	errUnknownParent       = errors.New("permission: role blueprint parent is not registered")
	errUnknownGrant        = errors.New("permission: blueprint references an unregistered permission")
	errEmptyTemplateName   = errors.New("permission: template blueprint name is required")
	errDuplicateTemplate   = errors.New("permission: template blueprint already registered")
)

// Register adds a permission definition to the global registry.
func Register(def Definition) error {
	name, err := NewName(def.Name.ResourceType, def.Name.Action, def.Name.Scope)
	if err != nil {
		return err
	}
	def.Name = name
	def.Description = strings.TrimSpace(def.Description)

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.definitions[name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateDefinition, name)
	}
	globalRegistry.definitions[name] = def
	return nil
}

// Lookup returns the registered definition for name.
func Lookup(name Name) (Definition, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	def, ok := globalRegistry.definitions[name]
	return def, ok
}

// Definitions returns every registered definition ordered by name.
func Definitions() []Definition {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make([]Definition, 0, len(globalRegistry.definitions))
	for _, def := range globalRegistry.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.String() < out[j].Name.String()
	})
	return out
}

// RegisterRole adds a seeded role blueprint. Every referenced permission must
// already be registered.
func RegisterRole(bp RoleBlueprint) error {
	bp.Name = strings.ToLower(strings.TrimSpace(bp.Name))
	bp.Parent = strings.ToLower(strings.TrimSpace(bp.Parent))
	if bp.Name == "" {
		return errEmptyRoleName
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.roleIndex[bp.Name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateRole, bp.Name)
	}
	if bp.Parent != "" {
		if _, ok := globalRegistry.roleIndex[bp.Parent]; !ok {
			return fmt.Errorf("%w: %s -> %s", errUnknownParent, bp.Name, bp.Parent)
		}
	}
	grants, err := globalRegistry.knownNames(bp.Permissions)
	if err != nil {
		return fmt.Errorf("role %s: %w", bp.Name, err)
	}
	bp.Permissions = grants

	globalRegistry.roleIndex[bp.Name] = len(globalRegistry.roles)
	globalRegistry.roles = append(globalRegistry.roles, bp)
	return nil
}

// RoleBlueprints returns seeded roles in registration order, parents first.
func RoleBlueprints() []RoleBlueprint {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make([]RoleBlueprint, len(globalRegistry.roles))
	for i, bp := range globalRegistry.roles {
		out[i] = cloneRole(bp)
	}
	return out
}

// RegisterTemplate adds a seeded system template blueprint.
func RegisterTemplate(bp TemplateBlueprint) error {
	bp.Name = strings.TrimSpace(bp.Name)
	if bp.Name == "" {
		return errEmptyTemplateName
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.tmplIndex[bp.Name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateTemplate, bp.Name)
	}
	grants, err := globalRegistry.knownNames(bp.Permissions)
	if err != nil {
		return fmt.Errorf("template %s: %w", bp.Name, err)
	}
	bp.Permissions = grants

	globalRegistry.tmplIndex[bp.Name] = len(globalRegistry.templates)
	globalRegistry.templates = append(globalRegistry.templates, bp)
	return nil
}

// TemplateBlueprints returns seeded templates in registration order.
func TemplateBlueprints() []TemplateBlueprint {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make([]TemplateBlueprint, len(globalRegistry.templates))
	for i, bp := range globalRegistry.templates {
		cp := bp
		cp.Permissions = append([]Name(nil), bp.Permissions...)
		out[i] = cp
	}
	return out
}

// knownNames deduplicates names while keeping order. Callers hold the lock.
func (r *registry) knownNames(names []Name) ([]Name, error) {
	seen := make(map[Name]struct{}, len(names))
	out := make([]Name, 0, len(names))
	for _, name := range names {
		if _, ok := r.definitions[name]; !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownGrant, name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func cloneRole(bp RoleBlueprint) RoleBlueprint {
	cp := bp
	cp.Permissions = append([]Name(nil), bp.Permissions...)
	return cp
}
