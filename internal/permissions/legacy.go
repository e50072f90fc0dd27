package permissions

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Wildcard matches any resource type or action in the legacy table.
const Wildcard = "*"

//go:embed legacy_roles.yaml
var embeddedLegacyTable []byte

type legacyDocument struct {
	Version int                     `yaml:"version"`
	Roles   map[string][]legacyRule `yaml:"roles"`
}

type legacyRule struct {
	Resource string   `yaml:"resource"`
	Actions  []string `yaml:"actions"`
}

// LegacyTable is the read-only role-name compatibility mapping consulted when
// no direct grant matches. It is loaded once and never mutated.
type LegacyTable struct {
	version int
	source  string
	roles   map[string]map[string]map[string]struct{}
}

// DefaultLegacyTable parses the table compiled into the binary.
func DefaultLegacyTable() (*LegacyTable, error) {
	return ParseLegacyTable(embeddedLegacyTable, "embedded")
}

// LoadLegacyTable reads the table from path, or the embedded table when path is empty.
func LoadLegacyTable(path string) (*LegacyTable, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultLegacyTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("legacy table: read %s: %w", path, err)
	}
	return ParseLegacyTable(data, path)
}

// ParseLegacyTable validates and indexes a YAML legacy table.
func ParseLegacyTable(data []byte, source string) (*LegacyTable, error) {
	var doc legacyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("legacy table %s: decode: %w", source, err)
	}
	if doc.Version < 1 {
		return nil, fmt.Errorf("legacy table %s: version must be >= 1", source)
	}

	table := &LegacyTable{
		version: doc.Version,
		source:  source,
		roles:   make(map[string]map[string]map[string]struct{}, len(doc.Roles)),
	}
	for roleName, rules := range doc.Roles {
		key := strings.ToLower(strings.TrimSpace(roleName))
		if key == "" {
			return nil, fmt.Errorf("legacy table %s: empty role name", source)
		}
		resources := table.roles[key]
		if resources == nil {
			resources = make(map[string]map[string]struct{})
			table.roles[key] = resources
		}
		for _, rule := range rules {
			resource, err := legacySegment(rule.Resource)
			if err != nil {
				return nil, fmt.Errorf("legacy table %s: role %s: resource: %w", source, key, err)
			}
			if len(rule.Actions) == 0 {
				return nil, fmt.Errorf("legacy table %s: role %s: %s has no actions", source, key, resource)
			}
			actions := resources[resource]
			if actions == nil {
				actions = make(map[string]struct{}, len(rule.Actions))
				resources[resource] = actions
			}
			for _, raw := range rule.Actions {
				action, err := legacySegment(raw)
				if err != nil {
					return nil, fmt.Errorf("legacy table %s: role %s: action: %w", source, key, err)
				}
				actions[action] = struct{}{}
			}
		}
	}
	return table, nil
}

// Version returns the table's declared version.
func (t *LegacyTable) Version() int {
	return t.version
}

// Source names where the table was loaded from.
func (t *LegacyTable) Source() string {
	return t.source
}

// Roles lists the role names the table knows, sorted.
func (t *LegacyTable) Roles() []string {
	out := make([]string, 0, len(t.roles))
	for name := range t.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Covers reports whether roleName's legacy capabilities include the pair.
func (t *LegacyTable) Covers(roleName, resourceType, action string) bool {
	if t == nil {
		return false
	}
	resources, ok := t.roles[strings.ToLower(strings.TrimSpace(roleName))]
	if !ok {
		return false
	}
	resourceType = normaliseSegment(resourceType)
	action = normaliseSegment(action)
	for _, resource := range []string{resourceType, Wildcard} {
		actions, ok := resources[resource]
		if !ok {
			continue
		}
		if _, ok := actions[action]; ok {
			return true
		}
		if _, ok := actions[Wildcard]; ok {
			return true
		}
	}
	return false
}

func legacySegment(value string) (string, error) {
	value = normaliseSegment(value)
	if value == Wildcard {
		return value, nil
	}
	if !segmentPattern.MatchString(value) {
		return "", fmt.Errorf("invalid segment %q", value)
	}
	return value, nil
}
