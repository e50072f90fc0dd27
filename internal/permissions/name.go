package permissions

import (
	"regexp"
	"strings"
)

var segmentPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// Name is the typed form of a portable RESOURCE.ACTION.SCOPE string.
// Portable strings are always parsed into a Name before they are used as keys.
type Name struct {
	ResourceType string
	Action       string
	Scope        Scope
}

// NewName validates the individual segments of a permission identity.
func NewName(resourceType, action string, scope Scope) (Name, error) {
	name := Name{
		ResourceType: normaliseSegment(resourceType),
		Action:       normaliseSegment(action),
		Scope:        Scope(normaliseSegment(string(scope))),
	}
	if reason := name.problem(); reason != "" {
		return Name{}, invalidName(name.String(), reason)
	}
	return name, nil
}

// ParseName parses a portable permission string. Exactly three dot separated
// segments are accepted; case is normalised but whitespace inside segments is not.
func ParseName(value string) (Name, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 {
		return Name{}, invalidName(value, "expected RESOURCE.ACTION.SCOPE")
	}
	name := Name{
		ResourceType: strings.ToUpper(parts[0]),
		Action:       strings.ToUpper(parts[1]),
		Scope:        Scope(strings.ToUpper(parts[2])),
	}
	if reason := name.problem(); reason != "" {
		return Name{}, invalidName(value, reason)
	}
	return name, nil
}

// MustParseName is ParseName for compile-time constants; it panics on malformed input.
func MustParseName(value string) Name {
	name, err := ParseName(value)
	if err != nil {
		panic(err)
	}
	return name
}

func (n Name) String() string {
	return n.ResourceType + "." + n.Action + "." + string(n.Scope)
}

// IsZero reports whether the name is unset.
func (n Name) IsZero() bool {
	return n == Name{}
}

func (n Name) problem() string {
	switch {
	case !segmentPattern.MatchString(n.ResourceType):
		return "invalid resource type segment"
	case !segmentPattern.MatchString(n.Action):
		return "invalid action segment"
	case !n.Scope.Valid():
		return "unknown scope segment"
	}
	return ""
}

func invalidName(value, reason string) error {
	return ErrInvalidName.WithDetails(map[string]any{
		"name":   value,
		"reason": reason,
	})
}

func normaliseSegment(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
