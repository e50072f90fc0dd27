package app

import (
	"github.com/charlesng35/gatekeeper/internal/permissions"
)

// LegacyTable loads the fallback table when the fallback path is enabled. A
// nil table with a nil error means fallback is switched off.
func (c AuthzConfig) LegacyTable() (*permissions.LegacyTable, error) {
	if !c.LegacyFallback.Enabled {
		return nil, nil
	}
	return permissions.LoadLegacyTable(c.LegacyFallback.Path)
}
