package permissions

import (
	"net/http"

	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

var (
	// ErrInvalidName reports a malformed RESOURCE.ACTION.SCOPE string.
	ErrInvalidName = apperrors.ErrValidation.WithMessage("Invalid permission name")
	// ErrPermissionNotFound reports a permission absent from the catalog.
	ErrPermissionNotFound = apperrors.ErrNotFound.WithMessage("Permission not found")
	// ErrRoleNotFound reports a role id that does not resolve.
	ErrRoleNotFound = apperrors.ErrNotFound.WithMessage("Role not found")
	// ErrHierarchyCorrupted reports a stored parent chain that loops.
	ErrHierarchyCorrupted = apperrors.New("HIERARCHY_CORRUPTED", "Stored role hierarchy contains a cycle", http.StatusInternalServerError)
)
