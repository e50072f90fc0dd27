package services

import (
	"errors"
	"fmt"

	"github.com/charlesng35/gatekeeper/internal/permissions"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

var (
	// ErrRoleNotFound reports a role id that does not resolve.
	ErrRoleNotFound = permissions.ErrRoleNotFound
	// ErrRoleExists reports a duplicate role name.
	ErrRoleExists = apperrors.ErrAlreadyExists.WithMessage("Role name already exists")
	// ErrAssignmentNotFound reports an unassign for a role the user does not hold.
	ErrAssignmentNotFound = apperrors.ErrNotFound.WithMessage("Role assignment not found")
	// ErrTemplateNotFound reports a template id that does not resolve.
	ErrTemplateNotFound = apperrors.ErrNotFound.WithMessage("Template not found")
	// ErrTemplateExists reports a duplicate template name.
	ErrTemplateExists = apperrors.ErrAlreadyExists.WithMessage("Template name already exists")
	// ErrTemplateInactive blocks instantiating a disabled template.
	ErrTemplateInactive = apperrors.ErrInactive.WithMessage("Template is inactive")
	// ErrSystemTemplateProtected blocks deleting a seeded template.
	ErrSystemTemplateProtected = apperrors.ErrSystemRoleProtected.WithMessage("System templates cannot be deleted")
	// ErrSystemRoleMatrixProtected blocks grant changes on system roles while
	// matrix protection is on.
	ErrSystemRoleMatrixProtected = apperrors.ErrSystemRoleProtected.WithMessage("System role permissions cannot be changed")
)

func roleNotFound(id string) error {
	return ErrRoleNotFound.WithDetails(map[string]any{"role_id": id})
}

func templateNotFound(id string) error {
	return ErrTemplateNotFound.WithDetails(map[string]any{"template_id": id})
}

func systemRoleProtected(role string, op string) error {
	return apperrors.ErrSystemRoleProtected.WithDetails(map[string]any{"role": role, "operation": op})
}

func systemRoleMatrixProtected(role string, op string) error {
	return ErrSystemRoleMatrixProtected.WithDetails(map[string]any{"role": role, "operation": op})
}

// wrap prefixes infrastructure errors and lets AppErrors through untouched.
func wrap(service, op string, err error) error {
	var appErr *apperrors.AppError
	if err == nil || errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %s: %w", service, op, err)
}
