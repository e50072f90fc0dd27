package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/gatekeeper/internal/auditctx"
	"github.com/charlesng35/gatekeeper/internal/permissions"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/logger"
	"github.com/charlesng35/gatekeeper/pkg/validator"
)

// CacheInvalidator drops memoised effective permissions. It is satisfied by
// permissions.Resolver and cache.Broadcaster.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// invalidate runs after commit; a failure leaves the cache conservative on
// other nodes only, so it is logged rather than returned.
func invalidate(ctx context.Context, inv CacheInvalidator, reason string) {
	if inv == nil {
		return
	}
	if err := inv.InvalidateAll(ctx); err != nil {
		logger.WithModule("services").Warn("cache invalidation failed",
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// actorID is the authenticated user behind ctx, or the system actor.
func actorID(ctx context.Context) string {
	return auditctx.UserID(ctx, permissions.SystemActor)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

// validateInput runs struct validation and maps failures to a ValidationError
// carrying the offending fields.
func validateInput(message string, input any) error {
	err := validator.ValidateStruct(input)
	if err == nil {
		return nil
	}
	var failures validator.ValidationErrors
	if errors.As(err, &failures) {
		return apperrors.NewValidation(message, failures.Fields())
	}
	return apperrors.NewValidation(message, map[string]any{"error": err.Error()})
}
