package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeeper/internal/auditctx"
	iauth "github.com/charlesng35/gatekeeper/internal/auth"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	"github.com/charlesng35/gatekeeper/pkg/errors"
	"github.com/charlesng35/gatekeeper/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxActorKey  = "authzActor"

	// AuditReasonHeader carries the operator's justification for a mutation.
	AuditReasonHeader = "X-Audit-Reason"

	maxAuditReasonLength = 512
)

// Auth enforces bearer token authentication using the supplied JWT service and
// attaches the caller to the request context for audit attribution.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			monitoring.RecordAuthAttempt("missing")
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			monitoring.RecordAuthAttempt("failure")
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		monitoring.RecordAuthAttempt("success")

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)

		reason := strings.TrimSpace(c.GetHeader(AuditReasonHeader))
		if len(reason) > maxAuditReasonLength {
			reason = reason[:maxAuditReasonLength]
		}
		ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Reason:    reason,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// ClaimsFromContext returns the verified claims stored by Auth.
func ClaimsFromContext(c *gin.Context) (*iauth.Claims, bool) {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*iauth.Claims)
	return claims, ok && claims != nil
}
