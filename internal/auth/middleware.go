package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
)

const (
	identityKey     = "identity"
	SessionHeader   = "X-Session-ID"
	guestIDPrefix   = "guest_"
	mintedHeaderKey = "sessionMinted"
)

// Middleware resolves the request identity. A valid bearer token wins; a
// guest session header is next; with neither, a fresh guest id is minted and
// echoed back so the client can keep it. Bad tokens are rejected rather than
// silently downgraded to guest.
func Middleware(verifier *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(header, "Bearer ") && verifier != nil {
			token := strings.TrimPrefix(header, "Bearer ")

			identity, err := verifier.Verify(c.UserContext(), token)
			if err != nil {
				logger.Warn("Token verification failed",
					zap.String("path", c.Path()),
					zap.Error(err),
				)
				return fiber.NewError(apierr.StatusOf(err), apierr.MessageOf(err))
			}

			c.Locals(identityKey, *identity)
			return c.Next()
		}

		session := c.Get(SessionHeader)
		if session == "" {
			session = guestIDPrefix + uuid.New().String()
			c.Locals(mintedHeaderKey, true)
		}
		c.Set(SessionHeader, session)
		c.Locals(identityKey, Identity{UserID: session, Guest: true})

		return c.Next()
	}
}

// RequireSession rejects requests that arrived with neither a bearer token
// nor an existing guest session. Diagnose routes skip this so first-time
// callers get a session minted for them.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if minted, _ := c.Locals(mintedHeaderKey).(bool); minted {
			return fiber.NewError(fiber.StatusUnauthorized,
				"A session is required. Provide a bearer token or X-Session-ID header.")
		}
		return c.Next()
	}
}

// FromContext returns the identity resolved by Middleware.
func FromContext(c *fiber.Ctx) Identity {
	if id, ok := c.Locals(identityKey).(Identity); ok {
		return id
	}
	return Identity{Guest: true}
}
