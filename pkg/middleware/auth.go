package middleware

import (
	"context"
	"crypto/subtle"

	"incentive-engine/pkg/config"
	"incentive-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAPIKey carries either the master key (provisioning) or a
	// developer account credential (reward ingestion).
	HeaderAPIKey = "X-API-KEY"

	// ContextAccountID is set by AccountAuth once the credential resolves.
	ContextAccountID = "account_id"
)

// AccountResolver authenticates a developer credential and returns the
// owning account id. Implemented by the account registry.
type AccountResolver interface {
	ResolveAccountID(ctx context.Context, credential string) (string, error)
}

// MasterAuth admits only the operator master key. Comparison is constant
// time; the master key never doubles as an account credential.
func MasterAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if cfg.MasterAPIKey == "" ||
			subtle.ConstantTimeCompare([]byte(key), []byte(cfg.MasterAPIKey)) != 1 {
			c.Error(errutil.Unauthorized("invalid master API key"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// AccountAuth resolves the developer credential in X-API-KEY and stores the
// account id on the request context.
func AccountAuth(resolver AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			c.Error(errutil.Unauthorized("missing API key"))
			c.Abort()
			return
		}

		accountID, err := resolver.ResolveAccountID(c.Request.Context(), key)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextAccountID, accountID)
		c.Next()
	}
}
