package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"incentive-engine/pkg/config"
	"incentive-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	accountID string
}

func (r *staticResolver) ResolveAccountID(ctx context.Context, credential string) (string, error) {
	if credential != "ink_live_1.secret" {
		return "", errutil.Unauthorized("invalid API key")
	}
	return r.accountID, nil
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Error())
	return engine
}

func TestMasterAuth(t *testing.T) {
	cfg := &config.Config{MasterAPIKey: "master-key"}

	engine := newEngine()
	engine.POST("/accounts", MasterAuth(cfg), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	cases := []struct {
		key  string
		want int
	}{
		{"master-key", http.StatusCreated},
		{"wrong", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
		req.Header.Set(HeaderAPIKey, tc.key)

		engine.ServeHTTP(rec, req)
		require.Equal(t, tc.want, rec.Code, tc.key)
	}
}

func TestMasterAuthRejectsWhenUnconfigured(t *testing.T) {
	engine := newEngine()
	engine.POST("/accounts", MasterAuth(&config.Config{}), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
	req.Header.Set(HeaderAPIKey, "")

	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountAuthSetsAccountID(t *testing.T) {
	engine := newEngine()
	engine.POST("/reward", AccountAuth(&staticResolver{accountID: "acct-1"}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account_id": c.GetString(ContextAccountID)})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reward", nil)
	req.Header.Set(HeaderAPIKey, "ink_live_1.secret")

	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"account_id":"acct-1"}`, rec.Body.String())
}

func TestAccountAuthRejectsBadCredential(t *testing.T) {
	engine := newEngine()
	engine.POST("/reward", AccountAuth(&staticResolver{}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, key := range []string{"", "ink_live_1.wrong"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/reward", nil)
		if key != "" {
			req.Header.Set(HeaderAPIKey, key)
		}

		engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, key)
		require.Contains(t, rec.Body.String(), "unauthorized")
	}
}
