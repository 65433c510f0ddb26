package account

import (
	"net/http"

	"incentive-engine/pkg/config"
	"incentive-engine/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type routeParams struct {
	fx.In

	Engine  *gin.Engine
	Config  *config.Config
	Service *Service
}

func registerRoutes(p routeParams) {
	p.Engine.POST("/accounts", middleware.MasterAuth(p.Config), createAccount(p.Service))
	p.Engine.GET("/accounts/:id/deposit_address", depositAddress(p.Service))
}

func createAccount(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, apiKey, err := svc.Provision(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"account_id":      acct.ID,
			"code":            acct.Code,
			"wallet_id":       acct.WalletID,
			"deposit_address": acct.DepositAddress,
			// the secret half is not stored; this is the only time the
			// full credential leaves the service.
			"api_key": apiKey,
		})
	}
}

func depositAddress(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		addr, err := svc.DepositAddress(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"account_id":      id,
			"deposit_address": addr,
		})
	}
}
