package withdrawal

import (
	"net/http"

	"incentive-engine/pkg/errutil"
	"incentive-engine/pkg/money"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type routeParams struct {
	fx.In

	Engine  *gin.Engine
	Service *Service
}

func registerRoutes(p routeParams) {
	p.Engine.POST("/accounts/:id/withdraw", withdraw(p.Service))
	p.Engine.GET("/accounts/:id/withdrawals/:withdrawal_id", getWithdrawal(p.Service))
}

type withdrawRequest struct {
	UserAddress string `json:"user_address" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

func withdraw(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
			return
		}

		amount, err := money.ParseUSDC(req.Amount)
		if err != nil {
			c.Error(errutil.BadRequest("invalid amount", errutil.WithErr(err)))
			return
		}

		w, err := svc.Withdraw(c.Request.Context(), c.Param("id"), req.UserAddress, amount)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, receipt(w))
	}
}

func getWithdrawal(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.Get(c.Request.Context(), c.Param("id"), c.Param("withdrawal_id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, receipt(w))
	}
}

func receipt(w *Withdrawal) gin.H {
	return gin.H{
		"withdrawal_id": w.ID,
		"code":          w.Code,
		"destination":   w.Destination,
		"amount":        money.FormatUSDC(w.Amount),
		"status":        w.Status,
		"tx_hash":       w.TxHash,
		"created_at":    w.CreatedAt,
	}
}
