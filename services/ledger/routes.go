package ledger

import (
	"net/http"

	"incentive-engine/pkg/db/pagination"
	"incentive-engine/pkg/errutil"
	"incentive-engine/pkg/middleware"
	"incentive-engine/pkg/money"
	"incentive-engine/services/account"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type routeParams struct {
	fx.In

	Engine   *gin.Engine
	Service  *Service
	Accounts *account.Service
	Resolver middleware.AccountResolver
}

func registerRoutes(p routeParams) {
	authed := p.Engine.Group("/", middleware.AccountAuth(p.Resolver))
	authed.POST("/reward", recordReward(p.Service))
	authed.GET("/rewards", listRewards(p.Service))

	p.Engine.GET("/accounts/:id/balance", accountBalance(p.Service, p.Accounts))
}

type rewardRequest struct {
	EventName string         `json:"event_name" binding:"required"`
	UserID    string         `json:"user_id" binding:"required"`
	Amount    string         `json:"amount" binding:"required"`
	Metadata  map[string]any `json:"metadata"`
}

func recordReward(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rewardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", errutil.WithErr(err)))
			return
		}

		amount, err := money.ParseUSDC(req.Amount)
		if err != nil {
			c.Error(errutil.ValidationFailed("invalid amount", errutil.WithErr(err)))
			return
		}

		reward, balance, err := svc.RecordReward(c.Request.Context(), RecordRewardParams{
			AccountID: c.GetString(middleware.ContextAccountID),
			EventName: req.EventName,
			UserID:    req.UserID,
			Amount:    amount,
			Metadata:  req.Metadata,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"reward_id": reward.ID,
			"event_id":  reward.EventID,
			"user_id":   reward.UserID,
			"amount":    money.FormatUSDC(reward.Amount),
			"balance":   money.FormatUSDC(balance),
			"status":    reward.Status,
		})
	}
}

func listRewards(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page pagination.Pagination
		if err := c.ShouldBindQuery(&page); err != nil {
			c.Error(errutil.ValidationFailed("invalid pagination", errutil.WithErr(err)))
			return
		}

		rewards, pageInfo, err := svc.ListRewards(c.Request.Context(),
			c.GetString(middleware.ContextAccountID), page)
		if err != nil {
			c.Error(err)
			return
		}

		out := make([]gin.H, 0, len(rewards))
		for _, r := range rewards {
			out = append(out, gin.H{
				"reward_id":  r.ID,
				"event_id":   r.EventID,
				"user_id":    r.UserID,
				"amount":     money.FormatUSDC(r.Amount),
				"status":     r.Status,
				"tx_hash":    r.TxHash,
				"created_at": r.CreatedAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{"rewards": out, "page_info": pageInfo})
	}
}

func accountBalance(svc *Service, accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if _, err := accounts.Get(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}

		balance, err := svc.AccountBalance(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"account_id": id,
			"balance":    money.FormatUSDC(balance),
		})
	}
}
