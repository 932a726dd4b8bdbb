package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, log *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1", UserMiddleware())
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", h.ListAccounts)
			accounts.POST("", h.CreateAccount)
			accounts.GET("/:id", h.GetAccount)
			accounts.PUT("/:id", h.UpdateAccount)
			accounts.DELETE("/:id", h.DeleteAccount)
			accounts.POST("/:id/recompute", h.RecomputeBalance)
		}

		transfers := api.Group("/transfers")
		{
			transfers.GET("", h.ListTransfers)
			transfers.POST("", h.CreateTransfer)
		}

		incomes := api.Group("/incomes")
		{
			incomes.GET("", h.ListIncomes)
			incomes.POST("", h.RecordIncome)
			incomes.DELETE("/:id", h.DeleteIncome)
		}

		expenses := api.Group("/expenses")
		{
			expenses.GET("", h.ListExpenses)
			expenses.POST("", h.RecordExpense)
			expenses.DELETE("/:id", h.DeleteExpense)
		}

		api.POST("/reconcile/sweep", h.Sweep)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
