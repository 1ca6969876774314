package router

import (
	"fmt"
	"strings"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/config"
	adminhandlers "github.com/fenxiao-next/internal/http/handlers/admin"
	publichandlers "github.com/fenxiao-next/internal/http/handlers/public"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按对外/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fx"
	}
	redisClient := cache.Client()
	hookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:hook", redisPrefix),
		WindowSeconds: cfg.Security.HookRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.HookRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.HookRateLimit.BlockSeconds,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 订单系统回调钩子（按来源 IP 限流）
		hooks := apiV1.Group("/hooks")
		hooks.Use(RateLimitMiddleware(redisClient, hookRule, KeyByIP))
		{
			hooks.POST("/orders/:id/delivered", publicHandler.OrderDelivered)
		}

		// 推广用户侧接口
		affiliate := apiV1.Group("/affiliate")
		{
			affiliate.GET("/profiles/:profile_id/summary", publicHandler.GetAffiliateSummary)
			affiliate.GET("/profiles/:profile_id/commissions", publicHandler.ListAffiliateCommissions)
			affiliate.POST("/withdrawals", publicHandler.RequestWithdrawal)
		}

		// 管理端接口
		admin := apiV1.Group("/admin")
		{
			// 佣金台账
			admin.GET("/commissions", adminHandler.ListCommissions)
			admin.GET("/commissions/:id", adminHandler.GetCommission)
			admin.POST("/commissions/:id/approve", adminHandler.ApproveCommission)
			admin.POST("/commissions/:id/reject", adminHandler.RejectCommission)
			admin.POST("/commissions/:id/adjust", adminHandler.AdjustCommission)

			// 提现批次
			admin.GET("/withdrawals", adminHandler.ListWithdrawals)
			admin.GET("/withdrawals/:id", adminHandler.GetWithdrawal)
			admin.POST("/withdrawals/:id/review", adminHandler.ReviewWithdrawal)

			// 对账任务
			admin.GET("/backfill-runs", adminHandler.ListBackfillRuns)
			admin.GET("/backfill-runs/:id", adminHandler.GetBackfillRun)
			admin.POST("/backfill-runs", adminHandler.CreateBackfillRun)
			admin.POST("/backfill-runs/:id/stop", adminHandler.StopBackfillRun)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
