package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/provider"
)

// 命令行对账工具：对历史佣金台账做一次性回算。
// dry-run 只输出差异报告，apply 对差异做带审计历史的原地调整。
func main() {
	var mode string
	var chunkSize int
	flag.StringVar(&mode, "mode", constants.BackfillModeDryRun, "回算模式: dry_run (默认), apply")
	flag.IntVar(&chunkSize, "chunk-size", 0, "分块大小（0 使用配置默认值）")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	container := provider.NewContainer(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, err := container.BackfillService.StartRun(ctx, mode, chunkSize)
	if err != nil {
		stdLog.Fatalf("回算任务创建失败: %v", err)
	}
	logger.Infow("backfill_cli_started", "run_no", run.RunNo, "mode", mode)

	report, err := container.BackfillService.Execute(ctx, run.ID)
	if err != nil {
		stdLog.Fatalf("回算任务执行失败: %v", err)
	}

	logger.Infow("backfill_cli_finished",
		"run_no", run.RunNo,
		"examined", report.ExaminedCount,
		"adjustments_needed", report.AdjustmentsCount,
		"errors", report.ErrorCount,
		"total_delta", report.TotalDelta,
		"accuracy_rate", report.AccuracyRate,
	)
	if report.ErrorCount > 0 {
		os.Exit(1)
	}
}
