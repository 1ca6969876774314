package provider

import (
	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/commission"
	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/shopspring/decimal"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	CommissionRepo  repository.CommissionRepository
	OrderRepo       repository.OrderRepository
	ProductRepo     repository.ProductRepository
	AffiliateRepo   repository.AffiliateRepository
	WithdrawalRepo  repository.WithdrawalRepository
	BackfillRunRepo repository.BackfillRunRepository

	// Services
	CommissionService *service.CommissionService
	WithdrawalService *service.WithdrawalService
	BackfillService   *service.BackfillService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.AffiliateRepo = repository.NewAffiliateRepository(db)
	c.WithdrawalRepo = repository.NewWithdrawalRepository(db)
	c.BackfillRunRepo = repository.NewBackfillRunRepository(db)
}

func (c *Container) initServices() {
	settings := buildCommissionSettings(c.Config)
	calc := commission.NewCalculator(commission.Config{
		DeliveryFeeNetting: settings.NettingMode,
	})

	c.CommissionService = service.NewCommissionService(
		c.CommissionRepo,
		c.OrderRepo,
		c.ProductRepo,
		c.AffiliateRepo,
		calc,
		settings,
	)
	c.WithdrawalService = service.NewWithdrawalService(
		c.WithdrawalRepo,
		c.CommissionRepo,
		c.AffiliateRepo,
		settings,
	)
	c.BackfillService = service.NewBackfillService(
		c.BackfillRunRepo,
		c.CommissionRepo,
		c.OrderRepo,
		c.CommissionService,
		settings,
	)
}

func buildCommissionSettings(cfg *config.Config) service.CommissionSettings {
	return service.CommissionSettings{
		ConfirmDays:       cfg.Commission.ConfirmDays,
		NettingMode:       commission.NettingMode(cfg.Commission.NettingMode),
		MinWithdrawAmount: decimal.NewFromFloat(cfg.Commission.MinWithdrawAmount),
		BackfillChunkSize: cfg.Commission.BackfillChunkSize,
	}
}
