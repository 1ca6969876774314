package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/commission"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/provider"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:worker_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.AffiliateProfile{},
		&models.Product{},
		&models.Order{},
		&models.OrderLine{},
		&models.CommissionRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settings := service.CommissionSettings{
		ConfirmDays:       7,
		NettingMode:       commission.NettingOrderTotal,
		MinWithdrawAmount: decimal.NewFromInt(100),
		BackfillChunkSize: 50,
	}
	calc := commission.NewCalculator(commission.Config{
		DeliveryFeeNetting: settings.NettingMode,
	})
	commissionSvc := service.NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		repository.NewAffiliateRepository(db),
		calc,
		settings,
	)
	return NewConsumer(&provider.Container{CommissionService: commissionSvc}), db
}

func TestHandleOrderDeliveredCalculatesCommission(t *testing.T) {
	consumer, db := setupWorkerTest(t)

	profile := models.AffiliateProfile{
		UserID:        1,
		AffiliateCode: "AFFWK001",
		Status:        constants.AffiliateProfileStatusActive,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	deliveredAt := time.Now().Add(-time.Hour)
	order := models.Order{
		OrderNo:            "ORDWK001",
		AffiliateProfileID: &profile.ID,
		OrderType:          constants.OrderTypeNormal,
		Status:             constants.OrderStatusDelivered,
		DeliveredAt:        &deliveredAt,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	line := models.OrderLine{
		OrderID:                  order.ID,
		ProductID:                1,
		UnitPrice:                models.NewMoneyFromDecimal(decimal.NewFromInt(150)),
		Quantity:                 1,
		HasPricingSnapshot:       true,
		CostPriceSnapshot:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		RecommendedPriceSnapshot: models.NewMoneyFromDecimal(decimal.NewFromInt(150)),
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("create line failed: %v", err)
	}

	payload, err := json.Marshal(queue.OrderDeliveredPayload{OrderID: order.ID})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	task := asynq.NewTask(queue.TaskCommissionOrderDelivered, payload)
	if err := consumer.handleOrderDelivered(context.Background(), task); err != nil {
		t.Fatalf("handle task failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.CommissionRecord{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count records failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one commission record, got %d", count)
	}
}

func TestHandleOrderDeliveredSkipsMissingOrder(t *testing.T) {
	consumer, _ := setupWorkerTest(t)

	payload, err := json.Marshal(queue.OrderDeliveredPayload{OrderID: 9999})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	task := asynq.NewTask(queue.TaskCommissionOrderDelivered, payload)
	// 订单不存在不重试
	if err := consumer.handleOrderDelivered(context.Background(), task); err != nil {
		t.Fatalf("missing order should not retry, got %v", err)
	}
}

func TestHandleOrderDeliveredRejectsBadPayload(t *testing.T) {
	consumer, _ := setupWorkerTest(t)

	task := asynq.NewTask(queue.TaskCommissionOrderDelivered, []byte("not-json"))
	if err := consumer.handleOrderDelivered(context.Background(), task); err == nil {
		t.Fatalf("bad payload should return error")
	}

	empty := asynq.NewTask(queue.TaskCommissionOrderDelivered, []byte(`{"order_id":0}`))
	if err := consumer.handleOrderDelivered(context.Background(), empty); err != nil {
		t.Fatalf("zero order id should be skipped, got %v", err)
	}
}
