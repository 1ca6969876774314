package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/commission"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCommissionTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
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
		&models.WithdrawalBatch{},
		&models.WithdrawalBatchItem{},
		&models.BackfillRun{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newTestCommissionService(db *gorm.DB, settings CommissionSettings) *CommissionService {
	calc := commission.NewCalculator(commission.Config{
		DeliveryFeeNetting: settings.NettingMode,
	})
	return NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		repository.NewAffiliateRepository(db),
		calc,
		settings,
	)
}

func defaultTestSettings() CommissionSettings {
	return CommissionSettings{
		ConfirmDays:       7,
		NettingMode:       commission.NettingOrderTotal,
		MinWithdrawAmount: decimal.NewFromInt(100),
		BackfillChunkSize: 50,
	}
}

func createTestProfile(t *testing.T, db *gorm.DB, code, status string) models.AffiliateProfile {
	t.Helper()

	row := models.AffiliateProfile{
		UserID:        uint(time.Now().UnixNano() % 1_000_000_000),
		AffiliateCode: code,
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	return row
}

type testLine struct {
	cost        string
	recommended string
	fixed       string
	sale        string
	quantity    int
	noSnapshot  bool
	productID   uint
}

func createDeliveredOrder(t *testing.T, db *gorm.DB, profileID uint, orderType, deliveryFee string, lines []testLine) models.Order {
	t.Helper()

	now := time.Now()
	deliveredAt := now.Add(-time.Hour)
	order := models.Order{
		OrderNo:            fmt.Sprintf("ORD%d", now.UnixNano()),
		AffiliateProfileID: &profileID,
		OrderType:          orderType,
		Status:             constants.OrderStatusDelivered,
		DeliveryFee:        models.NewMoneyFromDecimal(mustDecimal(t, deliveryFee)),
		DeliveredAt:        &deliveredAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	for _, line := range lines {
		row := models.OrderLine{
			OrderID:                  order.ID,
			ProductID:                line.productID,
			UnitPrice:                models.NewMoneyFromDecimal(mustDecimal(t, line.sale)),
			Quantity:                 line.quantity,
			HasPricingSnapshot:       !line.noSnapshot,
			CostPriceSnapshot:        models.NewMoneyFromDecimal(mustDecimal(t, line.cost)),
			RecommendedPriceSnapshot: models.NewMoneyFromDecimal(mustDecimal(t, line.recommended)),
			FixedCommissionSnapshot:  models.NewMoneyFromDecimal(mustDecimal(t, line.fixed)),
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		if line.noSnapshot {
			row.CostPriceSnapshot = models.Money{}
			row.RecommendedPriceSnapshot = models.Money{}
			row.FixedCommissionSnapshot = models.Money{}
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("create order line failed: %v", err)
		}
	}
	var loaded models.Order
	if err := db.Preload("Lines").First(&loaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return loaded
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q failed: %v", s, err)
	}
	return d
}

func countCommissionRows(t *testing.T, db *gorm.DB, orderID uint) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.CommissionRecord{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		t.Fatalf("count commission rows failed: %v", err)
	}
	return count
}

func TestCalculateForOrderCreatesLineAndNettingRecords(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_calc")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00001", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "30", []testLine{
		{cost: "100", recommended: "150", fixed: "50", sale: "150", quantity: 2, productID: 1}, // 固定佣金 100
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 2},  // 建议差价 50
	})

	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if len(result.RecordIDs) != 3 {
		t.Fatalf("expected 3 records (2 lines + netting), got %d", len(result.RecordIDs))
	}
	if result.TotalAmount.String() != "120.00" {
		t.Fatalf("total want 120.00 got %s", result.TotalAmount.String())
	}

	var netting models.CommissionRecord
	if err := db.Where("order_id = ? AND order_line_id IS NULL", order.ID).First(&netting).Error; err != nil {
		t.Fatalf("load netting record failed: %v", err)
	}
	if netting.RuleCode != constants.RuleDeliveryFeeNet {
		t.Fatalf("netting rule want %s got %s", constants.RuleDeliveryFeeNet, netting.RuleCode)
	}
	if netting.Amount.String() != "-30.00" {
		t.Fatalf("netting amount want -30.00 got %s", netting.Amount.String())
	}
	if netting.Status != constants.CommissionStatusCalculated || netting.ConfirmAt == nil {
		t.Fatalf("new record should be calculated with confirm_at, got %s", netting.Status)
	}
}

func TestCalculateForOrderIdempotent(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_idem")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00002", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})

	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("first calculate failed: %v", err)
	}
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("second calculate failed: %v", err)
	}
	if count := countCommissionRows(t, db, order.ID); count != 1 {
		t.Fatalf("recalculation should not duplicate rows, got %d", count)
	}

	var record models.CommissionRecord
	if err := db.Where("order_id = ?", order.ID).First(&record).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Amount.String() != "50.00" || record.Status != constants.CommissionStatusCalculated {
		t.Fatalf("idempotent recalc should keep amount/status, got %s/%s", record.Amount.String(), record.Status)
	}
}

func TestCalculateForOrderRecalcAdjustsChangedAmount(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_recalc")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00003", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("first calculate failed: %v", err)
	}

	// 修改快照后重算应做带审计历史的原地调整
	if err := db.Model(&models.OrderLine{}).Where("order_id = ?", order.ID).
		Update("cost_price_snapshot", "120").Error; err != nil {
		t.Fatalf("update snapshot failed: %v", err)
	}
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}

	var record models.CommissionRecord
	if err := db.Where("order_id = ?", order.ID).First(&record).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Amount.String() != "30.00" {
		t.Fatalf("adjusted amount want 30.00 got %s", record.Amount.String())
	}
	if record.Status != constants.CommissionStatusAdjusted {
		t.Fatalf("status want adjusted got %s", record.Status)
	}
	history, ok := record.Metadata["history"].([]interface{})
	if !ok || len(history) != 1 {
		t.Fatalf("expected one audit history entry, got %+v", record.Metadata["history"])
	}
	entry, ok := history[0].(map[string]interface{})
	if !ok || entry["prior_amount"] != "50.00" {
		t.Fatalf("history should keep prior amount 50.00, got %+v", history[0])
	}
}

func TestCalculateForOrderPaidRecordUntouched(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_paid")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00004", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("first calculate failed: %v", err)
	}
	if err := db.Model(&models.CommissionRecord{}).Where("order_id = ?", order.ID).
		Update("status", constants.CommissionStatusPaid).Error; err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if err := db.Model(&models.OrderLine{}).Where("order_id = ?", order.ID).
		Update("cost_price_snapshot", "120").Error; err != nil {
		t.Fatalf("update snapshot failed: %v", err)
	}

	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	var record models.CommissionRecord
	if err := db.Where("order_id = ?", order.ID).First(&record).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Amount.String() != "50.00" || record.Status != constants.CommissionStatusPaid {
		t.Fatalf("paid record must be immutable, got %s/%s", record.Amount.String(), record.Status)
	}
}

func TestCalculateForOrderExchangeClawback(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_exchange")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00005", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeExchange, "20", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})

	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if len(result.RecordIDs) != 1 {
		t.Fatalf("exchange order should yield only the clawback record, got %d", len(result.RecordIDs))
	}
	var record models.CommissionRecord
	if err := db.Where("order_id = ?", order.ID).First(&record).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.RuleCode != constants.RuleExchangeDeliveryClawback || record.Amount.String() != "-20.00" {
		t.Fatalf("clawback want %s/-20.00 got %s/%s",
			constants.RuleExchangeDeliveryClawback, record.RuleCode, record.Amount.String())
	}
	if record.OrderLineID != nil {
		t.Fatalf("clawback record should be order-level")
	}
}

func TestCalculateForOrderNoAttribution(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_noattr")
	svc := newTestCommissionService(db, defaultTestSettings())

	now := time.Now()
	deliveredAt := now.Add(-time.Hour)
	order := models.Order{
		OrderNo:     fmt.Sprintf("ORD%d", now.UnixNano()),
		OrderType:   constants.OrderTypeNormal,
		Status:      constants.OrderStatusDelivered,
		DeliveredAt: &deliveredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if !result.Success || result.Message != "no_affiliate_attribution" {
		t.Fatalf("expected no-op success, got %+v", result)
	}
	if count := countCommissionRows(t, db, order.ID); count != 0 {
		t.Fatalf("no attribution should create no rows, got %d", count)
	}
}

func TestCalculateForOrderDisabledProfile(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_disabled")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00006", constants.AffiliateProfileStatusDisabled)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})

	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if result.Success || result.Message != "affiliate_profile_disabled" {
		t.Fatalf("expected structured failure, got %+v", result)
	}
	if count := countCommissionRows(t, db, order.ID); count != 0 {
		t.Fatalf("disabled profile should create no rows, got %d", count)
	}
}

func TestCalculateForOrderPartialLineFailureFlagsPendingCalc(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_partial")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00007", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("first calculate failed: %v", err)
	}

	// 数量被改坏后重算：既有记录挂起 pending_calc 而不是静默保留
	if err := db.Model(&models.OrderLine{}).Where("order_id = ?", order.ID).
		Update("quantity", 0).Error; err != nil {
		t.Fatalf("break quantity failed: %v", err)
	}
	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if result.Success || result.Message != "partial_line_failure" {
		t.Fatalf("expected partial failure, got %+v", result)
	}
	if len(result.LineErrors) != 1 {
		t.Fatalf("expected one line error, got %d", len(result.LineErrors))
	}

	var record models.CommissionRecord
	if err := db.Where("order_id = ?", order.ID).First(&record).Error; err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Status != constants.CommissionStatusPendingCalc {
		t.Fatalf("status want pending_calc got %s", record.Status)
	}
	if record.InvalidReason == "" {
		t.Fatalf("pending_calc record should carry a reason")
	}

	// 定价修复后再算：恢复 calculated
	if err := db.Model(&models.OrderLine{}).Where("order_id = ?", order.ID).
		Update("quantity", 1).Error; err != nil {
		t.Fatalf("fix quantity failed: %v", err)
	}
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("third calculate failed: %v", err)
	}
	if err := db.Where("order_id = ?", order.ID).First(&record).Error; err != nil {
		t.Fatalf("reload record failed: %v", err)
	}
	if record.Status != constants.CommissionStatusCalculated {
		t.Fatalf("recovered status want calculated got %s", record.Status)
	}
}

func TestConfirmDueCommissions(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_confirm")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00008", constants.AffiliateProfileStatusActive)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)
	lineDue := uint(1)
	lineNotDue := uint(2)
	records := []models.CommissionRecord{
		{
			AffiliateProfileID: profile.ID,
			OrderID:            1,
			OrderLineID:        &lineDue,
			Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
			RuleCode:           constants.RuleRecommendedMargin,
			Status:             constants.CommissionStatusCalculated,
			ConfirmAt:          &past,
		},
		{
			AffiliateProfileID: profile.ID,
			OrderID:            2,
			OrderLineID:        &lineNotDue,
			Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(60)),
			RuleCode:           constants.RuleRecommendedMargin,
			Status:             constants.CommissionStatusCalculated,
			ConfirmAt:          &future,
		},
	}
	for i := range records {
		if err := db.Create(&records[i]).Error; err != nil {
			t.Fatalf("create record failed: %v", err)
		}
	}

	affected, err := svc.ConfirmDueCommissions(time.Now())
	if err != nil {
		t.Fatalf("confirm due failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected want 1 got %d", affected)
	}

	var due, notDue models.CommissionRecord
	if err := db.First(&due, records[0].ID).Error; err != nil {
		t.Fatalf("load due record failed: %v", err)
	}
	if err := db.First(&notDue, records[1].ID).Error; err != nil {
		t.Fatalf("load not-due record failed: %v", err)
	}
	if due.Status != constants.CommissionStatusEligible || due.EligibleAt == nil {
		t.Fatalf("due record want eligible with eligible_at, got %s", due.Status)
	}
	if notDue.Status != constants.CommissionStatusCalculated {
		t.Fatalf("not-due record must stay calculated, got %s", notDue.Status)
	}
}

func TestAdjustWritesAuditHistory(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_adjust")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00009", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})
	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	adjusted, err := svc.Adjust(result.RecordIDs[0], CommissionAdjustInput{
		Amount:     decimal.NewFromInt(42),
		Reason:     "manual correction",
		OperatorID: 7,
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if adjusted.Amount.String() != "42.00" || adjusted.Status != constants.CommissionStatusAdjusted {
		t.Fatalf("adjust result want 42.00/adjusted got %s/%s", adjusted.Amount.String(), adjusted.Status)
	}
	history, ok := adjusted.Metadata["history"].([]interface{})
	if !ok || len(history) != 1 {
		t.Fatalf("expected one audit entry, got %+v", adjusted.Metadata["history"])
	}

	// 超过 2 位小数拒绝
	if _, err := svc.Adjust(result.RecordIDs[0], CommissionAdjustInput{
		Amount: decimal.RequireFromString("10.123"),
	}); err != ErrAdjustAmountInvalid {
		t.Fatalf("expected ErrAdjustAmountInvalid, got %v", err)
	}
}

func TestTransitGuards(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_guards")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00010", constants.AffiliateProfileStatusActive)

	lineA := uint(11)
	paid := models.CommissionRecord{
		AffiliateProfileID: profile.ID,
		OrderID:            1,
		OrderLineID:        &lineA,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             constants.CommissionStatusPaid,
	}
	if err := db.Create(&paid).Error; err != nil {
		t.Fatalf("create paid record failed: %v", err)
	}
	if _, err := svc.Adjust(paid.ID, CommissionAdjustInput{Amount: decimal.NewFromInt(1)}); err != ErrImmutablePaidRecord {
		t.Fatalf("adjust paid want ErrImmutablePaidRecord got %v", err)
	}
	if _, err := svc.Reject(paid.ID, "late"); err != ErrImmutablePaidRecord {
		t.Fatalf("reject paid want ErrImmutablePaidRecord got %v", err)
	}

	batchID := uint(99)
	lineB := uint(12)
	bound := models.CommissionRecord{
		AffiliateProfileID: profile.ID,
		OrderID:            2,
		OrderLineID:        &lineB,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             constants.CommissionStatusApproved,
		WithdrawalBatchID:  &batchID,
	}
	if err := db.Create(&bound).Error; err != nil {
		t.Fatalf("create bound record failed: %v", err)
	}
	if _, err := svc.Reject(bound.ID, "late"); err != ErrCommissionBatchBound {
		t.Fatalf("reject bound want ErrCommissionBatchBound got %v", err)
	}
	if _, err := svc.Adjust(bound.ID, CommissionAdjustInput{Amount: decimal.NewFromInt(1)}); err != ErrCommissionBatchBound {
		t.Fatalf("adjust bound want ErrCommissionBatchBound got %v", err)
	}

	lineC := uint(13)
	eligible := models.CommissionRecord{
		AffiliateProfileID: profile.ID,
		OrderID:            3,
		OrderLineID:        &lineC,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             constants.CommissionStatusEligible,
	}
	if err := db.Create(&eligible).Error; err != nil {
		t.Fatalf("create eligible record failed: %v", err)
	}
	approved, err := svc.Approve(eligible.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != constants.CommissionStatusApproved {
		t.Fatalf("approve status want approved got %s", approved.Status)
	}
}

func TestCancelByOrderReleasesUniqueSlot(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_cancel")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00011", constants.AffiliateProfileStatusActive)
	order := createDeliveredOrder(t, db, profile.ID, constants.OrderTypeNormal, "0", []testLine{
		{cost: "100", recommended: "150", fixed: "0", sale: "150", quantity: 1, productID: 1},
	})
	if _, err := svc.CalculateForOrder(order.ID); err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	if err := svc.CancelByOrder(order.ID, "order returned"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if count := countCommissionRows(t, db, order.ID); count != 0 {
		t.Fatalf("canceled records should be soft-deleted from default scope, got %d", count)
	}

	var canceled models.CommissionRecord
	if err := db.Unscoped().Where("order_id = ?", order.ID).First(&canceled).Error; err != nil {
		t.Fatalf("load canceled record failed: %v", err)
	}
	if canceled.Status != constants.CommissionStatusCanceled || canceled.InvalidReason != "order returned" {
		t.Fatalf("canceled record want canceled/reason, got %s/%q", canceled.Status, canceled.InvalidReason)
	}

	// 唯一占位释放后可重新计算
	result, err := svc.CalculateForOrder(order.ID)
	if err != nil {
		t.Fatalf("recalculate after cancel failed: %v", err)
	}
	if len(result.RecordIDs) != 1 {
		t.Fatalf("expected fresh record after cancel, got %d", len(result.RecordIDs))
	}
}

func TestListNormalizesLegacyStatus(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_legacy")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00012", constants.AffiliateProfileStatusActive)
	lineID := uint(21)
	record := models.CommissionRecord{
		AffiliateProfileID: profile.ID,
		OrderID:            1,
		OrderLineID:        &lineID,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             constants.CommissionStatusCalculated,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("create record failed: %v", err)
	}

	rows, total, err := svc.List(repository.CommissionListFilter{
		Page:     1,
		PageSize: 10,
		Status:   "en_attente", // 旧版状态串应归一化为 calculated
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("legacy status filter should match, got total=%d len=%d", total, len(rows))
	}

	if _, _, err := svc.List(repository.CommissionListFilter{Status: "bogus"}); err != ErrCommissionStatusInvalid {
		t.Fatalf("unknown status want ErrCommissionStatusInvalid got %v", err)
	}
}

func TestGetSummary(t *testing.T) {
	db := setupCommissionTestDB(t, "commission_summary")
	svc := newTestCommissionService(db, defaultTestSettings())

	profile := createTestProfile(t, db, "AFF00013", constants.AffiliateProfileStatusActive)
	lineA, lineB, lineC := uint(31), uint(32), uint(33)
	batchID := uint(77)
	records := []models.CommissionRecord{
		{AffiliateProfileID: profile.ID, OrderID: 1, OrderLineID: &lineA,
			Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(50)), RuleCode: constants.RuleRecommendedMargin,
			Status: constants.CommissionStatusEligible},
		{AffiliateProfileID: profile.ID, OrderID: 2, OrderLineID: &lineB,
			Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(30)), RuleCode: constants.RuleRecommendedMargin,
			Status: constants.CommissionStatusEligible, WithdrawalBatchID: &batchID},
		{AffiliateProfileID: profile.ID, OrderID: 3, OrderLineID: &lineC,
			Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(20)), RuleCode: constants.RuleRecommendedMargin,
			Status: constants.CommissionStatusPaid},
	}
	for i := range records {
		if err := db.Create(&records[i]).Error; err != nil {
			t.Fatalf("create record failed: %v", err)
		}
	}

	summary, err := svc.GetSummary(profile.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.EligibleUnbound.String() != "50.00" {
		t.Fatalf("eligible unbound want 50.00 got %s", summary.EligibleUnbound.String())
	}
	if summary.TotalPaid.String() != "20.00" {
		t.Fatalf("total paid want 20.00 got %s", summary.TotalPaid.String())
	}
	if summary.ByStatus[constants.CommissionStatusEligible].String() != "80.00" {
		t.Fatalf("eligible by-status want 80.00 got %s", summary.ByStatus[constants.CommissionStatusEligible].String())
	}
}
