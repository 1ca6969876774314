package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCommissionRepoTest(t *testing.T) (*GormCommissionRepository, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:commission_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.AffiliateProfile{},
		&models.Order{},
		&models.OrderLine{},
		&models.CommissionRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewCommissionRepository(db), db
}

func createRepoTestRecord(t *testing.T, db *gorm.DB, profileID, orderID uint, lineID *uint, status string, amount int64) models.CommissionRecord {
	t.Helper()

	row := models.CommissionRecord{
		AffiliateProfileID: profileID,
		OrderID:            orderID,
		OrderLineID:        lineID,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             status,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create record failed: %v", err)
	}
	return row
}

func TestUniqueIndexBlocksDuplicateLiveRecord(t *testing.T) {
	repo, db := setupCommissionRepoTest(t)

	lineID := uint(1)
	createRepoTestRecord(t, db, 1, 1, &lineID, constants.CommissionStatusCalculated, 50)

	dup := models.CommissionRecord{
		AffiliateProfileID: 1,
		OrderID:            1,
		OrderLineID:        &lineID,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(60)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             constants.CommissionStatusCalculated,
	}
	if err := repo.Create(&dup); err == nil {
		t.Fatalf("duplicate live record should violate unique index")
	}
}

func TestOrderLevelRecordsBypassLineUniqueIndex(t *testing.T) {
	repo, db := setupCommissionRepoTest(t)

	// 订单级记录 order_line_id 为空，不受行级唯一索引约束，
	// 同一订单可并存不同规则的订单级记录（净额与换货扣回）。
	first := models.CommissionRecord{
		AffiliateProfileID: 1,
		OrderID:            1,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(-30)),
		RuleCode:           constants.RuleDeliveryFeeNet,
		Status:             constants.CommissionStatusCalculated,
	}
	if err := repo.Create(&first); err != nil {
		t.Fatalf("create first order-level record failed: %v", err)
	}
	second := models.CommissionRecord{
		AffiliateProfileID: 1,
		OrderID:            1,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(-20)),
		RuleCode:           constants.RuleExchangeDeliveryClawback,
		Status:             constants.CommissionStatusCalculated,
	}
	if err := repo.Create(&second); err != nil {
		t.Fatalf("create second order-level record failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.CommissionRecord{}).
		Where("order_id = ? AND order_line_id IS NULL", 1).Count(&count).Error; err != nil {
		t.Fatalf("count order-level records failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("order-level records want 2 got %d", count)
	}
}

func TestSoftDeleteReleasesUniqueSlot(t *testing.T) {
	repo, db := setupCommissionRepoTest(t)

	lineID := uint(2)
	first := createRepoTestRecord(t, db, 1, 1, &lineID, constants.CommissionStatusCanceled, 50)
	if err := repo.SoftDelete(&first); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	second := models.CommissionRecord{
		AffiliateProfileID: 1,
		OrderID:            1,
		OrderLineID:        &lineID,
		Amount:             models.NewMoneyFromDecimal(decimal.NewFromInt(60)),
		RuleCode:           constants.RuleRecommendedMargin,
		Status:             constants.CommissionStatusCalculated,
	}
	if err := repo.Create(&second); err != nil {
		t.Fatalf("create after soft delete failed: %v", err)
	}

	found, err := repo.GetByLineAndProfile(lineID, 1)
	if err != nil {
		t.Fatalf("get by line failed: %v", err)
	}
	if found == nil || found.ID != second.ID {
		t.Fatalf("live lookup should return the fresh record, got %+v", found)
	}
}

func TestListChunkCursorAndExclusions(t *testing.T) {
	repo, db := setupCommissionRepoTest(t)

	statuses := []string{
		constants.CommissionStatusCalculated,
		constants.CommissionStatusPaid,
		constants.CommissionStatusEligible,
		constants.CommissionStatusRejected,
		constants.CommissionStatusAdjusted,
	}
	for i, status := range statuses {
		lineID := uint(10 + i)
		createRepoTestRecord(t, db, 1, uint(i+1), &lineID, status, 50)
	}

	chunk, err := repo.ListChunk(0, 10, []string{
		constants.CommissionStatusPaid,
		constants.CommissionStatusRejected,
	})
	if err != nil {
		t.Fatalf("list chunk failed: %v", err)
	}
	if len(chunk) != 3 {
		t.Fatalf("chunk want 3 records got %d", len(chunk))
	}
	for _, row := range chunk {
		if row.Status == constants.CommissionStatusPaid || row.Status == constants.CommissionStatusRejected {
			t.Fatalf("terminal status %s should be excluded", row.Status)
		}
	}

	// 游标续跑：从第一条之后继续
	rest, err := repo.ListChunk(chunk[0].ID, 10, nil)
	if err != nil {
		t.Fatalf("list chunk with cursor failed: %v", err)
	}
	for _, row := range rest {
		if row.ID <= chunk[0].ID {
			t.Fatalf("cursor chunk should only contain later ids, got %d", row.ID)
		}
	}
}

func TestListFiltersByOrderNo(t *testing.T) {
	repo, db := setupCommissionRepoTest(t)

	order := models.Order{OrderNo: "ORD-ALPHA-1", OrderType: constants.OrderTypeNormal, Status: constants.OrderStatusDelivered}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	other := models.Order{OrderNo: "ORD-BETA-2", OrderType: constants.OrderTypeNormal, Status: constants.OrderStatusDelivered}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("create other order failed: %v", err)
	}
	lineA, lineB := uint(21), uint(22)
	createRepoTestRecord(t, db, 1, order.ID, &lineA, constants.CommissionStatusCalculated, 50)
	createRepoTestRecord(t, db, 1, other.ID, &lineB, constants.CommissionStatusCalculated, 60)

	rows, total, err := repo.List(CommissionListFilter{
		Page:     1,
		PageSize: 10,
		OrderNo:  "ALPHA",
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("order_no filter want 1 row got total=%d len=%d", total, len(rows))
	}
	if rows[0].OrderID != order.ID {
		t.Fatalf("filtered row order want %d got %d", order.ID, rows[0].OrderID)
	}
}

func TestMarkEligibleDueSkipsBoundRecords(t *testing.T) {
	repo, db := setupCommissionRepoTest(t)

	past := time.Now().Add(-time.Hour)
	lineA, lineB := uint(31), uint(32)
	due := createRepoTestRecord(t, db, 1, 1, &lineA, constants.CommissionStatusCalculated, 50)
	bound := createRepoTestRecord(t, db, 1, 2, &lineB, constants.CommissionStatusCalculated, 60)
	batchID := uint(5)
	if err := db.Model(&models.CommissionRecord{}).Where("id IN ?", []uint{due.ID, bound.ID}).
		Update("confirm_at", past).Error; err != nil {
		t.Fatalf("set confirm_at failed: %v", err)
	}
	if err := db.Model(&models.CommissionRecord{}).Where("id = ?", bound.ID).
		Update("withdrawal_batch_id", batchID).Error; err != nil {
		t.Fatalf("bind record failed: %v", err)
	}

	affected, err := repo.MarkEligibleDue(time.Now(), time.Now())
	if err != nil {
		t.Fatalf("mark eligible due failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected want 1 got %d", affected)
	}

	var still models.CommissionRecord
	if err := db.First(&still, bound.ID).Error; err != nil {
		t.Fatalf("load bound record failed: %v", err)
	}
	if still.Status != constants.CommissionStatusCalculated {
		t.Fatalf("bound record must stay calculated, got %s", still.Status)
	}
}
