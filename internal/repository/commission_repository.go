package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	GetByID(id uint) (*models.CommissionRecord, error)
	GetByIDForUpdate(id uint) (*models.CommissionRecord, error)
	GetByLineAndProfile(lineID, profileID uint) (*models.CommissionRecord, error)
	GetByLineAndProfileForUpdate(lineID, profileID uint) (*models.CommissionRecord, error)
	GetOrderLevelForUpdate(orderID, profileID uint, ruleCode string) (*models.CommissionRecord, error)
	Create(record *models.CommissionRecord) error
	Update(record *models.CommissionRecord) error
	SoftDelete(record *models.CommissionRecord) error
	List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error)
	ListByOrderForUpdate(orderID uint) ([]models.CommissionRecord, error)
	ListEligibleUnboundForUpdate(profileID uint) ([]models.CommissionRecord, error)
	ListByBatchIDForUpdate(batchID uint) ([]models.CommissionRecord, error)
	ListChunk(cursor uint, chunkSize int, excludeStatuses []string) ([]models.CommissionRecord, error)
	MarkEligibleDue(before, now time.Time) (int64, error)
	SumByProfile(profileID uint, statuses []string, unboundOnly bool) (decimal.Decimal, error)
	SummaryByProfile(profileID uint) ([]CommissionStatusAggregate, error)
	BatchUpdate(ids []uint, updates map[string]interface{}) error
}

// GormCommissionRepository GORM 佣金台账仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金台账仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID查询佣金记录
func (r *GormCommissionRepository) GetByID(id uint) (*models.CommissionRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.Preload("AffiliateProfile").Preload("Order").Preload("OrderLine").First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByIDForUpdate 按ID锁定查询佣金记录
func (r *GormCommissionRepository) GetByIDForUpdate(id uint) (*models.CommissionRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByLineAndProfile 按订单行和推广人查询活跃佣金记录
func (r *GormCommissionRepository) GetByLineAndProfile(lineID, profileID uint) (*models.CommissionRecord, error) {
	if lineID == 0 || profileID == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.Where("order_line_id = ? AND affiliate_profile_id = ?", lineID, profileID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByLineAndProfileForUpdate 按订单行和推广人锁定查询活跃佣金记录
func (r *GormCommissionRepository) GetByLineAndProfileForUpdate(lineID, profileID uint) (*models.CommissionRecord, error) {
	if lineID == 0 || profileID == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_line_id = ? AND affiliate_profile_id = ?", lineID, profileID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetOrderLevelForUpdate 锁定查询订单级佣金记录（order_line_id 为空的配送费冲抵/换货扣回）
func (r *GormCommissionRepository) GetOrderLevelForUpdate(orderID, profileID uint, ruleCode string) (*models.CommissionRecord, error) {
	if orderID == 0 || profileID == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND affiliate_profile_id = ? AND order_line_id IS NULL AND rule_code = ?",
			orderID, profileID, strings.TrimSpace(ruleCode)).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(record *models.CommissionRecord) error {
	return r.db.Create(record).Error
}

// Update 更新佣金记录
func (r *GormCommissionRepository) Update(record *models.CommissionRecord) error {
	return r.db.Save(record).Error
}

// SoftDelete 软删除佣金记录（取消，释放活跃记录唯一索引占位）
func (r *GormCommissionRepository) SoftDelete(record *models.CommissionRecord) error {
	if record == nil || record.ID == 0 {
		return nil
	}
	return r.db.Delete(record).Error
}

// List 查询佣金记录列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	query := r.db.Model(&models.CommissionRecord{}).
		Preload("AffiliateProfile").
		Preload("Order").
		Preload("OrderLine")
	if filter.AffiliateProfileID != 0 {
		query = query.Where("commission_records.affiliate_profile_id = ?", filter.AffiliateProfileID)
	}
	if filter.OrderID != 0 {
		query = query.Where("commission_records.order_id = ?", filter.OrderID)
	}
	if filter.OrderLineID != 0 {
		query = query.Where("commission_records.order_line_id = ?", filter.OrderLineID)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Joins("LEFT JOIN orders ON orders.id = commission_records.order_id").
			Where("orders.order_no "+likeOperator(r.db)+" ?", "%"+orderNo+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("commission_records.status = ?", status)
	}
	if ruleCode := strings.TrimSpace(filter.RuleCode); ruleCode != "" {
		query = query.Where("commission_records.rule_code = ?", ruleCode)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("commission_records.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("commission_records.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.CommissionRecord
	if err := query.Order("commission_records.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByOrderForUpdate 按订单锁定查询佣金记录
func (r *GormCommissionRepository) ListByOrderForUpdate(orderID uint) ([]models.CommissionRecord, error) {
	if orderID == 0 {
		return []models.CommissionRecord{}, nil
	}
	var rows []models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListEligibleUnboundForUpdate 锁定查询可提现且未入批的佣金记录
func (r *GormCommissionRepository) ListEligibleUnboundForUpdate(profileID uint) ([]models.CommissionRecord, error) {
	if profileID == 0 {
		return []models.CommissionRecord{}, nil
	}
	var rows []models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("affiliate_profile_id = ? AND status = ? AND withdrawal_batch_id IS NULL",
			profileID, constants.CommissionStatusEligible).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByBatchIDForUpdate 按提现批次锁定查询佣金记录
func (r *GormCommissionRepository) ListByBatchIDForUpdate(batchID uint) ([]models.CommissionRecord, error) {
	if batchID == 0 {
		return []models.CommissionRecord{}, nil
	}
	var rows []models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("withdrawal_batch_id = ?", batchID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListChunk 按ID游标分块拉取佣金记录（回算用，ID 升序保证可续跑）
func (r *GormCommissionRepository) ListChunk(cursor uint, chunkSize int, excludeStatuses []string) ([]models.CommissionRecord, error) {
	if chunkSize <= 0 {
		return []models.CommissionRecord{}, nil
	}
	query := r.db.Model(&models.CommissionRecord{}).Where("id > ?", cursor)
	if len(excludeStatuses) > 0 {
		query = query.Where("status NOT IN ?", excludeStatuses)
	}
	var rows []models.CommissionRecord
	if err := query.Order("id asc").Limit(chunkSize).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkEligibleDue 批量将确认期已到的佣金记录转为可提现
func (r *GormCommissionRepository) MarkEligibleDue(before, now time.Time) (int64, error) {
	result := r.db.Model(&models.CommissionRecord{}).
		Where("status = ? AND confirm_at IS NOT NULL AND confirm_at <= ? AND withdrawal_batch_id IS NULL",
			constants.CommissionStatusCalculated, before).
		Updates(map[string]interface{}{
			"status":      constants.CommissionStatusEligible,
			"eligible_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumByProfile 汇总指定状态佣金金额
func (r *GormCommissionRepository) SumByProfile(profileID uint, statuses []string, unboundOnly bool) (decimal.Decimal, error) {
	if profileID == 0 || len(statuses) == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.CommissionRecord{}).
		Where("affiliate_profile_id = ? AND status IN ?", profileID, statuses)
	if unboundOnly {
		query = query.Where("withdrawal_batch_id IS NULL")
	}

	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// SummaryByProfile 按状态分组汇总佣金金额与条数
func (r *GormCommissionRepository) SummaryByProfile(profileID uint) ([]CommissionStatusAggregate, error) {
	if profileID == 0 {
		return []CommissionStatusAggregate{}, nil
	}
	var rows []CommissionStatusAggregate
	if err := r.db.Model(&models.CommissionRecord{}).
		Select("status, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS cnt").
		Where("affiliate_profile_id = ?", profileID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Total = rows[i].Total.Round(2)
	}
	return rows, nil
}

// BatchUpdate 批量更新佣金记录
func (r *GormCommissionRepository) BatchUpdate(ids []uint, updates map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.CommissionRecord{}).Where("id IN ?", ids).Updates(updates).Error
}
