package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalRepository 提现批次数据访问接口
type WithdrawalRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) WithdrawalRepository

	CreateBatch(batch *models.WithdrawalBatch) error
	CreateItems(items []models.WithdrawalBatchItem) error
	UpdateBatch(batch *models.WithdrawalBatch) error
	GetBatchByID(id uint) (*models.WithdrawalBatch, error)
	GetBatchByIDForUpdate(id uint) (*models.WithdrawalBatch, error)
	ListBatches(filter WithdrawalListFilter) ([]models.WithdrawalBatch, int64, error)
	SumItemAmounts(batchID uint) (decimal.Decimal, error)
}

// GormWithdrawalRepository GORM 提现批次仓储
type GormWithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现批次仓储
func NewWithdrawalRepository(db *gorm.DB) *GormWithdrawalRepository {
	return &GormWithdrawalRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWithdrawalRepository) WithTx(tx *gorm.DB) WithdrawalRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawalRepository{db: tx}
}

// Transaction 执行事务
func (r *GormWithdrawalRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateBatch 创建提现批次
func (r *GormWithdrawalRepository) CreateBatch(batch *models.WithdrawalBatch) error {
	return r.db.Create(batch).Error
}

// CreateItems 批量创建批次项
func (r *GormWithdrawalRepository) CreateItems(items []models.WithdrawalBatchItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

// UpdateBatch 更新提现批次
func (r *GormWithdrawalRepository) UpdateBatch(batch *models.WithdrawalBatch) error {
	return r.db.Save(batch).Error
}

// GetBatchByID 按ID查询提现批次（含批次项）
func (r *GormWithdrawalRepository) GetBatchByID(id uint) (*models.WithdrawalBatch, error) {
	if id == 0 {
		return nil, nil
	}
	var batch models.WithdrawalBatch
	if err := r.db.Preload("AffiliateProfile").
		Preload("Items").
		Preload("Items.CommissionRecord").
		First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetBatchByIDForUpdate 按ID锁定查询提现批次
func (r *GormWithdrawalRepository) GetBatchByIDForUpdate(id uint) (*models.WithdrawalBatch, error) {
	if id == 0 {
		return nil, nil
	}
	var batch models.WithdrawalBatch
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// ListBatches 查询提现批次列表
func (r *GormWithdrawalRepository) ListBatches(filter WithdrawalListFilter) ([]models.WithdrawalBatch, int64, error) {
	query := r.db.Model(&models.WithdrawalBatch{}).Preload("AffiliateProfile")
	if filter.AffiliateProfileID != 0 {
		query = query.Where("withdrawal_batches.affiliate_profile_id = ?", filter.AffiliateProfileID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("withdrawal_batches.status = ?", status)
	}
	if batchNo := strings.TrimSpace(filter.BatchNo); batchNo != "" {
		query = query.Where("withdrawal_batches.batch_no "+likeOperator(r.db)+" ?", "%"+batchNo+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("withdrawal_batches.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("withdrawal_batches.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.WithdrawalBatch
	if err := query.Order("withdrawal_batches.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumItemAmounts 汇总批次项金额（批次金额不变式校验用）
func (r *GormWithdrawalRepository) SumItemAmounts(batchID uint) (decimal.Decimal, error) {
	if batchID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.WithdrawalBatchItem{}).
		Where("withdrawal_batch_id = ?", batchID).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
