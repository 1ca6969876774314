package models

import (
	"time"

	"gorm.io/gorm"
)

// WithdrawalBatch 提现批次
// 不变式：amount 恒等于关联批次项金额之和。
type WithdrawalBatch struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                      // 主键
	BatchNo            string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"batch_no"`     // 批次编号
	AffiliateProfileID uint           `gorm:"not null;index" json:"affiliate_profile_id"`                // 推广用户ID
	Amount             Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`       // 批次总额
	Status             string         `gorm:"type:varchar(32);not null;index" json:"status"`             // 批次状态
	RejectReason       string         `gorm:"type:varchar(255)" json:"reject_reason"`                    // 驳回原因
	ProcessedBy        *uint          `gorm:"index" json:"processed_by,omitempty"`                       // 审核人ID
	ProcessedAt        *time.Time     `json:"processed_at,omitempty"`                                    // 审核时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	AffiliateProfile AffiliateProfile      `gorm:"foreignKey:AffiliateProfileID" json:"affiliate_profile,omitempty"` // 推广用户
	Items            []WithdrawalBatchItem `gorm:"foreignKey:WithdrawalBatchID" json:"items,omitempty"`              // 批次项
}

// TableName 指定表名
func (WithdrawalBatch) TableName() string {
	return "withdrawal_batches"
}

// WithdrawalBatchItem 提现批次项（佣金记录与批次的关联，金额入批时快照）
type WithdrawalBatchItem struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                                                              // 主键
	WithdrawalBatchID  uint      `gorm:"not null;index;index:idx_withdrawal_item_unique,unique" json:"withdrawal_batch_id"` // 批次ID
	CommissionRecordID uint      `gorm:"not null;index;index:idx_withdrawal_item_unique,unique" json:"commission_record_id"` // 佣金记录ID
	Amount             Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                               // 入批金额快照
	CreatedAt          time.Time `gorm:"index" json:"created_at"`                                                           // 创建时间

	CommissionRecord CommissionRecord `gorm:"foreignKey:CommissionRecordID" json:"commission_record,omitempty"` // 佣金记录
}

// TableName 指定表名
func (WithdrawalBatchItem) TableName() string {
	return "withdrawal_batch_items"
}
