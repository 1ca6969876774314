package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionRecord 佣金台账记录
// 活跃记录唯一性：同一 (order_line_id, affiliate_profile_id) 至多一条未取消记录，
// 由部分唯一索引（deleted_at IS NULL）保证；取消走软删除释放占位。
type CommissionRecord struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                                                            // 主键
	AffiliateProfileID uint           `gorm:"not null;index;index:idx_commission_line_unique,unique" json:"affiliate_profile_id"`              // 推广用户ID
	OrderID            uint           `gorm:"not null;index" json:"order_id"`                                                                  // 订单ID
	OrderLineID        *uint          `gorm:"index:idx_commission_line_unique,unique,where:deleted_at IS NULL" json:"order_line_id,omitempty"` // 订单行ID（订单级记录为空）
	Amount             Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                             // 佣金金额（换货扣回为负）
	BaseAmount         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`                                        // 佣金基数金额
	Rate               Money          `gorm:"type:decimal(20,2);not null;default:0" json:"rate"`                                               // 单件佣金（语义随规则变化，留作审计）
	RuleCode           string         `gorm:"type:varchar(40);not null;index" json:"rule_code"`                                                // 命中规则代码
	Status             string         `gorm:"type:varchar(32);not null;index" json:"status"`                                                   // 佣金状态
	EligibleAt         *time.Time     `gorm:"index" json:"eligible_at,omitempty"`                                                              // 转可提现时间
	ConfirmAt          *time.Time     `gorm:"index" json:"confirm_at,omitempty"`                                                               // 确认期到期时间
	WithdrawalBatchID  *uint          `gorm:"index" json:"withdrawal_batch_id,omitempty"`                                                      // 当前绑定的提现批次
	PaidWithdrawalID   *uint          `gorm:"index" json:"paid_withdrawal_id,omitempty"`                                                       // 实际支付批次（仅 paid 时写入）
	InvalidReason      string         `gorm:"type:varchar(255)" json:"invalid_reason"`                                                         // 失效/驳回原因
	Metadata           JSON           `gorm:"type:json" json:"metadata,omitempty"`                                                             // 审计元数据（调整历史等）
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                                                         // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                                                         // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                                                                  // 软删除时间

	AffiliateProfile AffiliateProfile `gorm:"foreignKey:AffiliateProfileID" json:"affiliate_profile,omitempty"` // 推广用户
	Order            Order            `gorm:"foreignKey:OrderID" json:"order,omitempty"`                        // 关联订单
	OrderLine        *OrderLine       `gorm:"foreignKey:OrderLineID" json:"order_line,omitempty"`               // 关联订单行
	WithdrawalBatch  *WithdrawalBatch `gorm:"foreignKey:WithdrawalBatchID" json:"withdrawal_batch,omitempty"`   // 提现批次
}

// TableName 指定表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}
