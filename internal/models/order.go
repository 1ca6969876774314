package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表（佣金引擎的上游输入，由订单系统写入）
type Order struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                        // 主键
	OrderNo            string         `gorm:"uniqueIndex;not null" json:"order_no"`                        // 订单编号
	AffiliateProfileID *uint          `gorm:"index" json:"affiliate_profile_id,omitempty"`                 // 归因推广用户ID
	OrderType          string         `gorm:"type:varchar(20);not null;default:'normal';index" json:"order_type"` // 订单类型（normal/exchange/return）
	Status             string         `gorm:"index;not null" json:"status"`                                // 订单状态
	Currency           string         `gorm:"not null;default:'MAD'" json:"currency"`                      // 币种
	TotalAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`   // 实付金额
	DeliveryFee        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"delivery_fee"`   // 订单级配送费（整单一次）
	DeliveredAt        *time.Time     `gorm:"index" json:"delivered_at"`                                   // 签收时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间

	Lines            []OrderLine       `gorm:"foreignKey:OrderID" json:"lines,omitempty"`                       // 订单行
	AffiliateProfile *AffiliateProfile `gorm:"foreignKey:AffiliateProfileID" json:"affiliate_profile,omitempty"` // 推广用户
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
