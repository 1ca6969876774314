package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderLine 订单行表
// 下单时快照商品定价（cost/recommended/fixed），避免历史定价漂移影响回算。
type OrderLine struct {
	ID                        uint           `gorm:"primarykey" json:"id"`                                                   // 主键
	OrderID                   uint           `gorm:"index;not null" json:"order_id"`                                         // 订单ID
	ProductID                 uint           `gorm:"index;not null" json:"product_id"`                                       // 商品ID
	UnitPrice                 Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`                // 实际售价（单价）
	Quantity                  int            `gorm:"not null" json:"quantity"`                                               // 数量
	TotalPrice                Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`               // 小计
	CostPriceSnapshot         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"cost_price_snapshot"`       // 成本价快照
	RecommendedPriceSnapshot  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"recommended_price_snapshot"` // 建议售价快照
	FixedCommissionSnapshot   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_commission_snapshot"` // 固定佣金快照
	HasPricingSnapshot        bool           `gorm:"not null;default:false" json:"has_pricing_snapshot"`                     // 是否携带定价快照（历史行可能没有）
	CreatedAt                 time.Time      `gorm:"index" json:"created_at"`                                                // 创建时间
	UpdatedAt                 time.Time      `gorm:"index" json:"updated_at"`                                                // 更新时间
	DeletedAt                 gorm.DeletedAt `gorm:"index" json:"-"`                                                         // 软删除时间
}

// TableName 指定表名
func (OrderLine) TableName() string {
	return "order_lines"
}
