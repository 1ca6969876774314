package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表（佣金引擎只依赖定价字段，目录管理由外部系统负责）
type Product struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                            // 主键
	Sku                string         `gorm:"uniqueIndex;not null" json:"sku"`                                 // 商品编码
	Name               string         `gorm:"type:varchar(200);not null" json:"name"`                          // 商品名称
	CostPrice          Money          `gorm:"type:decimal(20,2);not null;default:0" json:"cost_price"`         // 成本价（批发价）
	RecommendedPrice   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"recommended_price"`  // 建议售价
	FixedCommission    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fixed_commission"`   // 固定佣金（单件，0 表示未配置）
	IsAffiliateEnabled bool           `gorm:"default:true;index" json:"is_affiliate_enabled"`                  // 是否参与返利
	Tags               StringArray    `gorm:"type:json" json:"tags"`                                           // 标签数组
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt          time.Time      `json:"updated_at"`                                                      // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                                  // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
