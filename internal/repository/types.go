package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionListFilter 查询佣金记录列表的过滤条件
type CommissionListFilter struct {
	Page               int
	PageSize           int
	AffiliateProfileID uint
	OrderID            uint
	OrderLineID        uint
	OrderNo            string
	Status             string
	RuleCode           string
	CreatedFrom        *time.Time
	CreatedTo          *time.Time
}

// WithdrawalListFilter 查询提现批次列表的过滤条件
type WithdrawalListFilter struct {
	Page               int
	PageSize           int
	AffiliateProfileID uint
	Status             string
	BatchNo            string
	CreatedFrom        *time.Time
	CreatedTo          *time.Time
}

// BackfillRunListFilter 查询回算任务列表的过滤条件
type BackfillRunListFilter struct {
	Page   int
	PageSize int
	Mode   string
	Status string
}

// CommissionStatusAggregate 按状态汇总的佣金金额与条数
type CommissionStatusAggregate struct {
	Status string          `gorm:"column:status"`
	Total  decimal.Decimal `gorm:"column:total"`
	Count  int64           `gorm:"column:cnt"`
}
