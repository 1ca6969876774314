package constants

// 订单状态常量
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusShipping       = "shipping"
	OrderStatusDelivered      = "delivered"
	OrderStatusCompleted      = "completed"
	OrderStatusCanceled       = "canceled"
	OrderStatusReturned       = "returned"
)

// 订单类型常量
const (
	OrderTypeNormal   = "normal"
	OrderTypeExchange = "exchange"
	OrderTypeReturn   = "return"
)

// 推广用户状态常量
const (
	AffiliateProfileStatusActive   = "active"
	AffiliateProfileStatusDisabled = "disabled"
)

// 佣金状态常量（规范态）
const (
	CommissionStatusPendingCalc = "pending_calc"
	CommissionStatusCalculated  = "calculated"
	CommissionStatusEligible    = "eligible"
	CommissionStatusApproved    = "approved"
	CommissionStatusPaid        = "paid"
	CommissionStatusRejected    = "rejected"
	CommissionStatusAdjusted    = "adjusted"
	CommissionStatusCanceled    = "canceled"
)

// 佣金规则代码常量
const (
	RuleFixedCommission          = "FIXED_COMMISSION"
	RuleRecommendedMargin        = "RECOMMENDED_MARGIN"
	RuleModifiedMargin           = "MODIFIED_MARGIN"
	RuleExchangeDeliveryClawback = "EXCHANGE_DELIVERY_CLAWBACK"
	RuleDeliveryFeeNet           = "DELIVERY_FEE_NET"
)

// 提现批次状态常量
const (
	WithdrawalStatusPendingReview = "pending_review"
	WithdrawalStatusPaid          = "paid"
	WithdrawalStatusRejected      = "rejected"
	WithdrawalStatusCanceled      = "canceled"
)

// 提现审核动作常量
const (
	WithdrawalActionReject = "reject"
	WithdrawalActionPay    = "pay"
)

// 对账任务模式与状态常量
const (
	BackfillModeDryRun = "dry_run"
	BackfillModeApply  = "apply"

	BackfillStatusRunning   = "running"
	BackfillStatusCompleted = "completed"
	BackfillStatusStopped   = "stopped"
	BackfillStatusFailed    = "failed"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 异步任务名称常量
const (
	TaskCommissionOrderDelivered = "commission:order_delivered"
	TaskCommissionBackfillRun    = "commission:backfill_run"
)

// legacyCommissionStatuses 旧版（法语）佣金状态到规范态的映射。
// 仅用于持久化/接口边界的兼容转换，业务逻辑不感知旧版字符串。
var legacyCommissionStatuses = map[string]string{
	"en_attente": CommissionStatusCalculated,
	"valide":     CommissionStatusEligible,
	"approuve":   CommissionStatusApproved,
	"paye":       CommissionStatusPaid,
	"rejete":     CommissionStatusRejected,
	"ajuste":     CommissionStatusAdjusted,
	"annule":     CommissionStatusCanceled,
}

var canonicalCommissionStatuses = map[string]struct{}{
	CommissionStatusPendingCalc: {},
	CommissionStatusCalculated:  {},
	CommissionStatusEligible:    {},
	CommissionStatusApproved:    {},
	CommissionStatusPaid:        {},
	CommissionStatusRejected:    {},
	CommissionStatusAdjusted:    {},
	CommissionStatusCanceled:    {},
}

// NormalizeCommissionStatus 将规范态或旧版状态统一为规范态；无法识别时返回空串。
func NormalizeCommissionStatus(raw string) string {
	if _, ok := canonicalCommissionStatuses[raw]; ok {
		return raw
	}
	if canonical, ok := legacyCommissionStatuses[raw]; ok {
		return canonical
	}
	return ""
}

// LegacyCommissionStatus 返回规范态对应的旧版状态；无对应值时返回规范态本身。
func LegacyCommissionStatus(canonical string) string {
	for legacy, mapped := range legacyCommissionStatuses {
		if mapped == canonical {
			return legacy
		}
	}
	return canonical
}

// commissionStatusTransitions 佣金状态机（终态 paid/rejected/canceled 无出边）。
// approved → eligible 仅发生在提现批次驳回解绑时，记录回到可再次入批状态。
var commissionStatusTransitions = map[string][]string{
	CommissionStatusPendingCalc: {CommissionStatusCalculated, CommissionStatusCanceled},
	CommissionStatusCalculated:  {CommissionStatusEligible, CommissionStatusApproved, CommissionStatusRejected, CommissionStatusAdjusted, CommissionStatusCanceled, CommissionStatusPendingCalc},
	CommissionStatusEligible:    {CommissionStatusApproved, CommissionStatusRejected, CommissionStatusAdjusted, CommissionStatusCanceled},
	CommissionStatusApproved:    {CommissionStatusPaid, CommissionStatusEligible, CommissionStatusRejected, CommissionStatusAdjusted},
	CommissionStatusAdjusted:    {CommissionStatusEligible, CommissionStatusApproved, CommissionStatusRejected, CommissionStatusCanceled},
}

// CanTransitCommissionStatus 判断佣金状态迁移是否合法。
func CanTransitCommissionStatus(from, to string) bool {
	for _, next := range commissionStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalCommissionStatus 判断是否为终态。
func IsTerminalCommissionStatus(status string) bool {
	switch status {
	case CommissionStatusPaid, CommissionStatusRejected, CommissionStatusCanceled:
		return true
	}
	return false
}
