package service

import "errors"

// 业务错误定义，HTTP 层通过 errors.Is 映射为对应的业务状态码。
var (
	ErrNotFound                = errors.New("record not found")
	ErrAffiliateDisabled       = errors.New("affiliate profile disabled")
	ErrOrderNotDelivered       = errors.New("order not delivered")
	ErrCommissionStatusInvalid = errors.New("commission status invalid")
	ErrCommissionTerminal      = errors.New("commission record in terminal status")
	ErrCommissionBatchBound    = errors.New("commission record bound to withdrawal batch")
	ErrImmutablePaidRecord     = errors.New("paid commission record is immutable")
	ErrAdjustAmountInvalid     = errors.New("adjust amount invalid")
	ErrWithdrawalNoEligible    = errors.New("no eligible commission to withdraw")
	ErrWithdrawalBelowMinimum  = errors.New("withdrawal amount below minimum")
	ErrWithdrawalStatusInvalid = errors.New("withdrawal status invalid")
	ErrAggregationMismatch     = errors.New("withdrawal batch amount mismatch")
	ErrBackfillAlreadyRunning  = errors.New("backfill run already in progress")
	ErrBackfillModeInvalid     = errors.New("backfill mode invalid")
	ErrBackfillNotRunning      = errors.New("backfill run not running")
)
