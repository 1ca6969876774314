package commission

import (
	"errors"

	"github.com/fenxiao-next/internal/constants"

	"github.com/shopspring/decimal"
)

var (
	ErrQuantityInvalid    = errors.New("commission quantity must be at least 1")
	ErrPriceNegative      = errors.New("commission price must not be negative")
	ErrDeliveryFeeInvalid = errors.New("commission delivery fee must not be negative")
	ErrPricingMissing     = errors.New("commission product pricing missing")
	ErrOrderTypeInvalid   = errors.New("commission order type invalid")
)

// NettingMode 订单级配送费的归属方式
type NettingMode string

const (
	// NettingOrderTotal 配送费整单冲抵，生成一条订单级负记录
	NettingOrderTotal NettingMode = "order_total"
	// NettingLargestMarginLine 配送费从佣金最高的订单行中扣减
	NettingLargestMarginLine NettingMode = "largest_margin_line"
)

// Config 计算器配置（显式注入，不读全局设置）
type Config struct {
	DeliveryFeeNetting NettingMode
}

// Calculator 佣金计算器。纯计算，无副作用。
type Calculator struct {
	cfg Config
}

// NewCalculator 创建计算器
func NewCalculator(cfg Config) *Calculator {
	if cfg.DeliveryFeeNetting == "" {
		cfg.DeliveryFeeNetting = NettingOrderTotal
	}
	return &Calculator{cfg: cfg}
}

// LineInput 单个订单行的计算输入
type LineInput struct {
	LineID           uint
	CostPrice        decimal.Decimal
	RecommendedPrice decimal.Decimal
	FixedCommission  decimal.Decimal
	SalePrice        decimal.Decimal
	Quantity         int
	PricingKnown     bool
}

// LineResult 单行计算结果
type LineResult struct {
	LineID     uint
	Amount     decimal.Decimal
	BaseAmount decimal.Decimal
	Rate       decimal.Decimal
	RuleCode   string
}

// OrderInput 整单计算输入
type OrderInput struct {
	OrderType   string
	DeliveryFee decimal.Decimal
	Lines       []LineInput
}

// OrderResult 整单计算结果
// OrderAdjustment 为订单级记录（换货扣回或配送费冲抵），不对应具体订单行。
type OrderResult struct {
	Lines           []LineResult
	OrderAdjustment *LineResult
	Total           decimal.Decimal
	LineErrors      map[uint]error
}

// CalculateLine 计算单个订单行的 (金额, 规则)。
// 规则按序评估：固定佣金（按建议价售出且配置了固定佣金）→ 建议价毛利 → 改价毛利。
// 非负保护仅作用于正常销售；金额只在最终结果处做 2 位小数四舍五入。
func (c *Calculator) CalculateLine(in LineInput) (LineResult, error) {
	result := LineResult{LineID: in.LineID}
	if err := validateLine(in); err != nil {
		return result, err
	}

	qty := decimal.NewFromInt(int64(in.Quantity))
	result.BaseAmount = in.SalePrice.Mul(qty).Round(2)

	switch {
	case in.SalePrice.Equal(in.RecommendedPrice) && in.FixedCommission.GreaterThan(decimal.Zero):
		result.Rate = in.FixedCommission
		result.Amount = in.FixedCommission.Mul(qty).Round(2)
		result.RuleCode = constants.RuleFixedCommission
	case in.SalePrice.Equal(in.RecommendedPrice):
		margin := floorZero(in.RecommendedPrice.Sub(in.CostPrice))
		result.Rate = margin
		result.Amount = margin.Mul(qty).Round(2)
		result.RuleCode = constants.RuleRecommendedMargin
	default:
		margin := floorZero(in.SalePrice.Sub(in.CostPrice))
		result.Rate = margin
		result.Amount = margin.Mul(qty).Round(2)
		result.RuleCode = constants.RuleModifiedMargin
	}
	return result, nil
}

// CalculateOrder 计算整单佣金。
// 换货单只产生一条配送费扣回的订单级负记录；退货单不产生佣金；
// 正常单逐行计算后按配置将配送费整单冲抵一次（可能导致整单佣金为负）。
// 单行校验失败不阻断其他行，失败原因记入 LineErrors。
func (c *Calculator) CalculateOrder(in OrderInput) (OrderResult, error) {
	result := OrderResult{
		Total:      decimal.Zero,
		LineErrors: make(map[uint]error),
	}
	if in.DeliveryFee.IsNegative() {
		return result, ErrDeliveryFeeInvalid
	}

	switch in.OrderType {
	case constants.OrderTypeExchange:
		adjustment := LineResult{
			Amount:   in.DeliveryFee.Neg().Round(2),
			Rate:     in.DeliveryFee.Round(2),
			RuleCode: constants.RuleExchangeDeliveryClawback,
		}
		result.OrderAdjustment = &adjustment
		result.Total = adjustment.Amount
		return result, nil
	case constants.OrderTypeReturn:
		return result, nil
	case constants.OrderTypeNormal:
	default:
		return result, ErrOrderTypeInvalid
	}

	for _, line := range in.Lines {
		lineResult, err := c.CalculateLine(line)
		if err != nil {
			result.LineErrors[line.LineID] = err
			continue
		}
		result.Lines = append(result.Lines, lineResult)
		result.Total = result.Total.Add(lineResult.Amount)
	}

	if in.DeliveryFee.GreaterThan(decimal.Zero) && len(result.Lines) > 0 {
		switch c.cfg.DeliveryFeeNetting {
		case NettingLargestMarginLine:
			idx := largestAmountIndex(result.Lines)
			result.Lines[idx].Amount = result.Lines[idx].Amount.Sub(in.DeliveryFee).Round(2)
		default:
			adjustment := LineResult{
				Amount:   in.DeliveryFee.Neg().Round(2),
				Rate:     in.DeliveryFee.Round(2),
				RuleCode: constants.RuleDeliveryFeeNet,
			}
			result.OrderAdjustment = &adjustment
		}
		result.Total = result.Total.Sub(in.DeliveryFee)
	}
	result.Total = result.Total.Round(2)
	return result, nil
}

func validateLine(in LineInput) error {
	if in.Quantity < 1 {
		return ErrQuantityInvalid
	}
	if !in.PricingKnown {
		return ErrPricingMissing
	}
	if in.CostPrice.IsNegative() || in.SalePrice.IsNegative() || in.RecommendedPrice.IsNegative() || in.FixedCommission.IsNegative() {
		return ErrPriceNegative
	}
	return nil
}

func floorZero(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}

func largestAmountIndex(lines []LineResult) int {
	idx := 0
	for i := 1; i < len(lines); i++ {
		if lines[i].Amount.GreaterThan(lines[idx].Amount) {
			idx = i
		}
	}
	return idx
}

// IsValidationError 判断是否为输入校验类错误
func IsValidationError(err error) bool {
	return errors.Is(err, ErrQuantityInvalid) ||
		errors.Is(err, ErrPriceNegative) ||
		errors.Is(err, ErrDeliveryFeeInvalid) ||
		errors.Is(err, ErrPricingMissing) ||
		errors.Is(err, ErrOrderTypeInvalid)
}
