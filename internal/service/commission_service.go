package service

import (
	"strings"
	"time"

	"github.com/fenxiao-next/internal/commission"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionSettings 佣金策略配置（容器装配时从配置注入，不读全局设置表）
type CommissionSettings struct {
	ConfirmDays       int
	NettingMode       commission.NettingMode
	MinWithdrawAmount decimal.Decimal
	BackfillChunkSize int
}

// CommissionService 佣金台账业务服务
type CommissionService struct {
	repo          repository.CommissionRepository
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	affiliateRepo repository.AffiliateRepository
	calc          *commission.Calculator
	settings      CommissionSettings
}

// NewCommissionService 创建佣金台账服务
func NewCommissionService(
	repo repository.CommissionRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	affiliateRepo repository.AffiliateRepository,
	calc *commission.Calculator,
	settings CommissionSettings,
) *CommissionService {
	return &CommissionService{
		repo:          repo,
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		affiliateRepo: affiliateRepo,
		calc:          calc,
		settings:      settings,
	}
}

// CommissionCalculationResult 整单佣金计算结果
// 计算失败不阻断订单流转，失败原因通过结构化结果返回给调用方。
type CommissionCalculationResult struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	RecordIDs   []uint          `json:"record_ids"`
	TotalAmount models.Money    `json:"total_amount"`
	LineErrors  map[uint]string `json:"line_errors,omitempty"`
}

// CommissionAdjustInput 手工调整输入
type CommissionAdjustInput struct {
	Amount     decimal.Decimal
	Reason     string
	OperatorID uint
}

// AffiliateCommissionSummary 推广用户佣金汇总
type AffiliateCommissionSummary struct {
	AffiliateProfileID uint                    `json:"affiliate_profile_id"`
	ByStatus           map[string]models.Money `json:"by_status"`
	EligibleUnbound    models.Money            `json:"eligible_unbound"`
	TotalPaid          models.Money            `json:"total_paid"`
}

// MarkOrderDelivered 标记订单签收（佣金计算的触发点）
func (s *CommissionService) MarkOrderDelivered(orderID uint, deliveredAt time.Time) (*models.Order, error) {
	if orderID == 0 || s.orderRepo == nil {
		return nil, ErrNotFound
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status == constants.OrderStatusDelivered {
		return order, nil
	}
	if err := s.orderRepo.UpdateStatus(orderID, constants.OrderStatusDelivered, map[string]interface{}{
		"delivered_at": deliveredAt,
		"updated_at":   time.Now(),
	}); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(orderID)
}

// CalculateForOrder 重算整单佣金（幂等：同一订单重复调用不产生重复记录）。
// 已支付记录不动；已入批记录跳过；金额变化的既有记录做带审计历史的原地调整。
func (s *CommissionService) CalculateForOrder(orderID uint) (*CommissionCalculationResult, error) {
	result := &CommissionCalculationResult{
		Success:     true,
		TotalAmount: models.NewMoneyFromDecimal(decimal.Zero),
		LineErrors:  map[uint]string{},
	}
	if orderID == 0 || s.repo == nil || s.orderRepo == nil {
		return nil, ErrNotFound
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status != constants.OrderStatusDelivered && order.DeliveredAt == nil {
		return nil, ErrOrderNotDelivered
	}
	if order.AffiliateProfileID == nil || *order.AffiliateProfileID == 0 {
		result.Message = "no_affiliate_attribution"
		return result, nil
	}
	profile, err := s.affiliateRepo.GetProfileByID(*order.AffiliateProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		result.Success = false
		result.Message = "affiliate_profile_missing"
		return result, nil
	}
	if strings.TrimSpace(profile.Status) != constants.AffiliateProfileStatusActive {
		result.Success = false
		result.Message = "affiliate_profile_disabled"
		return result, nil
	}

	orderInput, err := s.buildOrderInput(order)
	if err != nil {
		return nil, err
	}
	calcResult, err := s.calc.CalculateOrder(orderInput)
	if err != nil {
		result.Success = false
		result.Message = err.Error()
		return result, nil
	}

	deliveredAt := time.Now()
	if order.DeliveredAt != nil {
		deliveredAt = *order.DeliveredAt
	}

	txErr := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		for _, line := range calcResult.Lines {
			record, err := s.upsertLineRecord(repoTx, order, profile.ID, line, deliveredAt)
			if err != nil {
				return err
			}
			if record != nil {
				result.RecordIDs = append(result.RecordIDs, record.ID)
			}
		}
		if calcResult.OrderAdjustment != nil {
			record, err := s.upsertOrderLevelRecord(repoTx, order, profile.ID, *calcResult.OrderAdjustment, deliveredAt)
			if err != nil {
				return err
			}
			if record != nil {
				result.RecordIDs = append(result.RecordIDs, record.ID)
			}
		}
		for lineID, lineErr := range calcResult.LineErrors {
			result.LineErrors[lineID] = lineErr.Error()
			if err := s.flagLinePendingCalc(repoTx, lineID, profile.ID, lineErr.Error()); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if len(calcResult.LineErrors) > 0 {
		result.Success = false
		result.Message = "partial_line_failure"
	}
	result.TotalAmount = models.NewMoneyFromDecimal(calcResult.Total)
	logger.Infow("commission_calculated",
		"order_id", order.ID,
		"affiliate_profile_id", profile.ID,
		"record_count", len(result.RecordIDs),
		"total_amount", result.TotalAmount.String(),
		"line_error_count", len(result.LineErrors),
	)
	return result, nil
}

// buildOrderInput 组装计算输入：优先使用订单行定价快照，历史行回退到商品实时定价。
func (s *CommissionService) buildOrderInput(order *models.Order) (commission.OrderInput, error) {
	input := commission.OrderInput{
		OrderType:   order.OrderType,
		DeliveryFee: order.DeliveryFee.Decimal,
	}

	productIDs := make([]uint, 0, len(order.Lines))
	for _, line := range order.Lines {
		if !line.HasPricingSnapshot {
			productIDs = append(productIDs, line.ProductID)
		}
	}
	products := map[uint]models.Product{}
	if len(productIDs) > 0 && s.productRepo != nil {
		var err error
		products, err = s.productRepo.MapByIDs(productIDs)
		if err != nil {
			return input, err
		}
	}

	for _, line := range order.Lines {
		lineInput := commission.LineInput{
			LineID:    line.ID,
			SalePrice: line.UnitPrice.Decimal,
			Quantity:  line.Quantity,
		}
		if line.HasPricingSnapshot {
			lineInput.CostPrice = line.CostPriceSnapshot.Decimal
			lineInput.RecommendedPrice = line.RecommendedPriceSnapshot.Decimal
			lineInput.FixedCommission = line.FixedCommissionSnapshot.Decimal
			lineInput.PricingKnown = true
		} else if product, ok := products[line.ProductID]; ok {
			if !product.IsAffiliateEnabled {
				continue
			}
			lineInput.CostPrice = product.CostPrice.Decimal
			lineInput.RecommendedPrice = product.RecommendedPrice.Decimal
			lineInput.FixedCommission = product.FixedCommission.Decimal
			lineInput.PricingKnown = true
		}
		input.Lines = append(input.Lines, lineInput)
	}
	return input, nil
}

// ExpectedLineStatus 新建记录的初始状态与确认期
func (s *CommissionService) initialStatus(deliveredAt time.Time) (string, *time.Time, *time.Time) {
	if s.settings.ConfirmDays <= 0 {
		eligibleAt := deliveredAt
		return constants.CommissionStatusEligible, nil, &eligibleAt
	}
	confirmAt := deliveredAt.Add(time.Duration(s.settings.ConfirmDays) * 24 * time.Hour)
	return constants.CommissionStatusCalculated, &confirmAt, nil
}

func (s *CommissionService) upsertLineRecord(
	repoTx repository.CommissionRepository,
	order *models.Order,
	profileID uint,
	line commission.LineResult,
	deliveredAt time.Time,
) (*models.CommissionRecord, error) {
	const maxRetry = 2
	for attempt := 0; attempt < maxRetry; attempt++ {
		existing, err := repoTx.GetByLineAndProfileForUpdate(line.LineID, profileID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.reconcileExisting(repoTx, existing, line.Amount, line.RuleCode, "recalculation")
		}

		lineID := line.LineID
		status, confirmAt, eligibleAt := s.initialStatus(deliveredAt)
		record := &models.CommissionRecord{
			AffiliateProfileID: profileID,
			OrderID:            order.ID,
			OrderLineID:        &lineID,
			Amount:             models.NewMoneyFromDecimal(line.Amount),
			BaseAmount:         models.NewMoneyFromDecimal(line.BaseAmount),
			Rate:               models.NewMoneyFromDecimal(line.Rate),
			RuleCode:           line.RuleCode,
			Status:             status,
			ConfirmAt:          confirmAt,
			EligibleAt:         eligibleAt,
		}
		if err := repoTx.Create(record); err != nil {
			if isUniqueViolation(err) {
				// 并发重算命中唯一索引，重读既有记录走调整路径。
				continue
			}
			return nil, err
		}
		return record, nil
	}
	return repoTx.GetByLineAndProfile(line.LineID, profileID)
}

func (s *CommissionService) upsertOrderLevelRecord(
	repoTx repository.CommissionRepository,
	order *models.Order,
	profileID uint,
	adjustment commission.LineResult,
	deliveredAt time.Time,
) (*models.CommissionRecord, error) {
	existing, err := repoTx.GetOrderLevelForUpdate(order.ID, profileID, adjustment.RuleCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reconcileExisting(repoTx, existing, adjustment.Amount, adjustment.RuleCode, "recalculation")
	}

	status, confirmAt, eligibleAt := s.initialStatus(deliveredAt)
	record := &models.CommissionRecord{
		AffiliateProfileID: profileID,
		OrderID:            order.ID,
		Amount:             models.NewMoneyFromDecimal(adjustment.Amount),
		Rate:               models.NewMoneyFromDecimal(adjustment.Rate),
		RuleCode:           adjustment.RuleCode,
		Status:             status,
		ConfirmAt:          confirmAt,
		EligibleAt:         eligibleAt,
	}
	if err := repoTx.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

// reconcileExisting 既有记录与最新计算结果对齐：金额一致为幂等空操作，
// 不一致则做带审计历史的原地调整。paid 不可变，已入批与终态记录跳过。
func (s *CommissionService) reconcileExisting(
	repoTx repository.CommissionRepository,
	existing *models.CommissionRecord,
	expectedAmount decimal.Decimal,
	expectedRule string,
	reason string,
) (*models.CommissionRecord, error) {
	if existing.Status == constants.CommissionStatusPaid {
		return existing, nil
	}
	if existing.WithdrawalBatchID != nil {
		return existing, nil
	}
	if constants.IsTerminalCommissionStatus(existing.Status) {
		return existing, nil
	}
	if existing.Amount.Decimal.Round(2).Equal(expectedAmount.Round(2)) && existing.RuleCode == expectedRule {
		if existing.Status == constants.CommissionStatusPendingCalc {
			// 此前因定价缺失挂起，本次计算成功后恢复。
			existing.Status = constants.CommissionStatusCalculated
			existing.InvalidReason = ""
			existing.UpdatedAt = time.Now()
			if err := repoTx.Update(existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	now := time.Now()
	appendMetadataHistory(existing, map[string]interface{}{
		"prior_amount": existing.Amount.String(),
		"prior_rule":   existing.RuleCode,
		"prior_status": existing.Status,
		"reason":       reason,
		"adjusted_at":  now.Format(time.RFC3339),
	})
	existing.Amount = models.NewMoneyFromDecimal(expectedAmount)
	existing.RuleCode = expectedRule
	existing.Status = constants.CommissionStatusAdjusted
	existing.InvalidReason = ""
	existing.UpdatedAt = now
	if err := repoTx.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// flagLinePendingCalc 单行计算失败时，将既有非终态记录挂起等待定价修正。
func (s *CommissionService) flagLinePendingCalc(repoTx repository.CommissionRepository, lineID, profileID uint, reason string) error {
	existing, err := repoTx.GetByLineAndProfileForUpdate(lineID, profileID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.Status == constants.CommissionStatusPaid || existing.WithdrawalBatchID != nil {
		return nil
	}
	if constants.IsTerminalCommissionStatus(existing.Status) {
		return nil
	}
	if !constants.CanTransitCommissionStatus(existing.Status, constants.CommissionStatusPendingCalc) {
		return nil
	}
	existing.Status = constants.CommissionStatusPendingCalc
	existing.InvalidReason = reason
	existing.UpdatedAt = time.Now()
	return repoTx.Update(existing)
}

// ConfirmDueCommissions 将确认期到期的佣金转为可提现
func (s *CommissionService) ConfirmDueCommissions(now time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	affected, err := s.repo.MarkEligibleDue(now, now)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logger.Infow("commission_eligible_due", "affected", affected)
	}
	return affected, nil
}

// Approve 管理端将佣金记录标记为已批准
func (s *CommissionService) Approve(recordID uint) (*models.CommissionRecord, error) {
	return s.transit(recordID, constants.CommissionStatusApproved, "")
}

// Reject 管理端驳回佣金记录
func (s *CommissionService) Reject(recordID uint, reason string) (*models.CommissionRecord, error) {
	return s.transit(recordID, constants.CommissionStatusRejected, strings.TrimSpace(reason))
}

func (s *CommissionService) transit(recordID uint, nextStatus, reason string) (*models.CommissionRecord, error) {
	if recordID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		record, err := repoTx.GetByIDForUpdate(recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrNotFound
		}
		if record.Status == constants.CommissionStatusPaid {
			return ErrImmutablePaidRecord
		}
		if record.WithdrawalBatchID != nil {
			return ErrCommissionBatchBound
		}
		if constants.IsTerminalCommissionStatus(record.Status) {
			return ErrCommissionTerminal
		}
		if !constants.CanTransitCommissionStatus(record.Status, nextStatus) {
			return ErrCommissionStatusInvalid
		}
		now := time.Now()
		record.Status = nextStatus
		record.UpdatedAt = now
		if nextStatus == constants.CommissionStatusRejected {
			record.InvalidReason = reason
		}
		if nextStatus == constants.CommissionStatusApproved && record.EligibleAt == nil {
			record.EligibleAt = &now
		}
		return repoTx.Update(record)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(recordID)
}

// Adjust 管理端手工调整佣金金额（原调整前值写入审计历史）
func (s *CommissionService) Adjust(recordID uint, input CommissionAdjustInput) (*models.CommissionRecord, error) {
	if recordID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	// 超过两位小数直接拒绝，不做静默截断。
	amount := input.Amount.Round(2)
	if !amount.Equal(input.Amount) {
		return nil, ErrAdjustAmountInvalid
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		record, err := repoTx.GetByIDForUpdate(recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrNotFound
		}
		if record.Status == constants.CommissionStatusPaid {
			return ErrImmutablePaidRecord
		}
		if record.WithdrawalBatchID != nil {
			return ErrCommissionBatchBound
		}
		if constants.IsTerminalCommissionStatus(record.Status) {
			return ErrCommissionTerminal
		}
		if !constants.CanTransitCommissionStatus(record.Status, constants.CommissionStatusAdjusted) {
			return ErrCommissionStatusInvalid
		}
		now := time.Now()
		appendMetadataHistory(record, map[string]interface{}{
			"prior_amount": record.Amount.String(),
			"prior_rule":   record.RuleCode,
			"prior_status": record.Status,
			"reason":       strings.TrimSpace(input.Reason),
			"operator_id":  input.OperatorID,
			"adjusted_at":  now.Format(time.RFC3339),
		})
		record.Amount = models.NewMoneyFromDecimal(amount)
		record.Status = constants.CommissionStatusAdjusted
		record.UpdatedAt = now
		return repoTx.Update(record)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(recordID)
}

// CancelByOrder 订单取消/退货后的佣金逆向：未支付未入批记录软删除释放唯一占位
func (s *CommissionService) CancelByOrder(orderID uint, reason string) error {
	if orderID == 0 || s.repo == nil {
		return nil
	}
	reasonText := strings.TrimSpace(reason)
	if reasonText == "" {
		reasonText = "order_canceled"
	}
	return s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		rows, err := repoTx.ListByOrderForUpdate(orderID)
		if err != nil {
			return err
		}
		now := time.Now()
		for i := range rows {
			record := rows[i]
			if record.Status == constants.CommissionStatusPaid || record.WithdrawalBatchID != nil {
				continue
			}
			if constants.IsTerminalCommissionStatus(record.Status) {
				continue
			}
			record.Status = constants.CommissionStatusCanceled
			record.InvalidReason = reasonText
			record.UpdatedAt = now
			if err := repoTx.Update(&record); err != nil {
				return err
			}
			if err := repoTx.SoftDelete(&record); err != nil {
				return err
			}
		}
		return nil
	})
}

// List 查询佣金记录（状态过滤兼容旧版法语状态串）
func (s *CommissionService) List(filter repository.CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	if s.repo == nil {
		return []models.CommissionRecord{}, 0, nil
	}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		normalized := constants.NormalizeCommissionStatus(raw)
		if normalized == "" {
			return nil, 0, ErrCommissionStatusInvalid
		}
		filter.Status = normalized
	}
	return s.repo.List(filter)
}

// GetRecord 查询单条佣金记录
func (s *CommissionService) GetRecord(recordID uint) (*models.CommissionRecord, error) {
	if recordID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	record, err := s.repo.GetByID(recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// GetSummary 查询推广用户佣金汇总
func (s *CommissionService) GetSummary(profileID uint) (*AffiliateCommissionSummary, error) {
	if profileID == 0 || s.repo == nil || s.affiliateRepo == nil {
		return nil, ErrNotFound
	}
	profile, err := s.affiliateRepo.GetProfileByID(profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}

	aggregates, err := s.repo.SummaryByProfile(profileID)
	if err != nil {
		return nil, err
	}
	summary := &AffiliateCommissionSummary{
		AffiliateProfileID: profileID,
		ByStatus:           make(map[string]models.Money, len(aggregates)),
		EligibleUnbound:    models.NewMoneyFromDecimal(decimal.Zero),
		TotalPaid:          models.NewMoneyFromDecimal(decimal.Zero),
	}
	for _, agg := range aggregates {
		summary.ByStatus[agg.Status] = models.NewMoneyFromDecimal(agg.Total)
		if agg.Status == constants.CommissionStatusPaid {
			summary.TotalPaid = models.NewMoneyFromDecimal(agg.Total)
		}
	}
	unbound, err := s.repo.SumByProfile(profileID, []string{constants.CommissionStatusEligible}, true)
	if err != nil {
		return nil, err
	}
	summary.EligibleUnbound = models.NewMoneyFromDecimal(unbound)
	return summary, nil
}

// appendMetadataHistory 将调整前的字段值追加到记录的审计历史
func appendMetadataHistory(record *models.CommissionRecord, entry map[string]interface{}) {
	if record.Metadata == nil {
		record.Metadata = models.JSON{}
	}
	history, _ := record.Metadata["history"].([]interface{})
	record.Metadata["history"] = append(history, entry)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
