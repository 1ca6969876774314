package service

import (
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawalService 提现聚合业务服务
type WithdrawalService struct {
	repo           repository.WithdrawalRepository
	commissionRepo repository.CommissionRepository
	affiliateRepo  repository.AffiliateRepository
	settings       CommissionSettings
}

// NewWithdrawalService 创建提现聚合服务
func NewWithdrawalService(
	repo repository.WithdrawalRepository,
	commissionRepo repository.CommissionRepository,
	affiliateRepo repository.AffiliateRepository,
	settings CommissionSettings,
) *WithdrawalService {
	return &WithdrawalService{
		repo:           repo,
		commissionRepo: commissionRepo,
		affiliateRepo:  affiliateRepo,
		settings:       settings,
	}
}

// RequestWithdrawal 将推广用户全部可提现且未入批的佣金聚合为一个提现批次。
// 不变式：批次金额恒等于批次项金额之和；入批记录进入 approved 并绑定批次。
func (s *WithdrawalService) RequestWithdrawal(profileID uint) (*models.WithdrawalBatch, error) {
	if profileID == 0 || s.repo == nil || s.commissionRepo == nil {
		return nil, ErrNotFound
	}
	profile, err := s.affiliateRepo.GetProfileByID(profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(profile.Status) != constants.AffiliateProfileStatusActive {
		return nil, ErrAffiliateDisabled
	}

	var createdID uint
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		commissionTx := s.commissionRepo.WithTx(tx)

		rows, err := commissionTx.ListEligibleUnboundForUpdate(profileID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrWithdrawalNoEligible
		}

		ids := make([]uint, 0, len(rows))
		items := make([]models.WithdrawalBatchItem, 0, len(rows))
		sum := decimal.Zero
		for _, row := range rows {
			sum = sum.Add(row.Amount.Decimal).Round(2)
			ids = append(ids, row.ID)
			items = append(items, models.WithdrawalBatchItem{
				CommissionRecordID: row.ID,
				Amount:             row.Amount,
			})
		}
		if !s.settings.MinWithdrawAmount.IsZero() && sum.LessThan(s.settings.MinWithdrawAmount) {
			return ErrWithdrawalBelowMinimum
		}
		total := models.NewMoneyFromDecimal(sum)

		now := time.Now()
		batch := &models.WithdrawalBatch{
			BatchNo:            generateBatchNo(),
			AffiliateProfileID: profileID,
			Amount:             total,
			Status:             constants.WithdrawalStatusPendingReview,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := repoTx.CreateBatch(batch); err != nil {
			return err
		}
		for i := range items {
			items[i].WithdrawalBatchID = batch.ID
			items[i].CreatedAt = now
		}
		if err := repoTx.CreateItems(items); err != nil {
			return err
		}
		if err := commissionTx.BatchUpdate(ids, map[string]interface{}{
			"withdrawal_batch_id": batch.ID,
			"status":              constants.CommissionStatusApproved,
			"updated_at":          now,
		}); err != nil {
			return err
		}

		// 创建即校验金额不变式，聚合写入异常直接回滚。
		itemSum, err := repoTx.SumItemAmounts(batch.ID)
		if err != nil {
			return err
		}
		if !itemSum.Equal(batch.Amount.Decimal.Round(2)) {
			return ErrAggregationMismatch
		}
		createdID = batch.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("withdrawal_batch_created",
		"affiliate_profile_id", profileID,
		"batch_id", createdID,
	)
	return s.repo.GetBatchByID(createdID)
}

// ReviewBatch 管理端审核提现批次。
// pay：批次转已支付，关联佣金记录进入终态 paid 并写入 paid_withdrawal_id；
// reject：批次驳回，关联佣金记录解绑回到 eligible 可再次入批。
func (s *WithdrawalService) ReviewBatch(adminID, batchID uint, action, rejectReason string) (*models.WithdrawalBatch, error) {
	if batchID == 0 || s.repo == nil || s.commissionRepo == nil {
		return nil, ErrNotFound
	}
	act := strings.ToLower(strings.TrimSpace(action))
	if act != constants.WithdrawalActionReject && act != constants.WithdrawalActionPay {
		return nil, ErrWithdrawalStatusInvalid
	}
	rejectReason = strings.TrimSpace(rejectReason)

	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		commissionTx := s.commissionRepo.WithTx(tx)

		batch, err := repoTx.GetBatchByIDForUpdate(batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return ErrNotFound
		}
		if batch.Status != constants.WithdrawalStatusPendingReview {
			return ErrWithdrawalStatusInvalid
		}

		rows, err := commissionTx.ListByBatchIDForUpdate(batchID)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}

		now := time.Now()
		batch.ProcessedBy = &adminID
		batch.ProcessedAt = &now
		batch.UpdatedAt = now
		if act == constants.WithdrawalActionReject {
			batch.Status = constants.WithdrawalStatusRejected
			batch.RejectReason = rejectReason
			if err := commissionTx.BatchUpdate(ids, map[string]interface{}{
				"withdrawal_batch_id": nil,
				"status":              constants.CommissionStatusEligible,
				"updated_at":          now,
			}); err != nil {
				return err
			}
		} else {
			// 支付前复核金额不变式。
			itemSum, err := repoTx.SumItemAmounts(batchID)
			if err != nil {
				return err
			}
			if !itemSum.Equal(batch.Amount.Decimal.Round(2)) {
				return ErrAggregationMismatch
			}
			batch.Status = constants.WithdrawalStatusPaid
			batch.RejectReason = ""
			if err := commissionTx.BatchUpdate(ids, map[string]interface{}{
				"status":             constants.CommissionStatusPaid,
				"paid_withdrawal_id": batchID,
				"updated_at":         now,
			}); err != nil {
				return err
			}
		}
		return repoTx.UpdateBatch(batch)
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("withdrawal_batch_reviewed",
		"batch_id", batchID,
		"action", act,
		"admin_id", adminID,
	)
	return s.repo.GetBatchByID(batchID)
}

// GetBatch 查询提现批次详情
func (s *WithdrawalService) GetBatch(batchID uint) (*models.WithdrawalBatch, error) {
	if batchID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	batch, err := s.repo.GetBatchByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrNotFound
	}
	return batch, nil
}

// ListBatches 查询提现批次列表
func (s *WithdrawalService) ListBatches(filter repository.WithdrawalListFilter) ([]models.WithdrawalBatch, int64, error) {
	if s.repo == nil {
		return []models.WithdrawalBatch{}, 0, nil
	}
	return s.repo.ListBatches(filter)
}

func generateBatchNo() string {
	return "WB" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:18]
}
