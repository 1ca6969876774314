package service

import (
	"context"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/commission"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const backfillLockKey = "backfill:run_lock"

// BackfillService 历史佣金回算/对账服务。
// 按ID游标分块推进，dry_run 只读出报告，apply 对差异做带审计历史的原地调整。
type BackfillService struct {
	runRepo           repository.BackfillRunRepository
	commissionRepo    repository.CommissionRepository
	orderRepo         repository.OrderRepository
	commissionService *CommissionService
	lock              *cache.RunLock
	settings          CommissionSettings
}

// NewBackfillService 创建回算服务
func NewBackfillService(
	runRepo repository.BackfillRunRepository,
	commissionRepo repository.CommissionRepository,
	orderRepo repository.OrderRepository,
	commissionService *CommissionService,
	settings CommissionSettings,
) *BackfillService {
	return &BackfillService{
		runRepo:           runRepo,
		commissionRepo:    commissionRepo,
		orderRepo:         orderRepo,
		commissionService: commissionService,
		lock:              cache.NewRunLock(backfillLockKey, 6*time.Hour),
		settings:          settings,
	}
}

// BackfillReport 回算报告
type BackfillReport struct {
	Run              *models.BackfillRun `json:"run"`
	ExaminedCount    int64               `json:"examined_count"`
	AdjustmentsCount int64               `json:"adjustments_needed_count"`
	ErrorCount       int64               `json:"error_count"`
	TotalDelta       models.Money        `json:"total_delta"`
	AccuracyRate     float64             `json:"accuracy_rate"`
}

// StartRun 创建回算任务并获取互斥锁（同一时刻仅允许一个运行中的任务）
func (s *BackfillService) StartRun(ctx context.Context, mode string, chunkSize int) (*models.BackfillRun, error) {
	if s.runRepo == nil || s.commissionRepo == nil {
		return nil, ErrNotFound
	}
	mode = strings.TrimSpace(mode)
	if mode != constants.BackfillModeDryRun && mode != constants.BackfillModeApply {
		return nil, ErrBackfillModeInvalid
	}
	if chunkSize <= 0 {
		chunkSize = s.settings.BackfillChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = 200
	}

	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrBackfillAlreadyRunning
	}
	running, err := s.runRepo.GetRunning()
	if err != nil {
		_ = s.lock.Release(ctx)
		return nil, err
	}
	if running != nil {
		_ = s.lock.Release(ctx)
		return nil, ErrBackfillAlreadyRunning
	}

	run := &models.BackfillRun{
		RunNo:     generateBackfillRunNo(),
		Mode:      mode,
		Status:    constants.BackfillStatusRunning,
		ChunkSize: chunkSize,
		StartedAt: time.Now(),
	}
	if err := s.runRepo.Create(run); err != nil {
		_ = s.lock.Release(ctx)
		return nil, err
	}
	logger.Infow("backfill_run_started",
		"run_no", run.RunNo,
		"mode", run.Mode,
		"chunk_size", run.ChunkSize,
	)
	return run, nil
}

// Execute 执行回算任务主循环：逐块处理直到无剩余记录或收到停止请求。
// 每块处理完落盘游标与计数，中断后可从游标续跑。
func (s *BackfillService) Execute(ctx context.Context, runID uint) (*BackfillReport, error) {
	if runID == 0 || s.runRepo == nil {
		return nil, ErrNotFound
	}
	defer func() {
		_ = s.lock.Release(ctx)
	}()

	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	if run.Status != constants.BackfillStatusRunning {
		return nil, ErrBackfillNotRunning
	}

	totalDelta := run.TotalDelta.Decimal
	for {
		if err := ctx.Err(); err != nil {
			return s.finishRun(run, totalDelta, constants.BackfillStatusStopped, "context_canceled")
		}

		// 每块开始前重读任务状态，响应停止请求（停在块边界）。
		current, err := s.runRepo.GetByID(run.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.Status != constants.BackfillStatusRunning {
			return s.finishRun(run, totalDelta, constants.BackfillStatusStopped, "stop_requested")
		}

		chunk, err := s.commissionRepo.ListChunk(run.Cursor, run.ChunkSize, []string{
			constants.CommissionStatusPaid,
			constants.CommissionStatusRejected,
		})
		if err != nil {
			_, _ = s.finishRun(run, totalDelta, constants.BackfillStatusFailed, err.Error())
			return nil, err
		}
		if len(chunk) == 0 {
			return s.finishRun(run, totalDelta, constants.BackfillStatusCompleted, "")
		}

		orderCache := map[uint]*commission.OrderResult{}
		for i := range chunk {
			record := chunk[i]
			run.Cursor = record.ID
			run.ExaminedCount++

			expected, ok, err := s.expectedAmount(&record, orderCache)
			if err != nil {
				run.ErrorCount++
				logger.Warnw("backfill_record_failed",
					"record_id", record.ID,
					"error", err.Error(),
				)
				continue
			}
			if !ok {
				continue
			}
			delta := expected.Sub(record.Amount.Decimal).Round(2)
			if delta.IsZero() {
				continue
			}
			run.AdjustmentsCount++
			totalDelta = totalDelta.Add(delta).Round(2)

			if run.Mode == constants.BackfillModeApply {
				if err := s.applyAdjustment(record.ID, expected); err != nil {
					run.ErrorCount++
					logger.Warnw("backfill_adjust_failed",
						"record_id", record.ID,
						"error", err.Error(),
					)
				}
			}
		}

		run.TotalDelta = models.NewMoneyFromDecimal(totalDelta)
		run.AccuracyRate = accuracyRate(run.ExaminedCount, run.AdjustmentsCount)
		run.UpdatedAt = time.Now()
		// 进度落盘不触碰 status 列，且仅对 running 任务生效；
		// 受影响行数为 0 说明停止请求已落库，停在块边界。
		affected, err := s.runRepo.UpdateProgress(run)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return s.finishRun(run, totalDelta, constants.BackfillStatusStopped, "stop_requested")
		}
		logger.Infow("backfill_chunk_done",
			"run_no", run.RunNo,
			"cursor", run.Cursor,
			"examined", run.ExaminedCount,
			"adjustments", run.AdjustmentsCount,
		)
	}
}

// expectedAmount 重算记录的期望金额。订单找不到或计算失败视为单条错误，
// 行级记录对应行缺失（如行校验失败）时跳过不计入差异。
func (s *BackfillService) expectedAmount(record *models.CommissionRecord, orderCache map[uint]*commission.OrderResult) (decimal.Decimal, bool, error) {
	result, ok := orderCache[record.OrderID]
	if !ok {
		order, err := s.orderRepo.GetByID(record.OrderID)
		if err != nil {
			return decimal.Zero, false, err
		}
		if order == nil {
			return decimal.Zero, false, ErrNotFound
		}
		input, err := s.commissionService.buildOrderInput(order)
		if err != nil {
			return decimal.Zero, false, err
		}
		calcResult, err := s.commissionService.calc.CalculateOrder(input)
		if err != nil {
			return decimal.Zero, false, err
		}
		result = &calcResult
		orderCache[record.OrderID] = result
	}

	if record.OrderLineID == nil {
		if result.OrderAdjustment == nil || result.OrderAdjustment.RuleCode != record.RuleCode {
			return decimal.Zero, false, nil
		}
		return result.OrderAdjustment.Amount, true, nil
	}
	for _, line := range result.Lines {
		if line.LineID == *record.OrderLineID {
			return line.Amount, true, nil
		}
	}
	if lineErr, ok := result.LineErrors[*record.OrderLineID]; ok {
		return decimal.Zero, false, lineErr
	}
	return decimal.Zero, false, nil
}

// applyAdjustment 对单条差异记录做原地调整（独立事务，单条失败不中断整块）
func (s *BackfillService) applyAdjustment(recordID uint, expected decimal.Decimal) error {
	return s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.commissionRepo.WithTx(tx)
		record, err := repoTx.GetByIDForUpdate(recordID)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrNotFound
		}
		_, err = s.commissionService.reconcileExisting(repoTx, record, expected, record.RuleCode, "backfill")
		return err
	})
}

func (s *BackfillService) finishRun(run *models.BackfillRun, totalDelta decimal.Decimal, status, message string) (*BackfillReport, error) {
	now := time.Now()
	run.Status = status
	run.Message = strings.TrimSpace(message)
	run.TotalDelta = models.NewMoneyFromDecimal(totalDelta)
	run.AccuracyRate = accuracyRate(run.ExaminedCount, run.AdjustmentsCount)
	run.FinishedAt = &now
	run.UpdatedAt = now
	if err := s.runRepo.Update(run); err != nil {
		return nil, err
	}
	logger.Infow("backfill_run_finished",
		"run_no", run.RunNo,
		"status", run.Status,
		"examined", run.ExaminedCount,
		"adjustments", run.AdjustmentsCount,
		"total_delta", run.TotalDelta.String(),
		"accuracy_rate", run.AccuracyRate,
	)
	return &BackfillReport{
		Run:              run,
		ExaminedCount:    run.ExaminedCount,
		AdjustmentsCount: run.AdjustmentsCount,
		ErrorCount:       run.ErrorCount,
		TotalDelta:       run.TotalDelta,
		AccuracyRate:     run.AccuracyRate,
	}, nil
}

// RequestStop 请求停止运行中的回算任务（当前块处理完后停止）
func (s *BackfillService) RequestStop(runID uint) (*models.BackfillRun, error) {
	if runID == 0 || s.runRepo == nil {
		return nil, ErrNotFound
	}
	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	if run.Status != constants.BackfillStatusRunning {
		return nil, ErrBackfillNotRunning
	}
	// 列级条件更新，避免覆盖执行协程并发落盘的游标与计数。
	affected, err := s.runRepo.MarkStopped(run.ID, "stop_requested", time.Now())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrBackfillNotRunning
	}
	return s.runRepo.GetByID(run.ID)
}

// GetRun 查询回算任务详情
func (s *BackfillService) GetRun(runID uint) (*models.BackfillRun, error) {
	if runID == 0 || s.runRepo == nil {
		return nil, ErrNotFound
	}
	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// ListRuns 查询回算任务列表
func (s *BackfillService) ListRuns(filter repository.BackfillRunListFilter) ([]models.BackfillRun, int64, error) {
	if s.runRepo == nil {
		return []models.BackfillRun{}, 0, nil
	}
	return s.runRepo.List(filter)
}

func accuracyRate(examined, adjustments int64) float64 {
	if examined <= 0 {
		return 100
	}
	accurate := examined - adjustments
	if accurate < 0 {
		accurate = 0
	}
	return float64(accurate) / float64(examined) * 100
}

func generateBackfillRunNo() string {
	return "BF" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:18]
}
