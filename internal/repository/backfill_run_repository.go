package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"

	"gorm.io/gorm"
)

// BackfillRunRepository 回算任务数据访问接口
type BackfillRunRepository interface {
	WithTx(tx *gorm.DB) BackfillRunRepository
	Create(run *models.BackfillRun) error
	Update(run *models.BackfillRun) error
	UpdateProgress(run *models.BackfillRun) (int64, error)
	MarkStopped(id uint, message string, now time.Time) (int64, error)
	GetByID(id uint) (*models.BackfillRun, error)
	GetByRunNo(runNo string) (*models.BackfillRun, error)
	GetRunning() (*models.BackfillRun, error)
	List(filter BackfillRunListFilter) ([]models.BackfillRun, int64, error)
}

// GormBackfillRunRepository GORM 回算任务仓储
type GormBackfillRunRepository struct {
	db *gorm.DB
}

// NewBackfillRunRepository 创建回算任务仓储
func NewBackfillRunRepository(db *gorm.DB) *GormBackfillRunRepository {
	return &GormBackfillRunRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBackfillRunRepository) WithTx(tx *gorm.DB) BackfillRunRepository {
	if tx == nil {
		return r
	}
	return &GormBackfillRunRepository{db: tx}
}

// Create 创建回算任务
func (r *GormBackfillRunRepository) Create(run *models.BackfillRun) error {
	return r.db.Create(run).Error
}

// Update 更新回算任务
func (r *GormBackfillRunRepository) Update(run *models.BackfillRun) error {
	return r.db.Save(run).Error
}

// UpdateProgress 落盘游标与计数列，仅在任务仍为 running 时生效，
// 不触碰 status 列。返回受影响行数，0 表示状态已被并发修改（如停止请求）。
func (r *GormBackfillRunRepository) UpdateProgress(run *models.BackfillRun) (int64, error) {
	result := r.db.Model(&models.BackfillRun{}).
		Where("id = ? AND status = ?", run.ID, constants.BackfillStatusRunning).
		Updates(map[string]interface{}{
			"cursor":            run.Cursor,
			"examined_count":    run.ExaminedCount,
			"adjustments_count": run.AdjustmentsCount,
			"error_count":       run.ErrorCount,
			"total_delta":       run.TotalDelta,
			"accuracy_rate":     run.AccuracyRate,
			"updated_at":        run.UpdatedAt,
		})
	return result.RowsAffected, result.Error
}

// MarkStopped 将运行中的任务标记为停止。返回受影响行数，0 表示任务已不在运行。
func (r *GormBackfillRunRepository) MarkStopped(id uint, message string, now time.Time) (int64, error) {
	result := r.db.Model(&models.BackfillRun{}).
		Where("id = ? AND status = ?", id, constants.BackfillStatusRunning).
		Updates(map[string]interface{}{
			"status":     constants.BackfillStatusStopped,
			"message":    message,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// GetByID 按ID查询回算任务
func (r *GormBackfillRunRepository) GetByID(id uint) (*models.BackfillRun, error) {
	if id == 0 {
		return nil, nil
	}
	var run models.BackfillRun
	if err := r.db.First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// GetByRunNo 按任务编号查询回算任务
func (r *GormBackfillRunRepository) GetByRunNo(runNo string) (*models.BackfillRun, error) {
	normalized := strings.TrimSpace(runNo)
	if normalized == "" {
		return nil, nil
	}
	var run models.BackfillRun
	if err := r.db.Where("run_no = ?", normalized).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// GetRunning 查询运行中的回算任务
func (r *GormBackfillRunRepository) GetRunning() (*models.BackfillRun, error) {
	var run models.BackfillRun
	if err := r.db.Where("status = ?", constants.BackfillStatusRunning).
		Order("id desc").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List 查询回算任务列表
func (r *GormBackfillRunRepository) List(filter BackfillRunListFilter) ([]models.BackfillRun, int64, error) {
	query := r.db.Model(&models.BackfillRun{})
	if mode := strings.TrimSpace(filter.Mode); mode != "" {
		query = query.Where("mode = ?", mode)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.BackfillRun
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
