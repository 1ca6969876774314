package models

import (
	"time"

	"gorm.io/gorm"
)

// BackfillRun 佣金回算任务记录
// cursor 记录已处理的最大记录ID，分块推进，失败/中断后可续跑。
type BackfillRun struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                  // 主键
	RunNo            string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"run_no"`   // 任务编号
	Mode             string         `gorm:"type:varchar(20);not null;index" json:"mode"`           // 模式（dry_run/apply）
	Status           string         `gorm:"type:varchar(20);not null;index" json:"status"`         // 任务状态
	ChunkSize        int            `gorm:"not null;default:200" json:"chunk_size"`                // 分块大小
	Cursor           uint           `gorm:"not null;default:0" json:"cursor"`                      // 续跑游标（最后处理的记录ID）
	ExaminedCount    int64          `gorm:"not null;default:0" json:"examined_count"`              // 已检查记录数
	AdjustmentsCount int64          `gorm:"not null;default:0" json:"adjustments_needed_count"`    // 需调整记录数
	ErrorCount       int64          `gorm:"not null;default:0" json:"error_count"`                 // 单条失败数
	TotalDelta       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_delta"` // 差额合计（期望-现值）
	AccuracyRate     float64        `gorm:"not null;default:0" json:"accuracy_rate"`               // 准确率（0-100）
	Message          string         `gorm:"type:varchar(255)" json:"message"`                      // 结果说明
	StartedAt        time.Time      `gorm:"index" json:"started_at"`                               // 开始时间
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`                                 // 结束时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt        time.Time      `json:"updated_at"`                                            // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (BackfillRun) TableName() string {
	return "backfill_runs"
}
