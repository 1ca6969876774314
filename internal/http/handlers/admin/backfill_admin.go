package admin

import (
	"context"
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// BackfillCreateRequest 创建回算任务请求
type BackfillCreateRequest struct {
	Mode      string `json:"mode" binding:"required"` // dry_run / apply
	ChunkSize int    `json:"chunk_size"`
}

// ListBackfillRuns 管理端回算任务列表
func (h *Handler) ListBackfillRuns(c *gin.Context) {
	if h.BackfillService == nil {
		respondError(c, response.CodeInternal, "backfill service unavailable", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.BackfillService.ListRuns(repository.BackfillRunListFilter{
		Page:     page,
		PageSize: pageSize,
		Mode:     strings.TrimSpace(c.Query("mode")),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err, "backfill list failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetBackfillRun 管理端回算任务详情
func (h *Handler) GetBackfillRun(c *gin.Context) {
	if h.BackfillService == nil {
		respondError(c, response.CodeInternal, "backfill service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid backfill run id", nil)
		return
	}
	run, err := h.BackfillService.GetRun(uint(id))
	if err != nil {
		respondServiceError(c, err, "backfill fetch failed")
		return
	}
	response.Success(c, run)
}

// CreateBackfillRun 管理端发起回算任务。
// 队列可用时任务投递到 worker 执行，否则在后台协程中直接执行。
func (h *Handler) CreateBackfillRun(c *gin.Context) {
	if h.BackfillService == nil {
		respondError(c, response.CodeInternal, "backfill service unavailable", nil)
		return
	}
	var req BackfillCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	run, err := h.BackfillService.StartRun(c.Request.Context(), req.Mode, req.ChunkSize)
	if err != nil {
		respondServiceError(c, err, "backfill start failed")
		return
	}
	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueBackfillRun(queue.BackfillRunPayload{RunID: run.ID}); err != nil {
			respondServiceError(c, err, "backfill enqueue failed")
			return
		}
	} else {
		go func(runID uint) {
			_, _ = h.BackfillService.Execute(context.Background(), runID)
		}(run.ID)
	}
	requestLog(c).Infow("admin_backfill_started",
		"run_id", run.ID,
		"mode", run.Mode,
	)
	response.Success(c, run)
}

// StopBackfillRun 管理端停止运行中的回算任务（当前块处理完后停止）
func (h *Handler) StopBackfillRun(c *gin.Context) {
	if h.BackfillService == nil {
		respondError(c, response.CodeInternal, "backfill service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid backfill run id", nil)
		return
	}
	run, err := h.BackfillService.RequestStop(uint(id))
	if err != nil {
		respondServiceError(c, err, "backfill stop failed")
		return
	}
	requestLog(c).Infow("admin_backfill_stop_requested", "run_id", run.ID)
	response.Success(c, run)
}
