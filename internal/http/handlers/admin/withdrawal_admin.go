package admin

import (
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// WithdrawalReviewRequest 提现批次审核请求
type WithdrawalReviewRequest struct {
	Action       string `json:"action" binding:"required"` // pay / reject
	RejectReason string `json:"reject_reason"`
	OperatorID   uint   `json:"operator_id"`
}

// ListWithdrawals 管理端提现批次列表
func (h *Handler) ListWithdrawals(c *gin.Context) {
	if h.WithdrawalService == nil {
		respondError(c, response.CodeInternal, "withdrawal service unavailable", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	profileID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_profile_id")), 10, 64)

	rows, total, err := h.WithdrawalService.ListBatches(repository.WithdrawalListFilter{
		Page:               page,
		PageSize:           pageSize,
		AffiliateProfileID: uint(profileID),
		Status:             strings.TrimSpace(c.Query("status")),
		BatchNo:            strings.TrimSpace(c.Query("batch_no")),
	})
	if err != nil {
		respondServiceError(c, err, "withdrawal list failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetWithdrawal 管理端提现批次详情
func (h *Handler) GetWithdrawal(c *gin.Context) {
	if h.WithdrawalService == nil {
		respondError(c, response.CodeInternal, "withdrawal service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid withdrawal id", nil)
		return
	}
	batch, err := h.WithdrawalService.GetBatch(uint(id))
	if err != nil {
		respondServiceError(c, err, "withdrawal fetch failed")
		return
	}
	response.Success(c, batch)
}

// ReviewWithdrawal 管理端审核提现批次（pay/reject）
func (h *Handler) ReviewWithdrawal(c *gin.Context) {
	if h.WithdrawalService == nil {
		respondError(c, response.CodeInternal, "withdrawal service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid withdrawal id", nil)
		return
	}
	var req WithdrawalReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	batch, err := h.WithdrawalService.ReviewBatch(req.OperatorID, uint(id), req.Action, req.RejectReason)
	if err != nil {
		respondServiceError(c, err, "withdrawal review failed")
		return
	}
	requestLog(c).Infow("admin_withdrawal_reviewed",
		"batch_id", batch.ID,
		"status", batch.Status,
	)
	response.Success(c, batch)
}
