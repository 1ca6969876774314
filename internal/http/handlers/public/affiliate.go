package public

import (
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// WithdrawalRequest 提现申请请求
type WithdrawalRequest struct {
	AffiliateProfileID uint `json:"affiliate_profile_id" binding:"required"`
}

// GetAffiliateSummary 推广用户佣金汇总
func (h *Handler) GetAffiliateSummary(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	profileID, err := strconv.ParseUint(c.Param("profile_id"), 10, 64)
	if err != nil || profileID == 0 {
		respondError(c, response.CodeBadRequest, "invalid profile id", nil)
		return
	}
	summary, err := h.CommissionService.GetSummary(uint(profileID))
	if err != nil {
		respondServiceError(c, err, "summary fetch failed")
		return
	}
	response.Success(c, summary)
}

// ListAffiliateCommissions 推广用户佣金记录列表
func (h *Handler) ListAffiliateCommissions(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	profileID, err := strconv.ParseUint(c.Param("profile_id"), 10, 64)
	if err != nil || profileID == 0 {
		respondError(c, response.CodeBadRequest, "invalid profile id", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.CommissionService.List(repository.CommissionListFilter{
		Page:               page,
		PageSize:           pageSize,
		AffiliateProfileID: uint(profileID),
		Status:             strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err, "commission list failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// RequestWithdrawal 推广用户发起提现：聚合全部可提现佣金为一个批次
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	if h.WithdrawalService == nil {
		respondError(c, response.CodeInternal, "withdrawal service unavailable", nil)
		return
	}
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	batch, err := h.WithdrawalService.RequestWithdrawal(req.AffiliateProfileID)
	if err != nil {
		respondServiceError(c, err, "withdrawal request failed")
		return
	}
	requestLog(c).Infow("affiliate_withdrawal_requested",
		"affiliate_profile_id", req.AffiliateProfileID,
		"batch_id", batch.ID,
	)
	response.Success(c, batch)
}
