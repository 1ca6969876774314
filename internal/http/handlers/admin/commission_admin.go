package admin

import (
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CommissionRejectRequest 佣金驳回请求
type CommissionRejectRequest struct {
	Reason string `json:"reason"`
}

// CommissionAdjustRequest 佣金调整请求
type CommissionAdjustRequest struct {
	Amount     string `json:"amount" binding:"required"`
	Reason     string `json:"reason"`
	OperatorID uint   `json:"operator_id"`
}

// ListCommissions 管理端佣金台账列表（status 参数兼容旧版法语状态串）
func (h *Handler) ListCommissions(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	profileID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_profile_id")), 10, 64)
	orderID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("order_id")), 10, 64)

	rows, total, err := h.CommissionService.List(repository.CommissionListFilter{
		Page:               page,
		PageSize:           pageSize,
		AffiliateProfileID: uint(profileID),
		OrderID:            uint(orderID),
		OrderNo:            strings.TrimSpace(c.Query("order_no")),
		Status:             strings.TrimSpace(c.Query("status")),
		RuleCode:           strings.TrimSpace(c.Query("rule_code")),
	})
	if err != nil {
		respondServiceError(c, err, "commission list failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetCommission 管理端佣金详情
func (h *Handler) GetCommission(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid commission id", nil)
		return
	}
	record, err := h.CommissionService.GetRecord(uint(id))
	if err != nil {
		respondServiceError(c, err, "commission fetch failed")
		return
	}
	response.Success(c, record)
}

// ApproveCommission 管理端批准佣金记录
func (h *Handler) ApproveCommission(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid commission id", nil)
		return
	}
	record, err := h.CommissionService.Approve(uint(id))
	if err != nil {
		respondServiceError(c, err, "commission approve failed")
		return
	}
	requestLog(c).Infow("admin_commission_approved", "record_id", record.ID)
	response.Success(c, record)
}

// RejectCommission 管理端驳回佣金记录
func (h *Handler) RejectCommission(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid commission id", nil)
		return
	}
	var req CommissionRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	record, err := h.CommissionService.Reject(uint(id), req.Reason)
	if err != nil {
		respondServiceError(c, err, "commission reject failed")
		return
	}
	requestLog(c).Infow("admin_commission_rejected", "record_id", record.ID)
	response.Success(c, record)
}

// AdjustCommission 管理端手工调整佣金金额
func (h *Handler) AdjustCommission(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid commission id", nil)
		return
	}
	var req CommissionAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid amount", nil)
		return
	}
	record, err := h.CommissionService.Adjust(uint(id), service.CommissionAdjustInput{
		Amount:     amount,
		Reason:     req.Reason,
		OperatorID: req.OperatorID,
	})
	if err != nil {
		respondServiceError(c, err, "commission adjust failed")
		return
	}
	requestLog(c).Infow("admin_commission_adjusted",
		"record_id", record.ID,
		"amount", record.Amount.String(),
	)
	response.Success(c, record)
}
