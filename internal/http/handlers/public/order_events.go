package public

import (
	"strconv"
	"time"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/queue"

	"github.com/gin-gonic/gin"
)

// OrderDeliveredRequest 订单签收回调请求
type OrderDeliveredRequest struct {
	DeliveredAt *time.Time `json:"delivered_at"`
}

// OrderDelivered 订单系统签收回调：标记签收并触发整单佣金计算。
// 队列可用时异步计算，否则同步计算并返回结构化结果。
func (h *Handler) OrderDelivered(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "commission service unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid order id", nil)
		return
	}

	var req OrderDeliveredRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	deliveredAt := time.Now()
	if req.DeliveredAt != nil {
		deliveredAt = *req.DeliveredAt
	}

	order, err := h.CommissionService.MarkOrderDelivered(uint(id), deliveredAt)
	if err != nil {
		respondServiceError(c, err, "order delivered failed")
		return
	}

	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueOrderDelivered(queue.OrderDeliveredPayload{OrderID: order.ID}); err != nil {
			respondServiceError(c, err, "delivered task enqueue failed")
			return
		}
		response.Success(c, gin.H{
			"order_id": order.ID,
			"queued":   true,
		})
		return
	}

	result, err := h.CommissionService.CalculateForOrder(order.ID)
	if err != nil {
		respondServiceError(c, err, "commission calculation failed")
		return
	}
	requestLog(c).Infow("hook_order_delivered_calculated",
		"order_id", order.ID,
		"success", result.Success,
	)
	response.Success(c, gin.H{
		"order_id": order.ID,
		"queued":   false,
		"result":   result,
	})
}
