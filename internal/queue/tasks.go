package queue

import (
	"encoding/json"

	"github.com/fenxiao-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionOrderDelivered 订单签收佣金计算任务
	TaskCommissionOrderDelivered = constants.TaskCommissionOrderDelivered
	// TaskCommissionBackfillRun 历史佣金回算任务
	TaskCommissionBackfillRun = constants.TaskCommissionBackfillRun
)

// OrderDeliveredPayload 订单签收任务载荷
type OrderDeliveredPayload struct {
	OrderID uint `json:"order_id"`
}

// BackfillRunPayload 回算任务载荷
type BackfillRunPayload struct {
	RunID uint `json:"run_id"`
}

// NewOrderDeliveredTask 创建订单签收佣金计算任务
func NewOrderDeliveredTask(payload OrderDeliveredPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionOrderDelivered, body), nil
}

// NewBackfillRunTask 创建回算任务
func NewBackfillRunTask(payload BackfillRunPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionBackfillRun, body), nil
}
