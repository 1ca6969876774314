package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCommissionOrderDelivered, c.handleOrderDelivered)
	mux.HandleFunc(queue.TaskCommissionBackfillRun, c.handleBackfillRun)
}

func (c *Consumer) handleOrderDelivered(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_delivered_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderDeliveredPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_delivered_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_delivered_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.CommissionService == nil {
		logger.Warnw("worker_order_delivered_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	result, err := c.CommissionService.CalculateForOrder(payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_order_delivered_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderNotDelivered):
			logger.Debugw("worker_order_delivered_skip_not_delivered", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_order_delivered_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	if !result.Success {
		// 计算失败不重试：失败原因已落在结构化结果里，不阻断订单流转。
		logger.Warnw("worker_order_delivered_calc_unsuccessful",
			"order_id", payload.OrderID,
			"message", result.Message,
			"line_error_count", len(result.LineErrors),
		)
	}
	return nil
}

func (c *Consumer) handleBackfillRun(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_backfill_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.BackfillRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_backfill_unmarshal_failed", "error", err)
		return err
	}
	if payload.RunID == 0 {
		logger.Debugw("worker_backfill_skip_invalid_payload", "run_id", payload.RunID)
		return nil
	}
	if c.BackfillService == nil {
		logger.Warnw("worker_backfill_skip_service_nil", "run_id", payload.RunID)
		return nil
	}
	_, err := c.BackfillService.Execute(ctx, payload.RunID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_backfill_skip_run_not_found", "run_id", payload.RunID)
			return nil
		case errors.Is(err, service.ErrBackfillNotRunning):
			logger.Debugw("worker_backfill_skip_not_running", "run_id", payload.RunID)
			return nil
		default:
			logger.Warnw("worker_backfill_failed", "run_id", payload.RunID, "error", err)
			return err
		}
	}
	return nil
}
