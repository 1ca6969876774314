package admin

import (
	"errors"

	handlershared "github.com/fenxiao-next/internal/http/handlers/shared"
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

// respondServiceError 将业务错误映射为统一响应
func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "record not found", nil)
	case errors.Is(err, service.ErrCommissionStatusInvalid),
		errors.Is(err, service.ErrWithdrawalStatusInvalid),
		errors.Is(err, service.ErrBackfillModeInvalid),
		errors.Is(err, service.ErrAdjustAmountInvalid):
		respondError(c, response.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrImmutablePaidRecord),
		errors.Is(err, service.ErrCommissionBatchBound),
		errors.Is(err, service.ErrCommissionTerminal),
		errors.Is(err, service.ErrBackfillAlreadyRunning),
		errors.Is(err, service.ErrBackfillNotRunning),
		errors.Is(err, service.ErrAggregationMismatch):
		respondError(c, response.CodeConflict, err.Error(), nil)
	default:
		respondError(c, response.CodeInternal, fallbackMsg, err)
	}
}
