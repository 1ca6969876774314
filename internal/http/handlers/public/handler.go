package public

import "github.com/fenxiao-next/internal/provider"

// Handler 对外接口处理器入口（订单系统回调钩子与推广用户侧 API）
type Handler struct {
	*provider.Container
}

// New 创建对外处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
