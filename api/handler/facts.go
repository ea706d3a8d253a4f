package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/l2collector/internal/service"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
)

// FactsService 处理器依赖的服务能力
type FactsService interface {
	Parse(ctx context.Context, req service.ParseRequest) (*facts.Facts, error)
	Gather(ctx context.Context, req service.GatherRequest) (*service.GatherResponse, error)
	Latest(ctx context.Context, deviceIP, resource string) (*service.LatestResult, error)
	GetStats() map[string]interface{}
}

// HealthCheck 依赖组件健康检查
type HealthCheck func(ctx context.Context) error

// FactsHandler 事实采集处理器
type FactsHandler struct {
	svc    FactsService
	checks map[string]HealthCheck
}

// NewFactsHandler 创建处理器；checks 为组件名 -> 检查函数
func NewFactsHandler(svc FactsService, checks map[string]HealthCheck) *FactsHandler {
	return &FactsHandler{svc: svc, checks: checks}
}

// Health 健康检查
// @Router /api/v1/health [get]
func (h *FactsHandler) Health(c *gin.Context) {
	components := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}
	data := gin.H{"components": components, "stats": h.svc.GetStats()}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, SuccessResponse{Code: "SERVICE_UNAVAILABLE", Message: "依赖组件异常", Data: data})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "服务正常", Data: data})
}

// Parse 对提交的配置文本离线生成事实
// @Router /api/v1/facts/parse [post]
func (h *FactsHandler) Parse(c *gin.Context) {
	var req service.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: "请求参数无效: " + err.Error()})
		return
	}
	out, err := h.svc.Parse(c.Request.Context(), req)
	if err != nil {
		logger.WithError(err).WithField("platform", req.Platform).Warn("Parse facts failed")
		respondError(c, err)
		return
	}
	respondOK(c, out)
}

// Gather 批量采集设备事实
// @Router /api/v1/facts/gather [post]
func (h *FactsHandler) Gather(c *gin.Context) {
	var req service.GatherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: "请求参数无效: " + err.Error()})
		return
	}
	resp, err := h.svc.Gather(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp)
}

// Latest 查询设备最新事实
// @Router /api/v1/facts/latest [get]
func (h *FactsHandler) Latest(c *gin.Context) {
	res, err := h.svc.Latest(c.Request.Context(), c.Query("device_ip"), c.Query("resource"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}
