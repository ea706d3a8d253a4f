package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/l2collector/addone/collect"
	"github.com/sshcollectorpro/l2collector/addone/collect/platforms/cisco_ios"
	"github.com/sshcollectorpro/l2collector/internal/database"
	"github.com/sshcollectorpro/l2collector/internal/service"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "ok", Data: data})
}

// respondError 按错误类型映射状态码
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, cisco_ios.ErrMalformedVLAN), errors.Is(err, facts.ErrValidation):
		status, code = http.StatusUnprocessableEntity, "INVALID_FACTS"
	case errors.Is(err, service.ErrUnsupportedPlatform), errors.Is(err, collect.ErrResourceNotSupported):
		status, code = http.StatusBadRequest, "UNSUPPORTED"
	case errors.Is(err, service.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "INVALID_PARAMS"
	case errors.Is(err, database.ErrSnapshotNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}
