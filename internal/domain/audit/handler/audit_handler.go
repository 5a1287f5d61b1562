package handler

import (
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/audit/model"
	"storefront/internal/domain/audit/service"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	service service.AuditService
}

func NewAuditHandler(service service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// ListAuditLogs 查询审计日志
// @Summary 查询审计日志
// @Tags admin
// @Security Bearer
// @Param severity query string false "INFO|WARNING|ERROR|CRITICAL"
// @Param action query string false "审计动作"
// @Param actorId query string false "操作人"
// @Param since query string false "RFC3339 起始时间"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response
// @Router /admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	filter := model.AuditFilter{
		Severity: model.Severity(strings.ToUpper(c.Query("severity"))),
		Action:   model.Action(c.Query("action")),
		ActorID:  c.Query("actorId"),
		TargetID: c.Query("targetId"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "since must be RFC3339")
			return
		}
		filter.Since = &t
	}

	result, err := h.service.List(c.Request.Context(), filter, page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
