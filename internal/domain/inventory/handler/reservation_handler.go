package handler

import (
	"net/http"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/domain/inventory/service"
	"storefront/internal/pkg/middleware"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service service.ReservationService
	audit   auditService.AuditService
}

func NewReservationHandler(service service.ReservationService, audit auditService.AuditService) *ReservationHandler {
	return &ReservationHandler{service: service, audit: audit}
}

// ReleaseUserReservations 客服释放某用户的全部库存预留
// @Summary 释放用户库存预留
// @Tags admin
// @Security Bearer
// @Param userId query string true "用户ID"
// @Success 200 {object} response.Response
// @Router /admin/reservations [delete]
func (h *ReservationHandler) ReleaseUserReservations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "userId is required")
		return
	}

	released, err := h.service.ReleaseForUser(c.Request.Context(), nil, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	operator, _ := middleware.CurrentUserID(c)
	_ = h.audit.Record(c.Request.Context(), auditService.Event{
		Action:     auditModel.ActionReservationsReleased,
		Severity:   auditModel.SeverityWarning,
		ActorID:    operator,
		TargetType: "user",
		TargetID:   userID,
		Details:    map[string]interface{}{"released": released},
	})

	response.Success(c, gin.H{"released": released})
}
