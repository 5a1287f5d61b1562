package handler

import (
	"context"
	"net/http"
	"time"

	auditModel "storefront/internal/domain/audit/model"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SystemHandler 健康检查与运行时配置
type SystemHandler struct {
	db    *gorm.DB
	redis *redis.Client
	cfg   config.Provider
	audit auditService.AuditService
	log   *zap.Logger
}

func NewSystemHandler(db *gorm.DB, rdb *redis.Client, cfg config.Provider, audit auditService.AuditService, log *zap.Logger) *SystemHandler {
	return &SystemHandler{db: db, redis: rdb, cfg: cfg, audit: audit, log: log}
}

// Health 健康检查
// @Summary 健康检查
// @Tags system
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
	code := http.StatusOK

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			h.log.Warn("database health check failed", zap.Error(err))
			status["database"] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	// Redis 不可用时限流回落到本地，不影响整体可用性
	if h.redis != nil {
		status["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}

	c.JSON(code, status)
}

// RefreshSettings 立即重新加载商店参数
// @Summary 刷新商店参数
// @Tags system
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /admin/settings/refresh [post]
func (h *SystemHandler) RefreshSettings(c *gin.Context) {
	if err := h.cfg.Refresh(); err != nil {
		h.log.Error("refresh settings", zap.Error(err))
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "settings are invalid: "+err.Error())
		return
	}

	store := h.cfg.Current().Store
	actorID, _ := middleware.CurrentUserID(c)
	if err := h.audit.Record(c.Request.Context(), auditService.Event{
		Action:     auditModel.ActionSettingsRefreshed,
		Severity:   auditModel.SeverityInfo,
		ActorID:    actorID,
		TargetType: "settings",
		TargetID:   "store",
		Details: map[string]interface{}{
			"min_order_usd":      store.MinOrderUSD.String(),
			"max_order_usd":      store.MaxOrderUSD.String(),
			"reservation_ttl":    store.ReservationTTL.String(),
			"approval_tolerance": store.ApprovalTolerance.String(),
		},
	}); err != nil {
		h.log.Error("record settings audit", zap.Error(err))
	}

	response.Success(c, store)
}
