package audit

import (
	"storefront/internal/domain/audit/handler"
	"storefront/internal/domain/audit/repository"
	"storefront/internal/domain/audit/service"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// AuditModule 审计日志模块
type AuditModule struct{}

func init() {
	registry.Register(&AuditModule{})
}

func (m *AuditModule) Name() string {
	return "audit"
}

func (m *AuditModule) Priority() int {
	return 5
}

func (m *AuditModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	aRepo := repository.NewAuditRepository(ctx.DB, ctx.SQLX)
	aService := service.NewAuditService(aRepo, ctx.Logger)
	aHandler := handler.NewAuditHandler(aService)

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, aHandler)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.AuditHandler) {
	admin := r.Group("/admin")
	admin.Use(auth, middleware.RequirePermission(middleware.PermAuditRead))
	{
		admin.GET("/audit-logs", h.ListAuditLogs)
	}
}
