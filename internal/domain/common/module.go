package common

import (
	auditRepository "storefront/internal/domain/audit/repository"
	auditService "storefront/internal/domain/audit/service"
	commonHandler "storefront/internal/pkg/common"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CommonModule 健康检查与运行时配置
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	audit := auditService.NewAuditService(auditRepository.NewAuditRepository(ctx.DB, ctx.SQLX), ctx.Logger)
	h := commonHandler.NewSystemHandler(ctx.DB, ctx.Redis, ctx.Config, audit, ctx.Logger.Named("system"))

	setupRoutes(ctx.Router, ctx.Auth, h)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *commonHandler.SystemHandler) {
	r.GET("/health", h.Health)

	admin := r.Group("/admin/settings")
	admin.Use(auth, middleware.RequirePermission(middleware.PermSettingsManage))
	{
		admin.POST("/refresh", h.RefreshSettings)
	}
}
