package inventory

import (
	auditRepository "storefront/internal/domain/audit/repository"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/domain/inventory/handler"
	"storefront/internal/domain/inventory/repository"
	"storefront/internal/domain/inventory/service"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// InventoryModule 库存与预留模块
type InventoryModule struct{}

func init() {
	registry.Register(&InventoryModule{})
}

func (m *InventoryModule) Name() string {
	return "inventory"
}

func (m *InventoryModule) Priority() int {
	return 10
}

func (m *InventoryModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	rRepo := repository.NewReservationRepository(ctx.DB)
	rService := service.NewReservationService(rRepo, ctx.Config, ctx.Metrics)
	audit := auditService.NewAuditService(auditRepository.NewAuditRepository(ctx.DB, ctx.SQLX), ctx.Logger)
	rHandler := handler.NewReservationHandler(rService, audit)

	// 2. 后台清理过期预留
	go service.RunReaper(ctx.Ctx, rService, ctx.Config.Current().Store.ReaperInterval, ctx.Logger.Named("reservation-reaper"))

	// 3. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, rHandler)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.ReservationHandler) {
	admin := r.Group("/admin")
	admin.Use(auth, middleware.RequirePermission(middleware.PermInventoryManage))
	{
		admin.DELETE("/reservations", h.ReleaseUserReservations)
	}
}
