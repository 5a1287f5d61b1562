package order

import (
	auditRepository "storefront/internal/domain/audit/repository"
	auditService "storefront/internal/domain/audit/service"
	inventoryRepository "storefront/internal/domain/inventory/repository"
	inventoryService "storefront/internal/domain/inventory/service"
	"storefront/internal/domain/order/handler"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/service"
	walletRepository "storefront/internal/domain/wallet/repository"
	walletService "storefront/internal/domain/wallet/service"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 25
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	audit := auditService.NewAuditService(auditRepository.NewAuditRepository(ctx.DB, ctx.SQLX), ctx.Logger)
	stock := inventoryService.NewStockService(inventoryRepository.NewProductRepository(ctx.DB))
	reservations := inventoryService.NewReservationService(
		inventoryRepository.NewReservationRepository(ctx.DB),
		ctx.Config,
		ctx.Metrics,
	)
	ledger := walletService.NewLedgerService(
		walletRepository.NewWalletRepository(ctx.DB),
		ctx.Transactor,
		audit,
		ctx.Notifier,
		ctx.Config,
		ctx.Metrics,
		ctx.Logger.Named("ledger"),
	)
	svc := service.NewOrderService(
		repository.NewOrderRepository(ctx.DB),
		stock,
		reservations,
		ledger,
		ctx.Transactor,
		audit,
		ctx.Notifier,
		ctx.Config,
		ctx.Metrics,
		ctx.Logger.Named("order"),
	)
	h := handler.NewOrderHandler(svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, h)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.OrderHandler) {
	orders := r.Group("/orders")
	orders.Use(auth)
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.GetOrders)
		orders.PATCH("", middleware.RequirePermission(middleware.PermOrdersManage), h.UpdateOrder)
	}
}
