package wallet

import (
	auditRepository "storefront/internal/domain/audit/repository"
	auditService "storefront/internal/domain/audit/service"
	"storefront/internal/domain/wallet/handler"
	"storefront/internal/domain/wallet/repository"
	"storefront/internal/domain/wallet/service"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// WalletModule 钱包模块
type WalletModule struct{}

func init() {
	registry.Register(&WalletModule{})
}

func (m *WalletModule) Name() string {
	return "wallet"
}

func (m *WalletModule) Priority() int {
	return 20
}

func (m *WalletModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	audit := auditService.NewAuditService(auditRepository.NewAuditRepository(ctx.DB, ctx.SQLX), ctx.Logger)
	ledger := service.NewLedgerService(
		repository.NewWalletRepository(ctx.DB),
		ctx.Transactor,
		audit,
		ctx.Notifier,
		ctx.Config,
		ctx.Metrics,
		ctx.Logger.Named("ledger"),
	)
	h := handler.NewWalletHandler(ledger)

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, h)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.WalletHandler) {
	wallet := r.Group("/wallet")
	wallet.Use(auth)
	{
		wallet.GET("/balance", h.GetBalance)
		wallet.GET("/transactions", h.ListTransactions)
		wallet.POST("/recharges", h.CreateRecharge)
	}

	admin := r.Group("/admin/wallet")
	admin.Use(auth, middleware.RequirePermission(middleware.PermWalletManage))
	{
		admin.POST("/transactions/:id/approve", h.ApproveRecharge)
	}
}
