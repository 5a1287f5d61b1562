package pagomovil

import (
	auditRepository "storefront/internal/domain/audit/repository"
	auditService "storefront/internal/domain/audit/service"
	orderRepository "storefront/internal/domain/order/repository"
	orderService "storefront/internal/domain/order/service"
	"storefront/internal/domain/pagomovil/bank"
	"storefront/internal/domain/pagomovil/handler"
	"storefront/internal/domain/pagomovil/repository"
	"storefront/internal/domain/pagomovil/service"
	walletRepository "storefront/internal/domain/wallet/repository"
	walletService "storefront/internal/domain/wallet/service"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// PagoMovilModule 转账核验模块
type PagoMovilModule struct{}

func init() {
	registry.Register(&PagoMovilModule{})
}

func (m *PagoMovilModule) Name() string {
	return "pagomovil"
}

func (m *PagoMovilModule) Priority() int {
	return 30
}

func (m *PagoMovilModule) Init(ctx *registry.ModuleContext) error {
	log := ctx.Logger.Named("pago-movil")

	// 1. 依赖注入
	audit := auditService.NewAuditService(auditRepository.NewAuditRepository(ctx.DB, ctx.SQLX), ctx.Logger)
	ledger := walletService.NewLedgerService(
		walletRepository.NewWalletRepository(ctx.DB),
		ctx.Transactor,
		audit,
		ctx.Notifier,
		ctx.Config,
		ctx.Metrics,
		ctx.Logger.Named("ledger"),
	)
	orders := orderService.NewOwnershipService(orderRepository.NewOrderRepository(ctx.DB))

	repo := repository.NewVerificationRepository(ctx.DB)
	guard := service.NewDuplicateReferenceGuard(repo, audit, ctx.Metrics, log)
	client := bank.NewBDVClient(ctx.Config.Current().Bank, ctx.Metrics, log)
	svc := service.NewVerificationService(repo, guard, client, ledger, orders, audit, ctx.Config, ctx.Metrics, log)
	h := handler.NewPagoMovilHandler(svc)

	// 2. 路由注册
	var limit gin.HandlerFunc
	if ctx.Sensitive != nil {
		limit = ctx.Sensitive.Middleware("pago-movil")
	}
	setupRoutes(ctx.Router, ctx.Auth, limit, h)

	return nil
}

func setupRoutes(r *gin.Engine, auth, limit gin.HandlerFunc, h *handler.PagoMovilHandler) {
	g := r.Group("/pago-movil")
	g.Use(auth)
	{
		if limit != nil {
			g.POST("/verificar", limit, h.Verify)
		} else {
			g.POST("/verificar", h.Verify)
		}
		g.GET("/verificaciones", h.ListVerifications)
	}
}
