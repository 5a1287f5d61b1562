package registry

import (
	"context"
	"sort"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/notify"
	"storefront/pkg/database"
	"storefront/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	// Ctx 进程级 context，后台任务在其取消时退出
	Ctx        context.Context
	DB         *gorm.DB
	SQLX       *sqlx.DB
	Redis      *redis.Client
	Router     *gin.Engine
	Config     config.Provider
	Transactor database.Transactor
	Notifier   notify.Dispatcher
	Metrics    *metrics.MetricsCollector
	Logger     *zap.Logger

	// 路由中间件
	Auth      gin.HandlerFunc
	Sensitive *middleware.SensitiveRateLimiter
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：audit 模块需要先于 wallet、pagomovil 模块初始化
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}

	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() == modules[j].Priority() {
			return modules[i].Name() < modules[j].Name()
		}
		return modules[i].Priority() < modules[j].Priority()
	})

	// 按顺序初始化
	for _, module := range modules {
		ctx.Logger.Info("initializing module", zap.String("module", module.Name()))
		if err := module.Init(ctx); err != nil {
			return err
		}
	}

	return nil
}
