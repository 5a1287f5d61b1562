package middleware

import (
	"strings"

	"storefront/internal/pkg/reqctx"
	"storefront/pkg/apperr"
	"storefront/pkg/response"
	"storefront/pkg/utils"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID      = "userID"
	ContextRole        = "role"
	ContextPermissions = "permissions"
)

// 权限
const (
	PermOrdersManage    = "orders:manage"
	PermInventoryManage = "inventory:manage"
	PermAuditRead       = "audit:read"
	PermSettingsManage  = "settings:manage"
	PermWalletManage    = "wallet:manage"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.FromError(c, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.FromError(c, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(secret, parts[1])
		if err != nil || claims.UserID == "" {
			response.FromError(c, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextPermissions, claims.Permissions)

		meta := reqctx.From(c.Request.Context())
		meta.UserID = claims.UserID
		c.Request = c.Request.WithContext(reqctx.With(c.Request.Context(), meta))

		c.Next()
	}
}

// RequirePermission 要求指定权限，管理员默认拥有全部权限
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(c, perm) {
			response.FromError(c, apperr.Forbidden("permission required: "+perm))
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasPermission 判断当前用户是否拥有权限
func HasPermission(c *gin.Context, perm string) bool {
	if c.GetInt(ContextRole) == utils.RoleAdmin {
		return true
	}
	for _, p := range c.GetStringSlice(ContextPermissions) {
		if p == perm {
			return true
		}
	}
	return false
}

// CurrentUserID 获取当前登录用户 ID (由 AuthMiddleware 设置)
func CurrentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(ContextUserID)
	return uid, uid != ""
}
