package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role 是调用方的静态角色，由前置网关通过 X-Role 头传入。
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Permission 是端点要求的能力标记。
type Permission string

const (
	PermDesign Permission = "design"
	PermPrint  Permission = "print"
	PermView   Permission = "view"
)

// rolePermissions 是唯一的权限模型：角色到能力集合的静态映射。
var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin:  {PermDesign: true, PermPrint: true, PermView: true},
	RoleViewer: {PermView: true},
}

const (
	roleKey = "role"
	// RoleHeader 由前置网关写入。
	RoleHeader = "X-Role"
)

// Can reports whether the role holds the permission.
func Can(role Role, perm Permission) bool {
	return rolePermissions[role][perm]
}

// RoleMiddleware 解析 X-Role 头；缺失时按 viewer 处理，未知角色直接拒绝。
func RoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(strings.ToLower(strings.TrimSpace(c.GetHeader(RoleHeader))))
		if role == "" {
			role = RoleViewer
		}
		if _, ok := rolePermissions[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown role"})
			return
		}
		c.Set(roleKey, role)
		c.Next()
	}
}

// RequirePermission 拒绝不具备 perm 的请求。
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		if !ok || !Can(role, perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// RoleFromContext 返回 RoleMiddleware 写入的角色。
func RoleFromContext(c *gin.Context) (Role, bool) {
	value, ok := c.Get(roleKey)
	if !ok {
		return "", false
	}
	role, ok := value.(Role)
	return role, ok
}
