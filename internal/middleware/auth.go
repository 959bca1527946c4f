package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SCM 业务角色与权限
const (
	AdminRole       = "scm_admin"
	RolePurchaser   = "purchaser"
	RoleQCInspector = "qc_inspector"
	RoleStoreKeeper = "store_keeper"

	PermExport = "scm:export"
	PermAll    = "*"
)

const operatorKey = "scm_operator"

// Claims 统一认证中心签发的令牌
type Claims struct {
	UserID string   `json:"uid"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	Perms  []string `json:"perms"`
	jwt.RegisteredClaims
}

// Operator 当前请求的操作人
type Operator struct {
	ID    string
	Name  string
	Email string
	Roles []string
	Perms []string
}

// IsAdmin 管理员视为拥有全部角色
func (o *Operator) IsAdmin() bool {
	return slices.Contains(o.Roles, AdminRole)
}

// HasRole 满足任一角色即可
func (o *Operator) HasRole(roles ...string) bool {
	if o.IsAdmin() {
		return true
	}
	for _, r := range roles {
		if slices.Contains(o.Roles, r) {
			return true
		}
	}
	return false
}

// Can 是否具备权限，"*" 表示全部
func (o *Operator) Can(perm string) bool {
	return slices.Contains(o.Perms, perm) || slices.Contains(o.Perms, PermAll)
}

// CurrentOperator 取 JWTAuth 解析出的操作人
func CurrentOperator(c *gin.Context) (*Operator, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return nil, false
	}
	op, ok := v.(*Operator)
	return op, ok
}

func deny(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

// bearerToken Authorization 头优先，SSE 连接回退到 ?token=
func bearerToken(c *gin.Context) string {
	if scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && scheme == "Bearer" {
		return token
	}
	return c.Query("token")
}

// JWTAuth 校验令牌并写入操作人；user_id 供幂等键与处理器使用
func JWTAuth(secret string) gin.HandlerFunc {
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			deny(c, http.StatusUnauthorized, 40100, "缺少访问令牌")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, keyFunc, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			deny(c, http.StatusUnauthorized, 40102, "令牌无效或已过期")
			return
		}
		if claims.UserID == "" {
			deny(c, http.StatusUnauthorized, 40103, "令牌缺少用户标识")
			return
		}

		c.Set(operatorKey, &Operator{
			ID:    claims.UserID,
			Name:  claims.Name,
			Email: claims.Email,
			Roles: claims.Roles,
			Perms: claims.Perms,
		})
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// RequireRole 需具备任一角色，scm_admin 放行
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := CurrentOperator(c)
		if !ok {
			deny(c, http.StatusForbidden, 40310, "未识别操作人")
			return
		}
		if !op.HasRole(roles...) {
			deny(c, http.StatusForbidden, 40312, "需要角色: "+strings.Join(roles, "|"))
			return
		}
		c.Next()
	}
}

// RequirePermission 需具备指定权限
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := CurrentOperator(c)
		if !ok {
			deny(c, http.StatusForbidden, 40300, "未识别操作人")
			return
		}
		if !op.Can(perm) {
			deny(c, http.StatusForbidden, 40302, "缺少权限: "+perm)
			return
		}
		c.Next()
	}
}
