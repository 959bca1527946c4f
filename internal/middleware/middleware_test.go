package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/cache"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func userToken(t *testing.T, uid string, roles ...string) string {
	return signToken(t, jwt.MapClaims{
		"uid":   uid,
		"name":  "tester",
		"roles": roles,
		"perms": []string{"scm:export"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	return r
}

func do(r *gin.Engine, method, path, token string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString("{}"))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter()
	r.GET("/me", JWTAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	w := do(r, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", userToken(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(r, http.MethodGet, "/me?token="+userToken(t, "u2"), "", nil)
	assert.Equal(t, "u2", w.Body.String())
}

func TestJWTAuth_RejectsOtherSigningMethod(t *testing.T) {
	r := newRouter()
	r.GET("/me", JWTAuth(testSecret), func(c *gin.Context) { c.Status(http.StatusOK) })

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"uid": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", raw, nil).Code)

	noUser := signToken(t, jwt.MapClaims{"name": "ghost", "exp": time.Now().Add(time.Hour).Unix()})
	w := do(r, http.MethodGet, "/me", noUser, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40103")
}

func TestOperator_Roles(t *testing.T) {
	keeper := &Operator{ID: "k1", Roles: []string{RoleStoreKeeper}}
	assert.True(t, keeper.HasRole(RoleQCInspector, RoleStoreKeeper))
	assert.False(t, keeper.HasRole(RolePurchaser))
	assert.False(t, keeper.Can(PermExport))

	admin := &Operator{ID: "a1", Roles: []string{AdminRole}, Perms: []string{PermAll}}
	assert.True(t, admin.HasRole(RolePurchaser))
	assert.True(t, admin.Can(PermExport))
}

func TestRequireRole(t *testing.T) {
	r := newRouter()
	r.GET("/store", JWTAuth(testSecret), RequireRole(RoleStoreKeeper, RoleQCInspector), func(c *gin.Context) {
		op, ok := CurrentOperator(c)
		require.True(t, ok)
		c.String(http.StatusOK, op.ID)
	})
	r.GET("/anonymous", RequireRole(RoleStoreKeeper), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/store", userToken(t, "u1", RolePurchaser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "40312")

	w = do(r, http.MethodGet, "/store", userToken(t, "u2", RoleQCInspector), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", w.Body.String())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/store", userToken(t, "u3", AdminRole), nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/anonymous", "", nil).Code)
}

func TestRequirePermission(t *testing.T) {
	r := newRouter()
	r.GET("/export", JWTAuth(testSecret), RequirePermission(PermExport), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", JWTAuth(testSecret), RequirePermission("scm:admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := userToken(t, "u1")
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/export", token, nil).Code)
	w := do(r, http.MethodGet, "/admin", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "40302")
}

func TestLogger_LevelsAndOperator(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newRouter()
	r.Use(Logger(zap.New(core)))
	r.GET("/po/:id", JWTAuth(testSecret), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	token := userToken(t, "buyer-01", RolePurchaser)
	do(r, http.MethodGet, "/po/1", token, nil)
	do(r, http.MethodGet, "/po/missing", token, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "/po/:id", ctx["route"])
	assert.Equal(t, "buyer-01", ctx["operator"])
	assert.NotEmpty(t, ctx["request_id"])
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	r := newRouter()
	calls := 0
	r.POST("/orders", JWTAuth(testSecret), Idempotency(cache.NewMemoryStore(), time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"n": calls})
	})

	token := userToken(t, "u1")
	key := map[string]string{IdempotencyHeader: "abc"}

	w1 := do(r, http.MethodPost, "/orders", token, key)
	w2 := do(r, http.MethodPost, "/orders", token, key)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, "true", w2.Header().Get(ReplayedHeader))

	// 不同用户同一个键互不影响
	do(r, http.MethodPost, "/orders", userToken(t, "u2"), key)
	assert.Equal(t, 2, calls)

	// 无幂等键每次都执行
	do(r, http.MethodPost, "/orders", token, nil)
	assert.Equal(t, 3, calls)
}

func TestIdempotency_ServerErrorNotCached(t *testing.T) {
	r := newRouter()
	calls := 0
	r.POST("/flaky", JWTAuth(testSecret), Idempotency(cache.NewMemoryStore(), time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 50000})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})

	token := userToken(t, "u1")
	key := map[string]string{IdempotencyHeader: "retry-me"}
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/flaky", token, key).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/flaky", token, key).Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_PendingKeyConflicts(t *testing.T) {
	store := cache.NewMemoryStore()
	r := newRouter()
	r.POST("/slow", JWTAuth(testSecret), Idempotency(store, time.Hour), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	require.NoError(t, store.Set(context.Background(), "idem:u1:POST:/slow:k1", []byte(`{"pending":true}`), time.Hour))
	w := do(r, http.MethodPost, "/slow", userToken(t, "u1"), map[string]string{IdempotencyHeader: "k1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	store := cache.NewMemoryStore()
	r := newRouter()
	r.Use(gin.RecoveryWithWriter(io.Discard))
	calls := 0
	r.POST("/receipts", JWTAuth(testSecret), Idempotency(store, time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("db connection reset")
		}
		c.JSON(http.StatusCreated, gin.H{"n": calls})
	})

	token := userToken(t, "u1")
	key := map[string]string{IdempotencyHeader: "k-panic"}
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/receipts", token, key).Code)

	_, found, err := store.Get(context.Background(), "idem:u1:POST:/receipts:k-panic")
	require.NoError(t, err)
	assert.False(t, found)

	w := do(r, http.MethodPost, "/receipts", token, key)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, calls)
}
