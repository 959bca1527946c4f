package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/config"
	"github.com/bitfantasy/nimo-scm/internal/database"
	"github.com/bitfantasy/nimo-scm/internal/middleware"
	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	JWTSecret = "nimo-scm-test-secret"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB opens a sqlite database in the test temp dir and migrates all SCM tables.
// Each test gets its own file, removed with the temp dir.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "scm_test.db"),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   "nimo-scm",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Test Admin",
		"admin@test.com",
		[]string{middleware.AdminRole},
		[]string{"*"},
	)
}

// RoleToken returns a token carrying a single business role and no permissions
func RoleToken(userID, role string) string {
	return GenerateTestToken(userID, userID, userID+"@test.com", []string{role}, nil)
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ResponseData returns the "data" object of an envelope, failing the test if absent
func ResponseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	resp := ParseResponse(w)
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object in response, got: %s", w.Body.String())
	}
	return data
}

// SeedLine describes one PO line for SeedPO
type SeedLine struct {
	ItemID  string
	Ordered int64
}

// SeedPO inserts a PO with the given status directly, bypassing the workflow
func SeedPO(t *testing.T, db *gorm.DB, status string, lines ...SeedLine) *entity.PurchaseOrder {
	t.Helper()
	now := time.Now()
	id := uuid.New().String()[:32]
	po := &entity.PurchaseOrder{
		ID:         id,
		PONumber:   "PO-SEED-" + id[:8],
		VendorID:   "vendor-001",
		VendorName: "Test Vendor",
		Status:     status,
		CreatedBy:  "seed",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i, l := range lines {
		po.Lines = append(po.Lines, entity.POLine{
			ID:            uuid.New().String()[:32],
			POID:          id,
			ItemID:        l.ItemID,
			ItemCode:      "CODE-" + l.ItemID,
			ItemName:      "Item " + l.ItemID,
			UOM:           "NOS",
			OrderedQty:    decimal.NewFromInt(l.Ordered),
			Rate:          decimal.NewFromInt(10),
			ReceivedQty:   decimal.Zero,
			DispatchedQty: decimal.Zero,
			SortOrder:     i + 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if err := db.Create(po).Error; err != nil {
		t.Fatalf("Failed to seed PO: %v", err)
	}
	return po
}

// SeedInventory inserts an inventory row with the given available quantity
func SeedInventory(t *testing.T, db *gorm.DB, itemID, storeID, binID string, qty int64) *entity.InventoryItem {
	t.Helper()
	now := time.Now()
	item := &entity.InventoryItem{
		ID:                uuid.New().String()[:32],
		ItemID:            itemID,
		StoreID:           storeID,
		BinID:             binID,
		ItemCode:          "CODE-" + itemID,
		ItemName:          "Item " + itemID,
		UOM:               "NOS",
		QuantityAvailable: decimal.NewFromInt(qty),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to seed inventory: %v", err)
	}
	return item
}
