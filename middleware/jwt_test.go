package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prfmonitor/config"
	"prfmonitor/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initJWTTestConfig() {
	config.GlobalConfig = &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT:    config.JWTConfig{Secret: "test-jwt-secret-key"},
	}
}

func TestGenerateToken(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()

	InitJWT(config.GlobalConfig)

	token, err := GenerateToken(1, "testuser", models.RoleApprover, 24*time.Hour)
	require.NoError(t, err)
	assert.Greater(t, len(token), 20)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.UserID)
	assert.Equal(t, "testuser", claims.Username)
	assert.Equal(t, models.RoleApprover, claims.Role)
	assert.Equal(t, "prfmonitor", claims.Issuer)
}

func TestParseToken(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()

	InitJWT(config.GlobalConfig)

	token, _ := GenerateToken(100, "admin", models.RoleAdmin, time.Hour)
	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(100), claims.UserID)

	_, err = ParseToken("")
	assert.Error(t, err)
	_, err = ParseToken("not.a.valid.jwt")
	assert.Error(t, err)
	_, err = ParseToken("eyJhbGciOiJmb29iIn0.xxxx.yyyy")
	assert.Error(t, err)

	// signed with another secret
	InitJWT(&config.Config{JWT: config.JWTConfig{Secret: "other"}})
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestGenerateToken_DefaultExpiry(t *testing.T) {
	InitJWT(&config.Config{JWT: config.JWTConfig{Secret: "s"}})
	token, err := GenerateToken(1, "u", models.RoleViewer, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token)
	assert.NoError(t, err)
}

func TestJWTAuth(t *testing.T) {
	initJWTTestConfig()
	defer func() { config.GlobalConfig = nil }()

	InitJWT(config.GlobalConfig)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(JWTAuth())
	router.GET("/protected", func(c *gin.Context) {
		c.String(200, "id:%d role:%s", GetCurrentUserID(c), GetCurrentRole(c))
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := do("")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "401")

	assert.Equal(t, http.StatusUnauthorized, do("Basic xyz").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage").Code)

	token, _ := GenerateToken(42, "user42", models.RoleRequester, time.Hour)
	w = do("Bearer " + token)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "id:42 role:requester", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	InitJWT(&config.Config{JWT: config.JWTConfig{Secret: "role-secret"}})
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(JWTAuth())
	router.POST("/approve", RequireRole(models.RoleAdmin, models.RoleApprover), func(c *gin.Context) {
		c.String(200, "ok")
	})

	call := func(role string) int {
		token, _ := GenerateToken(1, "u", role, time.Hour)
		req := httptest.NewRequest("POST", "/approve", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, 200, call(models.RoleAdmin))
	assert.Equal(t, 200, call(models.RoleApprover))
	assert.Equal(t, http.StatusForbidden, call(models.RoleRequester))
	assert.Equal(t, http.StatusForbidden, call(models.RoleViewer))
}

func TestGetCurrentUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uint(0), GetCurrentUserID(c))
	assert.Equal(t, "", GetCurrentRole(c))

	c.Set("userID", uint(99))
	c.Set("username", "ana")
	assert.Equal(t, uint(99), GetCurrentUserID(c))
	assert.Equal(t, "ana", GetCurrentUsername(c))
}
