// internal/handlers/auth_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agritrace/agritrace-backend/internal/config"
	"github.com/agritrace/agritrace-backend/internal/database"
	"github.com/agritrace/agritrace-backend/internal/middleware"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type AuthTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (suite *AuthTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)
	suite.Require().NoError(database.RunMigrations(db))
	suite.db = db

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 1},
	}
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	notifications := services.NewNotificationService(db, cfg)
	stakeholders := services.NewStakeholderService(db, notifications)
	authHandler := NewAuthHandler(stakeholders, cfg)

	suite.router = gin.New()
	auth := suite.router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
	}
}

func (suite *AuthTestSuite) postJSON(path string, body map[string]interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AuthTestSuite) TestConsumerRegistration() {
	w := suite.postJSON("/auth/register", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "TestPass123",
		"name":     "Test Buyer",
	})

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.NotEmpty(suite.T(), data["token"])

	// Duplicate identity is a conflict.
	w = suite.postJSON("/auth/register", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "TestPass123",
		"name":     "Test Buyer",
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

func (suite *AuthTestSuite) TestWeakPasswordRejected() {
	w := suite.postJSON("/auth/register", map[string]interface{}{
		"email":    "weak@example.com",
		"password": "short",
		"name":     "Weak Password",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *AuthTestSuite) TestLoginAndProfile() {
	suite.postJSON("/auth/register", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "TestPass123",
		"name":     "Test Buyer",
	})

	w := suite.postJSON("/auth/login", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "TestPass123",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	token := response["data"].(map[string]interface{})["token"].(string)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	// Wrong password gets a 401.
	w = suite.postJSON("/auth/login", map[string]interface{}{
		"email":    "buyer@example.com",
		"password": "WrongPass123",
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	// Missing token gets a 401.
	req, _ = http.NewRequest("GET", "/auth/me", nil)
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
