// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/agritrace/agritrace-backend/internal/config"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type AuthHandler struct {
	stakeholders *services.StakeholderService
	cfg          *config.Config
}

func NewAuthHandler(stakeholders *services.StakeholderService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		stakeholders: stakeholders,
		cfg:          cfg,
	}
}

// POST /auth/register
// Self-service signup is consumer-only. Supply chain roles go through
// the registration request flow.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterConsumerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	consumer, err := h.stakeholders.RegisterConsumer(&req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	token, err := utils.GenerateJWT(consumer.ID, string(consumer.Role), consumer.BusinessName, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to issue token")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"stakeholder": consumer,
		"token":       token,
		"token_type":  "Bearer",
		"expires_in":  h.cfg.JWT.AccessTokenTTL * 3600,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	stakeholder, err := h.stakeholders.Authenticate(&req)
	if err != nil {
		if services.CodeOf(err) == services.CodeUnauthorized {
			utils.UnauthorizedResponse(c, err.Error())
			return
		}
		handleServiceError(c, err)
		return
	}

	token, err := utils.GenerateJWT(stakeholder.ID, string(stakeholder.Role), stakeholder.BusinessName, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to issue token")
		return
	}

	h.stakeholders.TouchActivity(stakeholder.ID)

	utils.SuccessResponse(c, gin.H{
		"stakeholder": stakeholder,
		"token":       token,
		"token_type":  "Bearer",
		"expires_in":  h.cfg.JWT.AccessTokenTTL * 3600,
	})
}

// GET /auth/me
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	stakeholder, err := h.stakeholders.Get(actorID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"stakeholder": stakeholder})
}
