// internal/handlers/stakeholder.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type StakeholderHandler struct {
	stakeholders *services.StakeholderService
}

func NewStakeholderHandler(stakeholders *services.StakeholderService) *StakeholderHandler {
	return &StakeholderHandler{stakeholders: stakeholders}
}

// POST /stakeholders/requests
// Self-service path for supply chain roles: files a request for admin
// review instead of creating the record directly.
func (h *StakeholderHandler) SubmitRequest(c *gin.Context) {
	var req services.RegisterStakeholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	request, err := h.stakeholders.SubmitRequest(&req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"request": request})
}

// GET /admin/stakeholders/requests
func (h *StakeholderHandler) ListPendingRequests(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	requests, total, err := h.stakeholders.ListPendingRequests(params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}

// POST /admin/stakeholders/requests/:id/approve
func (h *StakeholderHandler) ApproveRequest(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid request ID", nil)
		return
	}

	stakeholder, err := h.stakeholders.ApproveRequest(adminID, requestID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"stakeholder": stakeholder})
}

// POST /admin/stakeholders/requests/:id/reject
func (h *StakeholderHandler) RejectRequest(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid request ID", nil)
		return
	}

	var input services.RejectRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	request, err := h.stakeholders.RejectRequest(adminID, requestID, &input)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"request": request})
}

// POST /admin/stakeholders
// Direct admin registration, bypassing the review queue.
func (h *StakeholderHandler) Register(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.RegisterStakeholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	stakeholder, err := h.stakeholders.Register(adminID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"stakeholder": stakeholder})
}

// GET /stakeholders/:id
func (h *StakeholderHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid stakeholder ID", nil)
		return
	}

	stakeholder, err := h.stakeholders.Get(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"stakeholder": stakeholder})
}

// POST /admin/stakeholders/:id/deactivate
func (h *StakeholderHandler) Deactivate(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid stakeholder ID", nil)
		return
	}

	stakeholder, err := h.stakeholders.Deactivate(adminID, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"stakeholder": stakeholder})
}

// POST /admin/stakeholders/:id/reactivate
func (h *StakeholderHandler) Reactivate(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid stakeholder ID", nil)
		return
	}

	stakeholder, err := h.stakeholders.Reactivate(adminID, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"stakeholder": stakeholder})
}

// POST /admin/stakeholders/:id/regenerate-key
func (h *StakeholderHandler) RegenerateLicenseKey(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid stakeholder ID", nil)
		return
	}

	stakeholder, err := h.stakeholders.RegenerateLicenseKey(adminID, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stakeholder_id": stakeholder.ID,
		"license_key":    stakeholder.LicenseKey,
	})
}

// POST /admin/partnerships
func (h *StakeholderHandler) AddPartnership(c *gin.Context) {
	adminID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.PartnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	partnership, err := h.stakeholders.AddPartnership(adminID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"partnership": partnership})
}

// GET /admin/statistics
func (h *StakeholderHandler) GetStatistics(c *gin.Context) {
	stats, err := h.stakeholders.GetStatistics()
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"statistics": stats})
}
