// internal/handlers/verification.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

// VerificationHandler exposes the public provenance surface: anyone
// holding a batch number, tracking number, or license key may query it
// without an account.
type VerificationHandler struct {
	provenance   *services.ProvenanceService
	stakeholders *services.StakeholderService
}

func NewVerificationHandler(provenance *services.ProvenanceService, stakeholders *services.StakeholderService) *VerificationHandler {
	return &VerificationHandler{
		provenance:   provenance,
		stakeholders: stakeholders,
	}
}

// GET /verify/products/:id
func (h *VerificationHandler) VerifyProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	result, err := h.provenance.VerifyProductAuthenticity(c.Request.Context(), productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"result": result})
}

// GET /verify/products/:id/supply-chain
func (h *VerificationHandler) VerifySupplyChain(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	result, err := h.provenance.VerifyCompleteSupplyChain(c.Request.Context(), productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"result": result})
}

// GET /verify/products/:id/trace
func (h *VerificationHandler) GetTraceabilityReport(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	report, err := h.provenance.GetTraceabilityReport(c.Request.Context(), productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}

// GET /verify/products/:id/trace/complete
func (h *VerificationHandler) GetCompleteTraceabilityReport(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	report, err := h.provenance.GetCompleteTraceabilityReport(c.Request.Context(), productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}

// GET /verify/license/:key
// Unknown or revoked keys yield valid=false, never an error.
func (h *VerificationHandler) VerifyLicenseKey(c *gin.Context) {
	result, err := h.stakeholders.VerifyLicenseKey(c.Param("key"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"result": result})
}

// GET /verify/summary/:reference
// QR code landing: accepts a batch number or a tracking number.
func (h *VerificationHandler) GetConsumerSummary(c *gin.Context) {
	summary, err := h.provenance.GetConsumerSummary(c.Request.Context(), c.Param("reference"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"summary": summary})
}
