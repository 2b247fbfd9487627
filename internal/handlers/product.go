// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/models"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type ProductHandler struct {
	products *services.ProductService
}

func NewProductHandler(products *services.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

type updateStageRequest struct {
	Stage string `json:"stage" binding:"required"`
	Data  string `json:"data" binding:"required"`
}

// POST /products
func (h *ProductHandler) CreateBatch(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	product, err := h.products.CreateBatch(actorID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"product": product})
}

// PUT /products/:id/stage
func (h *ProductHandler) UpdateStage(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	var req updateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	stage, ok := models.ParseStage(req.Stage)
	if !ok {
		utils.BadRequestResponse(c, "Unknown stage "+req.Stage, nil)
		return
	}

	product, err := h.products.UpdateStage(actorID, productID, stage, req.Data)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// GET /products
func (h *ProductHandler) List(c *gin.Context) {
	params := services.ProductSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		ActiveOnly:       c.Query("include_inactive") != "true",
	}

	if owner := c.Query("owner_id"); owner != "" {
		id, err := uuid.Parse(owner)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid owner ID", nil)
			return
		}
		params.OwnerID = &id
	}
	if stageName := c.Query("stage"); stageName != "" {
		stage, ok := models.ParseStage(stageName)
		if !ok {
			utils.BadRequestResponse(c, "Unknown stage "+stageName, nil)
			return
		}
		params.Stage = &stage
	}

	products, total, err := h.products.ListProducts(params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params.PaginationParams))
}

// GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.products.Get(productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// GET /products/batch/:batchNumber
func (h *ProductHandler) GetByBatchNumber(c *gin.Context) {
	product, err := h.products.GetByBatchNumber(c.Param("batchNumber"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// GET /products/:id/journey
func (h *ProductHandler) GetJourney(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	journey, err := h.products.GetJourney(productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"journey": journey})
}

// GET /products/:id/stages/:stage
func (h *ProductHandler) GetStageData(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	stage, ok := models.ParseStage(c.Param("stage"))
	if !ok {
		utils.BadRequestResponse(c, "Unknown stage "+c.Param("stage"), nil)
		return
	}

	record, err := h.products.GetStageData(productID, stage)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"record": record})
}

// GET /products/:id/verify
func (h *ProductHandler) Verify(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	verification, err := h.products.VerifyProduct(productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"verification": verification})
}

// DELETE /products/:id
func (h *ProductHandler) Deactivate(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.products.DeactivateProduct(actorID, productID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}
