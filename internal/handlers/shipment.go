// internal/handlers/shipment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

type ShipmentHandler struct {
	shipments *services.ShipmentService
}

func NewShipmentHandler(shipments *services.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments}
}

type locationUpdateRequest struct {
	Location string `json:"location" binding:"required"`
	Info     string `json:"info"`
}

type cancelShipmentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// POST /shipments
func (h *ShipmentHandler) Create(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	shipment, err := h.shipments.CreateShipment(actorID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"shipment": shipment})
}

// GET /shipments
func (h *ShipmentHandler) List(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	shipments, total, err := h.shipments.ListShipments(actorID, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(shipments, total, params))
}

// GET /shipments/:id
func (h *ShipmentHandler) Get(c *gin.Context) {
	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	shipment, err := h.shipments.Get(shipmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}

// GET /shipments/:id/history
func (h *ShipmentHandler) GetHistory(c *gin.Context) {
	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	history, err := h.shipments.GetHistory(shipmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"history": history})
}

// PUT /shipments/:id/status
func (h *ShipmentHandler) UpdateStatus(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	var req services.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	shipment, err := h.shipments.UpdateStatus(actorID, shipmentID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}

// PUT /shipments/:id/location
func (h *ShipmentHandler) UpdateLocation(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	var req locationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	update, err := h.shipments.UpdateLocation(actorID, shipmentID, req.Location, req.Info)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"update": update})
}

// POST /shipments/:id/pickup
func (h *ShipmentHandler) Pickup(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	shipment, err := h.shipments.PickupShipment(actorID, shipmentID, c.Query("location"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}

// POST /shipments/:id/deliver
func (h *ShipmentHandler) Deliver(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	shipment, err := h.shipments.MarkDelivered(actorID, shipmentID, c.Query("location"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}

// POST /shipments/:id/confirm
// Receiver-only closure of the custody chain.
func (h *ShipmentHandler) ConfirmDelivery(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	shipment, err := h.shipments.ConfirmDelivery(actorID, shipmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}

// POST /shipments/:id/cancel
func (h *ShipmentHandler) Cancel(c *gin.Context) {
	actorID, ok := utils.GetActorIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	shipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid shipment ID", nil)
		return
	}

	var req cancelShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	shipment, err := h.shipments.Cancel(actorID, shipmentID, req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}

// GET /track/:trackingNumber
// Public tracking lookup, cache-fronted.
func (h *ShipmentHandler) Track(c *gin.Context) {
	shipment, err := h.shipments.TrackByNumber(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"shipment": shipment})
}
