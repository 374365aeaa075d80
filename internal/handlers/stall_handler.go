package handlers

import (
	"context"
	"net/http"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StallAPI is implemented by services.StallService
type StallAPI interface {
	ListEvents(ctx context.Context, search string) ([]models.EventListItem, error)
	GetEventDetails(ctx context.Context, id uuid.UUID) (*models.EventDetails, error)
	CreateEvent(ctx context.Context, ownerID uuid.UUID, req *models.CreateEventRequest) (*models.Event, []models.Stall, error)
	AddSlot(ctx context.Context, caller services.Caller, eventID uuid.UUID, req *models.AddSlotRequest) (*models.Stall, error)
	ListOwnerEvents(ctx context.Context, ownerID uuid.UUID) ([]models.EventListItem, error)
	ListOwnerStalls(ctx context.Context, ownerID uuid.UUID) ([]models.Stall, error)
	ListAllStalls(ctx context.Context) ([]models.Stall, error)
	CreateStall(ctx context.Context, ownerID uuid.UUID, req *models.StallRequest) (*models.Stall, error)
	UpdateStall(ctx context.Context, caller services.Caller, id uuid.UUID, req *models.StallRequest) (*models.Stall, error)
	DeleteStall(ctx context.Context, caller services.Caller, id uuid.UUID) error
}

// EventReportAPI is implemented by services.ReportService
type EventReportAPI interface {
	OwnerEventDetails(ctx context.Context, caller services.Caller, eventID uuid.UUID) (*models.OwnerEventDetails, error)
}

// StallHandler serves the public event catalog and owner inventory management
type StallHandler struct {
	stalls  StallAPI
	reports EventReportAPI
	logger  *logrus.Logger
}

// NewStallHandler creates a new StallHandler
func NewStallHandler(stalls StallAPI, reports EventReportAPI, logger *logrus.Logger) *StallHandler {
	return &StallHandler{stalls: stalls, reports: reports, logger: logger}
}

// ListEvents handles GET /api/v1/events
// @Summary Browse events
// @Tags Events
// @Produce json
// @Param search query string false "Filter by name or location"
// @Success 200 {array} models.EventListItem
// @Router /events [get]
func (h *StallHandler) ListEvents(c *gin.Context) {
	events, err := h.stalls.ListEvents(c.Request.Context(), c.Query("search"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// GetEvent handles GET /api/v1/events/:id
func (h *StallHandler) GetEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	details, err := h.stalls.GetEventDetails(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// ListOwnerEvents handles GET /api/v1/owner/events
func (h *StallHandler) ListOwnerEvents(c *gin.Context) {
	events, err := h.stalls.ListOwnerEvents(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// CreateEvent handles POST /api/v1/owner/events
// @Summary Create an event with generated slots
// @Tags Owner
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateEventRequest true "Event"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} ErrorResponse
// @Router /owner/events [post]
func (h *StallHandler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	owner := caller(c)
	event, slots, err := h.stalls.CreateEvent(c.Request.Context(), owner.ID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"owner_id": owner.ID,
		"slots":    len(slots),
	}).Info("Event created")

	c.JSON(http.StatusCreated, gin.H{"event": event, "slots": slots})
}

// GetOwnerEvent handles GET /api/v1/owner/events/:id
func (h *StallHandler) GetOwnerEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	details, err := h.reports.OwnerEventDetails(c.Request.Context(), caller(c), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// AddSlot handles POST /api/v1/owner/events/:id/slots
func (h *StallHandler) AddSlot(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.AddSlotRequest
	if !bindJSON(c, &req) {
		return
	}

	slot, err := h.stalls.AddSlot(c.Request.Context(), caller(c), id, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// ListOwnerStalls handles GET /api/v1/owner/stalls
func (h *StallHandler) ListOwnerStalls(c *gin.Context) {
	stalls, err := h.stalls.ListOwnerStalls(c.Request.Context(), caller(c).ID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stalls": stalls, "total": len(stalls)})
}

// ListAllStalls handles GET /api/v1/admin/stalls
func (h *StallHandler) ListAllStalls(c *gin.Context) {
	stalls, err := h.stalls.ListAllStalls(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stalls": stalls, "total": len(stalls)})
}

// CreateStall handles POST /api/v1/admin/stalls. Without owner_id the stall
// belongs to the admin creating it.
func (h *StallHandler) CreateStall(c *gin.Context) {
	var req models.StallRequest
	if !bindJSON(c, &req) {
		return
	}

	ownerID := caller(c).ID
	if req.OwnerID != nil {
		ownerID = *req.OwnerID
	}
	stall, err := h.stalls.CreateStall(c.Request.Context(), ownerID, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, stall)
}

// UpdateStall handles PUT on /owner/stalls/:id and /admin/stalls/:id
func (h *StallHandler) UpdateStall(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.StallRequest
	if !bindJSON(c, &req) {
		return
	}

	stall, err := h.stalls.UpdateStall(c.Request.Context(), caller(c), id, &req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stall)
}

// DeleteStall handles DELETE on /owner/stalls/:id and /admin/stalls/:id
func (h *StallHandler) DeleteStall(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.stalls.DeleteStall(c.Request.Context(), caller(c), id); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Stall deleted"})
}
