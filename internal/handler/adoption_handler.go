package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
)

// AdoptionHandler handles HTTP requests for adoption applications.
type AdoptionHandler struct {
	service *application.AdoptionService
}

// NewAdoptionHandler creates a new AdoptionHandler.
func NewAdoptionHandler(service *application.AdoptionService) *AdoptionHandler {
	return &AdoptionHandler{service: service}
}

// RegisterRoutes registers all adoption routes on the given router group.
func (h *AdoptionHandler) RegisterRoutes(r *gin.RouterGroup, resolver middleware.ActorResolver) {
	adoptions := r.Group("/api/v1/adoptions")
	adoptions.Use(middleware.AuthMiddleware(resolver))
	{
		adoptions.GET("/mine", h.ListMine)
		adoptions.GET("/:id", h.GetAdoption)
		adoptions.POST("/:id/cancel", h.Cancel)
		adoptions.POST("/:id/approve", h.Approve)
	}
}

// ListMine handles GET /api/v1/adoptions/mine.
func (h *AdoptionHandler) ListMine(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	result, err := h.service.ListMyAdoptions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetAdoption handles GET /api/v1/adoptions/:id.
func (h *AdoptionHandler) GetAdoption(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	adoptionID, ok := parseID(c, "adoption")
	if !ok {
		return
	}

	result, err := h.service.GetAdoption(c.Request.Context(), actor, adoptionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Cancel handles POST /api/v1/adoptions/:id/cancel.
func (h *AdoptionHandler) Cancel(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	adoptionID, ok := parseID(c, "adoption")
	if !ok {
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), actor, adoptionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Approve handles POST /api/v1/adoptions/:id/approve.
func (h *AdoptionHandler) Approve(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	adoptionID, ok := parseID(c, "adoption")
	if !ok {
		return
	}

	result, err := h.service.Approve(c.Request.Context(), actor, adoptionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
