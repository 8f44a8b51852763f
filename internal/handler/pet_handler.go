package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
)

// PetHandler handles HTTP requests for pet listings and the applications
// filed against them.
type PetHandler struct {
	pets      *application.PetService
	adoptions *application.AdoptionService
}

// NewPetHandler creates a new PetHandler.
func NewPetHandler(pets *application.PetService, adoptions *application.AdoptionService) *PetHandler {
	return &PetHandler{pets: pets, adoptions: adoptions}
}

// RegisterRoutes registers all pet routes. Browsing is public.
func (h *PetHandler) RegisterRoutes(r *gin.RouterGroup, resolver middleware.ActorResolver) {
	authMW := middleware.AuthMiddleware(resolver)

	pets := r.Group("/api/v1/pets")
	{
		pets.GET("", h.ListPets)
		pets.GET("/mine", authMW, h.ListMyPets)
		pets.GET("/:id", h.GetPet)
		pets.POST("", authMW, h.CreatePet)
		pets.PATCH("/:id", authMW, h.EditPet)
		pets.POST("/:id/withdraw", authMW, h.WithdrawPet)
		pets.POST("/:id/adoptions", authMW, h.Apply)
		pets.GET("/:id/adoptions", authMW, h.ListPetAdoptions)
	}
}

// CreatePet handles POST /api/v1/pets.
func (h *PetHandler) CreatePet(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var req application.CreatePetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.pets.CreatePet(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListPets handles GET /api/v1/pets, listed pets newest first.
func (h *PetHandler) ListPets(c *gin.Context) {
	page, limit := parsePagination(c)

	pets, total, err := h.pets.ListListedPets(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, pets, total, page, limit)
}

// ListMyPets handles GET /api/v1/pets/mine.
func (h *PetHandler) ListMyPets(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	pets, err := h.pets.ListOwnerPets(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, pets)
}

// GetPet handles GET /api/v1/pets/:id.
func (h *PetHandler) GetPet(c *gin.Context) {
	petID, ok := parseID(c, "pet")
	if !ok {
		return
	}

	result, err := h.pets.GetPet(c.Request.Context(), petID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// EditPet handles PATCH /api/v1/pets/:id.
func (h *PetHandler) EditPet(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	petID, ok := parseID(c, "pet")
	if !ok {
		return
	}

	var patch petDomain.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if patch.IsEmpty() {
		response.BadRequest(c, "no fields to update")
		return
	}

	result, err := h.pets.EditPet(c.Request.Context(), actor, petID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// WithdrawPet handles POST /api/v1/pets/:id/withdraw.
func (h *PetHandler) WithdrawPet(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	petID, ok := parseID(c, "pet")
	if !ok {
		return
	}

	result, err := h.pets.WithdrawPet(c.Request.Context(), actor, petID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Apply handles POST /api/v1/pets/:id/adoptions.
func (h *PetHandler) Apply(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	petID, ok := parseID(c, "pet")
	if !ok {
		return
	}

	var req application.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.adoptions.Apply(c.Request.Context(), actor, petID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListPetAdoptions handles GET /api/v1/pets/:id/adoptions.
func (h *PetHandler) ListPetAdoptions(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	petID, ok := parseID(c, "pet")
	if !ok {
		return
	}

	result, err := h.adoptions.ListPetAdoptions(c.Request.Context(), actor, petID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// parseID reads the :id path parameter, writing a 400 when it is malformed.
func parseID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}
