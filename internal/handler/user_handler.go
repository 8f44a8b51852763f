package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	service *application.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *application.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRoutes registers user routes.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, resolver middleware.ActorResolver) {
	users := r.Group("/api/v1/users")
	users.Use(middleware.AuthMiddleware(resolver))
	users.GET("/me", h.Me)
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	profile, err := h.service.GetProfile(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, profile)
}
