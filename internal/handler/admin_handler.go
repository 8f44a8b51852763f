package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
)

// AdminHandler handles admin HTTP requests.
type AdminHandler struct {
	adoptions *application.AdoptionService
	reconcile *application.ReconcileService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adoptions *application.AdoptionService, reconcile *application.ReconcileService) *AdminHandler {
	return &AdminHandler{adoptions: adoptions, reconcile: reconcile}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, resolver middleware.ActorResolver) {
	authMW := middleware.AuthMiddleware(resolver)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/stats/adoptions", h.AdoptionStats)
		admin.POST("/reconcile", h.ReconcileAll)
		admin.POST("/pets/:id/reconcile", h.ReconcilePet)
	}
}

// AdoptionStats handles GET /api/v1/admin/stats/adoptions.
func (h *AdminHandler) AdoptionStats(c *gin.Context) {
	stats, err := h.adoptions.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ReconcileAll handles POST /api/v1/admin/reconcile. Pets that could not be
// reconciled are reported by the joined error.
func (h *AdminHandler) ReconcileAll(c *gin.Context) {
	reports, err := h.reconcile.ReconcileAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
	}

	changed := make([]application.ReconcileReport, 0, len(reports))
	for _, r := range reports {
		if r.Changed() {
			changed = append(changed, r)
		}
	}

	body := gin.H{"checked": len(reports), "changed": changed}
	if err != nil {
		body["errors"] = err.Error()
	}
	response.Success(c, body)
}

// ReconcilePet handles POST /api/v1/admin/pets/:id/reconcile.
func (h *AdminHandler) ReconcilePet(c *gin.Context) {
	petID, ok := parseID(c, "pet")
	if !ok {
		return
	}

	report, err := h.reconcile.ReconcilePet(c.Request.Context(), petID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}
