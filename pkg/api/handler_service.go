package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// listServicesHandler handles GET /api/v1/services.
func (s *Server) listServicesHandler(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	svcs, err := s.services.ListServices(c.Request.Context(), includeInactive)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, &ServiceListResponse{Services: svcs})
}

// createServiceHandler handles POST /api/v1/services.
func (s *Server) createServiceHandler(c *gin.Context) {
	var req models.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, err.Error()))
		return
	}
	svc, err := s.services.CreateService(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusCreated, svc)
}

// getServiceHandler handles GET /api/v1/services/:id.
func (s *Server) getServiceHandler(c *gin.Context) {
	svc, err := s.services.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, svc)
}

// updateServiceHandler handles PUT /api/v1/services/:id.
func (s *Server) updateServiceHandler(c *gin.Context) {
	var req models.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, err.Error()))
		return
	}
	svc, err := s.services.UpdateService(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, svc)
}

// deleteServiceHandler handles DELETE /api/v1/services/:id. Services are
// deactivated, never removed.
func (s *Server) deleteServiceHandler(c *gin.Context) {
	if err := s.services.DeactivateService(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
