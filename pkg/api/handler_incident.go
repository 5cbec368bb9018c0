package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// listIncidentsHandler handles GET /api/v1/incidents.
func (s *Server) listIncidentsHandler(c *gin.Context) {
	filters := models.IncidentFilters{Limit: 50}

	if v := c.Query("status"); v != "" {
		if !models.IncidentStatus(v).IsValid() {
			abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid status: "+v))
			return
		}
		filters.Status = v
	}
	filters.ServiceName = c.Query("service")
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			abortWithError(c, newHTTPError(http.StatusBadRequest, "limit must be between 1 and 200"))
			return
		}
		filters.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortWithError(c, newHTTPError(http.StatusBadRequest, "offset must be a non-negative integer"))
			return
		}
		filters.Offset = n
	}

	resp, err := s.incidents.List(c.Request.Context(), filters)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getIncidentHandler handles GET /api/v1/incidents/:id.
func (s *Server) getIncidentHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	inc, err := s.incidents.Get(ctx, id)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	events, err := s.incidents.Events(ctx, id)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, &IncidentDetailResponse{Incident: inc, Events: events})
}

// approveFixHandler handles POST /api/v1/incidents/:id/approve.
func (s *Server) approveFixHandler(c *gin.Context) {
	id := c.Param("id")
	pr, err := s.reviews.ApproveFix(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, &ReviewResponse{IncidentID: id, Action: "approved", PullRequest: pr})
}

// rejectFixHandler handles POST /api/v1/incidents/:id/reject.
func (s *Server) rejectFixHandler(c *gin.Context) {
	id := c.Param("id")
	pr, err := s.reviews.RejectFix(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, &ReviewResponse{IncidentID: id, Action: "rejected", PullRequest: pr})
}
