package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// search runs a catalog title search
// GET /api/search?q=
func (s *Server) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		errorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	items, err := s.provider.Search(c.Request.Context(), query)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": items})
}

// recentlyAired returns one page of the recently-aired listing
// GET /api/airing?page=
func (s *Server) recentlyAired(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errorResponse(c, http.StatusBadRequest, "Invalid page parameter")
			return
		}
		page = n
	}

	episodes, err := s.provider.RecentlyAired(c.Request.Context(), page)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"page": page, "episodes": episodes})
}

// tracked returns the currently-airing shows on the configured watch list
// GET /api/tracked
func (s *Server) tracked(c *gin.Context) {
	if s.tracker == nil {
		errorResponse(c, http.StatusServiceUnavailable, "No tracking account configured")
		return
	}

	shows, err := s.tracker.CurrentlyAiringTracked(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"tracked": shows})
}
