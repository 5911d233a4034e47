package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hoshiko-tv/hoshiko/internal/provider"
)

// countEpisodes returns the number of listed episodes for a show page
// GET /api/episodes/count?url=
func (s *Server) countEpisodes(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		errorResponse(c, http.StatusBadRequest, "Query parameter 'url' is required")
		return
	}

	count, err := s.provider.CountEpisodes(c.Request.Context(), pageURL)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// episodeStreams resolves playable streams for a range of episodes. The
// response is assembled in full before it is written; resolution order
// within the range is not part of the contract.
// GET /api/episodes/streams?url=&start=&end=
func (s *Server) episodeStreams(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		errorResponse(c, http.StatusBadRequest, "Query parameter 'url' is required")
		return
	}

	r := provider.All()
	if raw := c.Query("start"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "Invalid start parameter")
			return
		}
		r.Start = n
	}
	if raw := c.Query("end"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "Invalid end parameter")
			return
		}
		r.End = n
	}

	streams, err := s.provider.StreamsForRange(c.Request.Context(), pageURL, r)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	collected := []provider.VideoStream{}
	for stream := range streams {
		collected = append(collected, stream)
	}

	c.JSON(http.StatusOK, gin.H{"streams": collected})
}
