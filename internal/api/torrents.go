package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hoshiko-tv/hoshiko/internal/torrent"
)

// TransferListResponse contains a list of transfers
type TransferListResponse struct {
	Transfers []TransferResponse `json:"transfers"`
}

// TransferResponse contains transfer status information
type TransferResponse struct {
	InfoHash   string  `json:"info_hash"`
	Name       string  `json:"name"`
	SavePath   string  `json:"save_path"`
	State      string  `json:"state"`
	TotalSize  int64   `json:"total_size"`
	Downloaded int64   `json:"downloaded"`
	Progress   float64 `json:"progress"`
	Seeders    int     `json:"seeders"`
	Leechers   int     `json:"leechers"`
}

func statusToResponse(s torrent.Status) TransferResponse {
	return TransferResponse{
		InfoHash:   s.InfoHash,
		Name:       s.Name,
		SavePath:   s.SavePath,
		State:      string(s.State),
		TotalSize:  s.TotalSize,
		Downloaded: s.Downloaded,
		Progress:   s.Progress,
		Seeders:    s.Seeders,
		Leechers:   s.Leechers,
	}
}

// listTransfers returns all transfers known to the engine
// GET /api/torrents
func (s *Server) listTransfers(c *gin.Context) {
	statuses := s.engine.Statuses()

	response := TransferListResponse{
		Transfers: make([]TransferResponse, len(statuses)),
	}
	for i, status := range statuses {
		response.Transfers[i] = statusToResponse(status)
	}

	c.JSON(http.StatusOK, response)
}

// getTransfer returns status of a specific transfer
// GET /api/torrents/:hash
func (s *Server) getTransfer(c *gin.Context) {
	hash := c.Param("hash")

	if _, err := s.engine.Get(hash); err != nil {
		if errors.Is(err, torrent.ErrTransferNotFound) {
			errorResponse(c, http.StatusNotFound, "Transfer not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	for _, status := range s.engine.Statuses() {
		if status.InfoHash == hash {
			c.JSON(http.StatusOK, statusToResponse(status))
			return
		}
	}
	errorResponse(c, http.StatusNotFound, "Transfer not found")
}

// deleteTransfer removes a transfer and forgets its saved spec
// DELETE /api/torrents/:hash
func (s *Server) deleteTransfer(c *gin.Context) {
	hash := c.Param("hash")

	if err := s.engine.Remove(hash); err != nil {
		if errors.Is(err, torrent.ErrTransferNotFound) {
			errorResponse(c, http.StatusNotFound, "Transfer not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("transfer removed via api", "info_hash", hash)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// resumeTransfer re-enables downloading for a reloaded transfer
// POST /api/torrents/:hash/resume
func (s *Server) resumeTransfer(c *gin.Context) {
	hash := c.Param("hash")

	t, err := s.engine.Get(hash)
	if err != nil {
		if errors.Is(err, torrent.ErrTransferNotFound) {
			errorResponse(c, http.StatusNotFound, "Transfer not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.engine.Resume(t); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}
