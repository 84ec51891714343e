package api

import (
	"net/http"

	"github.com/seenimoa/cryptodash/internal/config"
)

// handleGetConfig returns the running configuration.
// The upstream API key is excluded via its json:"-" tag.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.cfg,
	})
}

// handleGetConfigKeys returns the status of the upstream API key.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	var status config.KeyStatus
	if s.cfg != nil {
		status = s.cfg.Market.KeyStatus()
	} else {
		status = config.MarketConfig{}.KeyStatus()
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    status,
	})
}
