package httpapi

import (
	"context"
	"net/http"
	"time"
)

// handleHealth reports process and dependency health per spec.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"voice_service": "configured",
		"video_service": "configured",
		"database":      "healthy",
	}
	if s.cfg.VoiceServiceWSURL == "" {
		services["voice_service"] = "unconfigured"
	}
	if s.cfg.VideoServiceURL == "" {
		services["video_service"] = "unconfigured"
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			services["database"] = "unhealthy"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"services": services,
	})
}
