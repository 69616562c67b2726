package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/avatarplatform/mediator/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}

// writeAppError maps an apperr.Kind to its HTTP status and body, per the
// propagation policy: validation/auth are 4xx, quota is 403 with usage
// detail, everything else not found is 404, the rest is 500.
func writeAppError(w http.ResponseWriter, err error) {
	ae, ok := err.(*apperr.Error)
	if !ok {
		writeError(w, http.StatusInternalServerError, string(apperr.KindInternal), err.Error())
		return
	}

	switch ae.Kind {
	case apperr.KindValidationFailed:
		writeError(w, http.StatusBadRequest, string(ae.Kind), ae.Error())
	case apperr.KindUnauthorized, apperr.KindWorkerAuthFailed:
		writeError(w, http.StatusUnauthorized, string(ae.Kind), ae.Error())
	case apperr.KindQuotaExceeded:
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":     string(ae.Kind),
			"used":      ae.Used,
			"limit":     ae.Limit,
			"remaining": ae.Limit - ae.Used,
		})
	case apperr.KindAvatarNotFound:
		writeError(w, http.StatusNotFound, string(ae.Kind), ae.Error())
	case apperr.KindAvatarIncomplete:
		writeError(w, http.StatusBadRequest, string(ae.Kind), ae.Error())
	default:
		writeError(w, http.StatusInternalServerError, string(ae.Kind), ae.Error())
	}
}
