package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/jobstore"
)

// maxCallbackFileSize bounds the multipart "file" part per spec: 300 MiB.
const maxCallbackFileSize = 300 << 20

// handleWorkerCallback receives video-svc's inbound push completion in
// CompletionModeCallback deployments, grounded on VideoJobRunner's own
// complete/fail transitions (exported as Complete/Fail) so both the poll
// path and this push path share exactly one terminal-transition
// implementation.
func (s *Server) handleWorkerCallback(w http.ResponseWriter, r *http.Request) {
	if !workerTokenValid(r, s.cfg.WorkerCallbackToken) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxCallbackFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "malformed multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	taskID := r.FormValue("task_id")
	status := r.FormValue("status")
	if taskID == "" || status == "" {
		writeAppError(w, apperr.Validation("task_id/status", "both are required"))
		return
	}

	job, err := s.jobs.Get(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	if job.Status.Terminal() {
		// Idempotent per spec: a repeated completed delivery after the
		// job is already terminal returns success without state change.
		writeJSON(w, http.StatusOK, map[string]string{"status": string(job.Status)})
		return
	}

	switch status {
	case "processing":
		progress := 70
		if _, err := s.jobs.Update(r.Context(), taskID, jobstore.Patch{Progress: &progress}); err != nil {
			writeAppError(w, apperr.New(apperr.KindStoreError, err))
			return
		}
	case "failed":
		msg := r.FormValue("error")
		if msg == "" {
			msg = "worker reported failure"
		}
		if s.videoRunner != nil {
			if err := s.videoRunner.Fail(r.Context(), job, apperr.UpstreamRejected("worker-callback", msg)); err != nil {
				writeAppError(w, err)
				return
			}
		}
	case "completed":
		file, _, err := r.FormFile("file")
		if err != nil {
			writeAppError(w, apperr.Validation("file", "required for completed status"))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeAppError(w, apperr.New(apperr.KindStorageUploadFailed, err))
			return
		}
		if s.videoRunner == nil {
			writeError(w, http.StatusInternalServerError, "internal", "video runner not wired")
			return
		}
		if err := s.videoRunner.Complete(r.Context(), job, data); err != nil {
			writeAppError(w, err)
			return
		}
	default:
		writeAppError(w, apperr.Validation("status", "must be one of processing, completed, failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// workerTokenValid accepts the static token via Authorization: Bearer or
// the dedicated x-worker-token header.
func workerTokenValid(r *http.Request, want string) bool {
	if want == "" {
		return false
	}
	if got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "); got == want {
		return true
	}
	return r.Header.Get("x-worker-token") == want
}
