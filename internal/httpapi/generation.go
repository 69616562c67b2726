package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
)

type jobKind int

const (
	jobKindAudio jobKind = iota
	jobKindVideo
)

const maxAudioScriptChars = 1000

type generateVideoRequest struct {
	Text      string `json:"text"`
	AvatarID  string `json:"avatarId"`
	Quality   string `json:"quality"`
	AudioURL  string `json:"audioUrl"`
	InputType string `json:"inputType"`
}

type generateAudioRequest struct {
	Text     string `json:"text"`
	VoiceID  string `json:"voiceId"`
	Language string `json:"language"`
}

type generateResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

type statusResponse struct {
	TaskID       string     `json:"taskId"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	VideoURL     string     `json:"video_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *Server) handleVideoGenerate(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing verified key")
		return
	}

	var req generateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "malformed JSON body")
		return
	}
	if req.AvatarID == "" {
		writeAppError(w, apperr.Validation("avatarId", "required"))
		return
	}
	quality := models.Quality(req.Quality)
	switch quality {
	case models.QualityFast, models.QualityHigh, models.QualityStandard:
	default:
		writeAppError(w, apperr.Validation("quality", "must be one of fast, high, standard"))
		return
	}
	inputMode := models.InputModeScript
	if req.InputType == "audio" {
		inputMode = models.InputModePreRecorded
	}
	if inputMode == models.InputModeScript && req.Text == "" {
		writeAppError(w, apperr.Validation("text", "required for script input"))
		return
	}
	if inputMode == models.InputModePreRecorded && req.AudioURL == "" {
		writeAppError(w, apperr.Validation("audioUrl", "required for audio input"))
		return
	}

	if _, err := s.avatars.Get(r.Context(), req.AvatarID); err != nil {
		writeAppError(w, err)
		return
	}

	if s.quota != nil {
		if err := s.quota.Admit(r.Context(), owner, models.ResourceVideoMinutes, estimateAdmitMinutes(req.Text)); err != nil {
			writeAppError(w, err)
			return
		}
	}

	job, err := s.jobs.Insert(r.Context(), models.GenerationJob{
		OwnerID:    owner,
		AvatarID:   req.AvatarID,
		Kind:       models.JobKindVideo,
		InputMode:  inputMode,
		ScriptText: req.Text,
		SourceAudioURL: req.AudioURL,
		Quality:    quality,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.submitOrFail(w, r, job.ID, models.JobKindVideo)
}

func (s *Server) handleAudioGenerate(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing verified key")
		return
	}

	var req generateAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "malformed JSON body")
		return
	}
	if req.Text == "" {
		writeAppError(w, apperr.Validation("text", "required"))
		return
	}
	if len(req.Text) > maxAudioScriptChars {
		writeAppError(w, apperr.Validation("text", "must be 1000 characters or fewer"))
		return
	}
	if req.VoiceID == "" {
		writeAppError(w, apperr.Validation("voiceId", "required"))
		return
	}

	if _, err := s.avatars.Get(r.Context(), req.VoiceID); err != nil {
		writeAppError(w, err)
		return
	}

	if s.quota != nil {
		if err := s.quota.Admit(r.Context(), owner, models.ResourceAudioMinutes, estimateAdmitMinutes(req.Text)); err != nil {
			writeAppError(w, err)
			return
		}
	}

	job, err := s.jobs.Insert(r.Context(), models.GenerationJob{
		OwnerID:    owner,
		AvatarID:   req.VoiceID,
		Kind:       models.JobKindAudio,
		InputMode:  models.InputModeScript,
		ScriptText: req.Text,
		Language:   req.Language,
		Quality:    models.QualityStandard,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.submitOrFail(w, r, job.ID, models.JobKindAudio)
}

// submitOrFail hands the freshly-queued job to the scheduler. A
// QueueFull submit failure marks the row failed and is surfaced to the
// caller as 503 rather than leaving the row stranded in queued with no
// worker ever picking it up — the caller can retry.
func (s *Server) submitOrFail(w http.ResponseWriter, r *http.Request, jobID string, kind models.JobKind) {
	if err := s.sched.Submit(jobID); err != nil {
		failed := models.JobStatusFailed
		msg := err.Error()
		if _, uerr := s.jobs.Update(r.Context(), jobID, jobstore.Patch{Status: &failed, ErrorMessage: &msg}); uerr != nil {
			s.log.Warn("httpapi: failed to mark unsubmitted job failed", zap.String("job_id", jobID), zap.Error(uerr))
		}
		writeError(w, http.StatusServiceUnavailable, "queue_full", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.JobsSubmitted.WithLabelValues(string(kind)).Inc()
		s.metrics.QueueDepth.Set(float64(s.sched.QueueDepth()))
	}
	writeJSON(w, http.StatusOK, generateResponse{TaskID: jobID, Status: string(models.JobStatusQueued)})
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	s.handleStatus(w, r)
}

func (s *Server) handleAudioStatus(w http.ResponseWriter, r *http.Request) {
	s.handleStatus(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	job, err := s.jobs.Get(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}

	progress := job.Progress
	if progress == 0 {
		progress = defaultProgress(job.Status)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		TaskID:       job.ID,
		Status:       string(job.Status),
		Progress:     progress,
		VideoURL:     job.ResultURL,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
	})
}

func defaultProgress(status models.JobStatus) int {
	switch status {
	case models.JobStatusQueued:
		return 10
	case models.JobStatusProcessing:
		return 50
	case models.JobStatusCompleted:
		return 100
	default:
		return 0
	}
}

func (s *Server) handleDeleteJob(_ jobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing verified key")
			return
		}
		id := chi.URLParam(r, "id")

		job, err := s.jobs.Get(r.Context(), id)
		if err == nil && job.ResultURL != "" && s.blob != nil {
			key := s.blob.KeyFromPublicURL(s.cfg.ObjectStorePublicBaseURL, job.ResultURL)
			if derr := s.blob.Delete(r.Context(), key); derr != nil {
				s.log.Warn("httpapi: blob delete failed on job deletion",
					zap.String("job_id", id), zap.Error(derr))
			}
		}

		if err := s.jobs.DeleteByOwner(r.Context(), owner, id); err != nil {
			writeAppError(w, apperr.New(apperr.KindStoreError, err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// estimateAdmitMinutes is the pre-flight quota estimate used before a job
// exists; the runner's own formula commits the precise figure once the
// text is final.
func estimateAdmitMinutes(text string) float64 {
	minutes := float64(len(text)) * 0.01
	if minutes < 0.5 {
		return 0.5
	}
	return minutes
}
