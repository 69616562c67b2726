package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/mediator"
	"github.com/avatarplatform/mediator/internal/models"
)

func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	s.handleChat(w, r, models.SessionKindVoice)
}

func (s *Server) handleVideoChat(w http.ResponseWriter, r *http.Request) {
	s.handleChat(w, r, models.SessionKindVideo)
}

// handleChat upgrades the connection and hands it to a fresh Mediator,
// per the WebSocket surface: avatarId and token are required; voiceUrl
// and language are optional overrides on top of the avatar's own assets.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, kind models.SessionKind) {
	q := r.URL.Query()
	avatarID := q.Get("avatarId")
	token := q.Get("token")
	if avatarID == "" || token == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "avatarId and token are required")
		return
	}

	avatar, err := s.avatars.Get(r.Context(), avatarID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if kind == models.SessionKindVideo && !avatar.HasImage() {
		writeAppError(w, apperr.AvatarIncomplete("image"))
		return
	}
	if !avatar.HasVoice() {
		writeAppError(w, apperr.AvatarIncomplete("voice"))
		return
	}

	language := q.Get("language")
	if language == "" {
		language = avatar.Language
	}
	voiceCloneURL := q.Get("voiceUrl")
	if voiceCloneURL == "" {
		voiceCloneURL = avatar.VoiceSampleURL
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("httpapi: websocket upgrade failed", zap.Error(err))
		return
	}

	sess := s.live.Create(avatar.OwnerID, avatar.ID, kind)
	if err := s.sessions.OpenSession(r.Context(), sess.ID, avatar.OwnerID, avatar.ID, kind, language); err != nil {
		s.log.Error("httpapi: failed to persist session row", zap.String("session_id", sess.ID), zap.Error(err))
	}

	params := mediator.Params{
		OwnerID:       avatar.OwnerID,
		AvatarID:      avatar.ID,
		Kind:          kind,
		Language:      language,
		VoiceCloneURL: voiceCloneURL,
		ImageURL:      avatar.ImageURL,
	}
	m := mediator.New(s.mediatorDeps, params, conn, sess)
	m.Run(r.Context())
}
