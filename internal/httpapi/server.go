// Package httpapi exposes the avatar control plane's HTTP and WebSocket
// surface: a chi-based server (middleware stack, origin-allowlist CORS,
// graceful router construction) applied to the generation and mediation
// endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apikey"
	"github.com/avatarplatform/mediator/internal/avatarstore"
	"github.com/avatarplatform/mediator/internal/clients"
	"github.com/avatarplatform/mediator/internal/config"
	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/mediator"
	"github.com/avatarplatform/mediator/internal/observability"
	"github.com/avatarplatform/mediator/internal/quota"
	"github.com/avatarplatform/mediator/internal/runner"
	"github.com/avatarplatform/mediator/internal/scheduler"
	"github.com/avatarplatform/mediator/internal/session"
	"github.com/avatarplatform/mediator/internal/sessionstore"
)

// DBPinger reports database reachability for /health. *pgxpool.Pool
// satisfies this directly.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles Server's collaborators, built once in app.Build.
type Deps struct {
	Config   config.Config
	Log      *zap.Logger
	Metrics  *observability.Metrics
	Jobs     *jobstore.Store
	Avatars  *avatarstore.Store
	Sessions *sessionstore.Store
	Quota       *quota.Gate
	Sched       *scheduler.Scheduler
	Live        *session.Manager
	Mediator    mediator.Deps
	ApiKeys     *apikey.Store
	Limiter     *apikey.Limiter
	Blob        *clients.BlobStore
	DB          DBPinger
	VideoRunner *runner.VideoJobRunner
}

// Server wires the control plane's routes over its collaborators.
type Server struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *observability.Metrics

	jobs     *jobstore.Store
	avatars  *avatarstore.Store
	sessions *sessionstore.Store
	quota    *quota.Gate
	sched    *scheduler.Scheduler

	live         *session.Manager
	mediatorDeps mediator.Deps

	apiKeys *apikey.Store
	limiter *apikey.Limiter

	blob *clients.BlobStore
	db   DBPinger

	videoRunner *runner.VideoJobRunner

	upgrader websocket.Upgrader
}

// New builds a Server from Deps.
func New(d Deps) *Server {
	return &Server{
		cfg:          d.Config,
		log:          d.Log,
		metrics:      d.Metrics,
		jobs:         d.Jobs,
		avatars:      d.Avatars,
		sessions:     d.Sessions,
		quota:        d.Quota,
		sched:        d.Sched,
		live:         d.Live,
		mediatorDeps: d.Mediator,
		apiKeys:      d.ApiKeys,
		limiter:      d.Limiter,
		blob:         d.Blob,
		db:           d.DB,
		videoRunner:  d.VideoRunner,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return d.Config.AllowedOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

// Router builds the chi mux for the whole service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", observability.MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticateKey)
		r.With(s.rateLimit("video-generate")).Post("/video-generation/generate", s.handleVideoGenerate)
		r.With(s.rateLimit("video-status")).Get("/video-generation/status/{taskId}", s.handleVideoStatus)
		r.With(s.rateLimit("video-delete")).Delete("/video-generation/{id}", s.handleDeleteJob(jobKindVideo))

		r.With(s.rateLimit("audio-generate")).Post("/audio-generation/generate", s.handleAudioGenerate)
		r.With(s.rateLimit("audio-status")).Get("/audio-generation/status/{taskId}", s.handleAudioStatus)
		r.With(s.rateLimit("audio-delete")).Delete("/audio-generation/{id}", s.handleDeleteJob(jobKindAudio))
	})

	r.Post("/worker/callback", s.handleWorkerCallback)

	r.Get("/voice-chat", s.handleVoiceChat)
	r.Get("/video-chat", s.handleVideoChat)

	return r
}
