// Package app wires all of the service's collaborators into a single
// BuildResult: one function, no DI framework, explicit construction
// order, a single Cleanup closure for shutdown.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apikey"
	"github.com/avatarplatform/mediator/internal/avatarstore"
	"github.com/avatarplatform/mediator/internal/clients"
	"github.com/avatarplatform/mediator/internal/config"
	"github.com/avatarplatform/mediator/internal/db"
	"github.com/avatarplatform/mediator/internal/httpapi"
	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/logging"
	"github.com/avatarplatform/mediator/internal/mediator"
	"github.com/avatarplatform/mediator/internal/observability"
	"github.com/avatarplatform/mediator/internal/quota"
	"github.com/avatarplatform/mediator/internal/reaper"
	"github.com/avatarplatform/mediator/internal/runner"
	"github.com/avatarplatform/mediator/internal/scheduler"
	"github.com/avatarplatform/mediator/internal/session"
	"github.com/avatarplatform/mediator/internal/sessionstore"
	"github.com/avatarplatform/mediator/internal/usage"
)

// BuildResult bundles everything main needs to run and shut down the
// service.
type BuildResult struct {
	Config    config.Config
	Log       *zap.Logger
	API       *httpapi.Server
	Scheduler *scheduler.Scheduler
	Reaper    *reaper.Reaper
	Live      *session.Manager
	Metrics   *observability.Metrics

	// Cleanup releases the DB pool on shutdown (the object store client
	// holds nothing that needs closing). Safe to call once.
	Cleanup func() error
}

// Build constructs the full dependency graph. It does not start any
// background goroutines (scheduler workers, reaper cron, session
// janitor) — the caller starts those once it is ready to serve traffic.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	log, err := logging.New(cfg.Dev)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}

	blob, err := clients.NewBlobStore(clients.BlobConfig{
		Endpoint:  cfg.ObjectStoreEndpoint,
		AccessKey: cfg.ObjectStoreAccessKey,
		SecretKey: cfg.ObjectStoreSecretKey,
		UseSSL:    cfg.ObjectStoreUseSSL,
		Bucket:    cfg.ObjectStoreBucket,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("blob store init failed: %w", err)
	}

	jobs := jobstore.New(pool)
	avatars := avatarstore.New(pool)
	sessions := sessionstore.New(pool)
	accountant := usage.New(pool, log)
	gate := quota.New(accountant)
	apiKeys := apikey.New(pool)

	var limiter *apikey.Limiter
	if rate := strings.TrimSpace(cfg.APIKeyRateLimit); rate != "" {
		limiter, err = apikey.NewLimiter(rate)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("rate limiter init failed: %w", err)
		}
	}

	voiceClient := clients.NewVoiceClient(clients.VoiceConfig{
		RESTBaseURL: cfg.CoquiXTTSBaseURL,
		WSBaseURL:   cfg.VoiceServiceWSURL,
		SecretKey:   cfg.VoiceServiceSecretKey,
		RESTTimeout: cfg.VoiceRESTTimeout,
	})
	videoClient := clients.NewVideoClient(clients.VideoConfig{
		RESTBaseURL:    cfg.VideoServiceURL,
		WSBaseURL:      cfg.VideoServiceWSURL,
		APIKey:         cfg.VideoServiceAPIKey,
		EnqueueTimeout: cfg.VideoEnqueueTimeout,
		PollTimeout:    cfg.VideoPollTimeout,
	})
	llmClient := clients.NewLLMClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)

	audioRunner := &runner.AudioJobRunner{
		Jobs:          jobs,
		Avatars:       avatars,
		Voice:         voiceClient,
		Blob:          blob,
		Usage:         accountant,
		Log:           log,
		Metrics:       metrics,
		ChunkCap:      cfg.AudioChunkCapTokens,
		ChunkPause:    time.Duration(cfg.AudioChunkPacingMS) * time.Millisecond,
		ObjectBaseURL: cfg.ObjectStorePublicBaseURL,
	}
	videoRunner := &runner.VideoJobRunner{
		Jobs:          jobs,
		Avatars:       avatars,
		Voice:         voiceClient,
		Video:         videoClient,
		Blob:          blob,
		Usage:         accountant,
		Log:           log,
		Metrics:       metrics,
		Mode:          cfg.CompletionMode,
		ObjectBaseURL: cfg.ObjectStorePublicBaseURL,
	}

	// One Scheduler, one queue, one MaxConcurrentJobs knob, drains both
	// job kinds via DispatchRunner rather than running two independent
	// pools for a single soft-bound budget.
	dispatch := &runner.DispatchRunner{Jobs: jobs, Audio: audioRunner, Video: videoRunner}
	sched := scheduler.New(dispatch, jobs, log, cfg.MaxConcurrentJobs, cfg.QueueSoftBound)

	reap := reaper.New(jobs, log, metrics, cfg.VideoPollWindowFast, cfg.VideoPollWindowHigh)

	live := session.NewManager(cfg.SessionInactivityTimeout)
	live.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(live.ActiveCount()))
	})

	mediatorDeps := mediator.Deps{
		Sessions:              live,
		Store:                 sessions,
		Usage:                 accountant,
		Voice:                 mediator.WrapVoiceClient(voiceClient),
		Video:                 mediator.WrapVideoClient(videoClient),
		LLM:                   llmClient,
		Log:                   log,
		Metrics:               metrics,
		SystemPrompt:          cfg.SystemPrompt,
		ReadinessTimeoutVoice: cfg.SessionReadinessTimeoutVoice,
		ReadinessTimeoutVideo: cfg.SessionReadinessTimeoutVideo,
	}

	api := httpapi.New(httpapi.Deps{
		Config:      cfg,
		Log:         log,
		Metrics:     metrics,
		Jobs:        jobs,
		Avatars:     avatars,
		Sessions:    sessions,
		Quota:       gate,
		Sched:       sched,
		Live:        live,
		Mediator:    mediatorDeps,
		ApiKeys:     apiKeys,
		Limiter:     limiter,
		Blob:        blob,
		DB:          pool,
		VideoRunner: videoRunner,
	})

	cleanup := func() error {
		pool.Close()
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		Log:       log,
		API:       api,
		Scheduler: sched,
		Reaper:    reap,
		Live:      live,
		Metrics:   metrics,
		Cleanup:   cleanup,
	}, nil
}
