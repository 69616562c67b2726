// Package config loads runtime settings for the avatar control-plane
// service from the environment, with typed defaults and validation,
// via a hand-rolled env-var loader rather than a third-party config
// library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CompletionMode selects how VideoJobRunner learns that a video render
// finished: by polling video-svc, or by waiting on the inbound worker
// callback. Exactly one completion source should be active per deployment.
type CompletionMode string

const (
	CompletionModePoll     CompletionMode = "poll"
	CompletionModeCallback CompletionMode = "callback"
)

// Config contains all runtime settings for the service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	Dev              bool

	AllowAnyOrigin bool
	FrontendURL    string

	VoiceServiceWSURL     string
	VoiceServiceSecretKey string
	CoquiXTTSBaseURL      string

	VideoServiceURL    string
	VideoServiceWSURL  string
	VideoServiceAPIKey string

	WorkerCallbackToken string
	CompletionMode      CompletionMode
	APIKeyRateLimit     string // e.g. "60-M"; empty disables per-key rate limiting

	MaxConcurrentJobs int
	QueueSoftBound    int

	LLMAPIKey    string
	LLMBaseURL   string
	LLMModel     string
	SystemPrompt string

	ObjectStoreEndpoint     string
	ObjectStoreAccessKey    string
	ObjectStoreSecretKey    string
	ObjectStoreUseSSL       bool
	ObjectStoreBucket       string
	ObjectStorePublicBaseURL string

	DatabaseURL string

	AudioChunkCapTokens     int
	AudioChunkPacingMS      int
	EstimatedDurationFormula string // loaded from VIDEO_DURATION_FORMULA but not consulted; the runners always use len*0.01

	SessionReadinessTimeoutVoice time.Duration
	SessionReadinessTimeoutVideo time.Duration
	SessionInactivityTimeout     time.Duration

	VoiceRESTTimeout     time.Duration
	VideoEnqueueTimeout  time.Duration
	VideoPollTimeout     time.Duration
	VideoPollWindowFast  time.Duration
	VideoPollWindowHigh  time.Duration
	VideoPollIntervalFast time.Duration
	VideoPollIntervalHigh time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "avatarplatform"),
		AllowAnyOrigin:      false,
		FrontendURL:         envOrDefault("FRONTEND_URL", ""),
		Dev:                 envOrDefault("APP_ENV", "production") == "development",

		VoiceServiceWSURL:     stringsTrimSpace("VOICE_SERVICE_WS_URL"),
		VoiceServiceSecretKey: stringsTrimSpace("VOICE_SERVICE_SECRET_KEY"),
		CoquiXTTSBaseURL:      stringsTrimSpace("COQUI_XTTS_BASE_URL"),

		VideoServiceURL:    stringsTrimSpace("VIDEO_SERVICE_URL"),
		VideoServiceWSURL:  stringsTrimSpace("VIDEO_SERVICE_WS_URL"),
		VideoServiceAPIKey: stringsTrimSpace("VIDEO_SERVICE_API_KEY"),

		WorkerCallbackToken: stringsTrimSpace("WORKER_CALLBACK_TOKEN"),
		CompletionMode:      CompletionMode(envOrDefault("COMPLETION_MODE", "poll")),
		APIKeyRateLimit:     envOrDefault("API_KEY_RATE_LIMIT", "60-M"),

		LLMAPIKey:    stringsTrimSpace("LLM_API_KEY"),
		LLMBaseURL:   stringsTrimSpace("LLM_BASE_URL"),
		LLMModel:     envOrDefault("LLM_MODEL", "gpt-4o-mini"),
		SystemPrompt: envOrDefault("LLM_SYSTEM_PROMPT", "You are a helpful avatar companion."),

		ObjectStoreEndpoint:  stringsTrimSpace("OBJECT_STORE_ENDPOINT"),
		ObjectStoreAccessKey: stringsTrimSpace("OBJECT_STORE_ACCESS_KEY"),
		ObjectStoreSecretKey: stringsTrimSpace("OBJECT_STORE_SECRET_KEY"),
		ObjectStoreBucket:        envOrDefault("OBJECT_STORE_BUCKET", "avatar-media"),
		ObjectStorePublicBaseURL: stringsTrimSpace("OBJECT_STORE_PUBLIC_BASE_URL"),

		DatabaseURL: stringsTrimSpace("DATABASE_URL"),

		AudioChunkCapTokens:      200,
		AudioChunkPacingMS:       3000,
		EstimatedDurationFormula: envOrDefault("VIDEO_DURATION_FORMULA", "len*0.01"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		SessionReadinessTimeoutVoice: 20 * time.Second,
		SessionReadinessTimeoutVideo: 30 * time.Second,

		VoiceRESTTimeout:      60 * time.Second,
		VideoEnqueueTimeout:   30 * time.Second,
		VideoPollTimeout:      30 * time.Second,
		VideoPollWindowFast:   6 * time.Minute,
		VideoPollWindowHigh:   20 * time.Minute,
		VideoPollIntervalFast: 3 * time.Second,
		VideoPollIntervalHigh: 5 * time.Second,

		MaxConcurrentJobs: 1,
		QueueSoftBound:    256,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxConcurrentJobs, err = intFromEnv("MAX_CONCURRENT_JOBS", cfg.MaxConcurrentJobs)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioChunkCapTokens, err = intFromEnv("AUDIO_CHUNK_CAP_TOKENS", cfg.AudioChunkCapTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioChunkPacingMS, err = intFromEnv("AUDIO_CHUNK_PACING_MS", cfg.AudioChunkPacingMS)
	if err != nil {
		return Config{}, err
	}
	cfg.ObjectStoreUseSSL, err = boolFromEnv("OBJECT_STORE_USE_SSL", true)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		return Config{}, fmt.Errorf("MAX_CONCURRENT_JOBS must be positive")
	}
	if cfg.AudioChunkCapTokens <= 0 {
		return Config{}, fmt.Errorf("AUDIO_CHUNK_CAP_TOKENS must be positive")
	}
	if cfg.CompletionMode != CompletionModePoll && cfg.CompletionMode != CompletionModeCallback {
		return Config{}, fmt.Errorf("COMPLETION_MODE must be 'poll' or 'callback'")
	}

	return cfg, nil
}

// AllowedOrigin reports whether origin matches FrontendURL, tolerating a
// trailing slash on either side.
func (c Config) AllowedOrigin(origin string) bool {
	if c.AllowAnyOrigin {
		return true
	}
	if origin == "" {
		return true
	}
	want := strings.TrimSuffix(strings.TrimSpace(c.FrontendURL), "/")
	got := strings.TrimSuffix(strings.TrimSpace(origin), "/")
	if want == "" {
		return false
	}
	return strings.EqualFold(want, got)
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
