package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.CompletionMode != CompletionModePoll {
		t.Fatalf("CompletionMode = %q, want %q", cfg.CompletionMode, CompletionModePoll)
	}
	if cfg.MaxConcurrentJobs != 1 {
		t.Fatalf("MaxConcurrentJobs = %d, want 1", cfg.MaxConcurrentJobs)
	}
	if cfg.AudioChunkCapTokens != 200 {
		t.Fatalf("AudioChunkCapTokens = %d, want 200", cfg.AudioChunkCapTokens)
	}
	if cfg.Dev {
		t.Fatalf("Dev = true, want false when APP_ENV is unset")
	}
	if cfg.APIKeyRateLimit != "60-M" {
		t.Fatalf("APIKeyRateLimit = %q, want %q", cfg.APIKeyRateLimit, "60-M")
	}
}

func TestLoadRejectsInvalidCompletionMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COMPLETION_MODE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid COMPLETION_MODE")
	}
}

func TestLoadRejectsNonPositiveMaxConcurrentJobs(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MAX_CONCURRENT_JOBS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for MAX_CONCURRENT_JOBS=0")
	}
}

func TestAllowedOrigin_TrailingSlashTolerant(t *testing.T) {
	cfg := Config{FrontendURL: "https://app.example.com/"}
	if !cfg.AllowedOrigin("https://app.example.com") {
		t.Fatalf("expected origin without trailing slash to match")
	}
	if cfg.AllowedOrigin("https://evil.example.com") {
		t.Fatalf("expected mismatched origin to be rejected")
	}
}

func TestAllowedOrigin_EmptyOriginAllowedForNonBrowserClients(t *testing.T) {
	cfg := Config{FrontendURL: "https://app.example.com"}
	if !cfg.AllowedOrigin("") {
		t.Fatalf("expected empty origin (non-browser client) to be allowed")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"FRONTEND_URL",
		"VOICE_SERVICE_WS_URL",
		"VOICE_SERVICE_SECRET_KEY",
		"COQUI_XTTS_BASE_URL",
		"VIDEO_SERVICE_URL",
		"VIDEO_SERVICE_WS_URL",
		"VIDEO_SERVICE_API_KEY",
		"WORKER_CALLBACK_TOKEN",
		"COMPLETION_MODE",
		"MAX_CONCURRENT_JOBS",
		"LLM_API_KEY",
		"LLM_BASE_URL",
		"LLM_MODEL",
		"LLM_SYSTEM_PROMPT",
		"OBJECT_STORE_ENDPOINT",
		"OBJECT_STORE_ACCESS_KEY",
		"OBJECT_STORE_SECRET_KEY",
		"OBJECT_STORE_BUCKET",
		"OBJECT_STORE_USE_SSL",
		"DATABASE_URL",
		"AUDIO_CHUNK_CAP_TOKENS",
		"AUDIO_CHUNK_PACING_MS",
		"VIDEO_DURATION_FORMULA",
		"APP_ENV",
		"API_KEY_RATE_LIMIT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
