// Package models holds the data shapes shared across the generation and
// mediation pipelines: avatars, generation jobs, usage counters, live
// sessions, and API keys. None of these types own persistence; stores in
// sibling packages (jobstore, usage, sessionstore, apikey) do.
package models

import "time"

// Avatar is the identity an end-user speaks/appears as. Mutation happens
// through the excluded CRUD layer; the core only reads avatars.
type Avatar struct {
	ID             string
	OwnerID        string
	DisplayName    string
	ImageURL       string
	VoiceSampleURL string
	PersonaPrompt  string
	Language       string
	Public         bool
}

func (a Avatar) HasImage() bool { return a.ImageURL != "" }
func (a Avatar) HasVoice() bool { return a.VoiceSampleURL != "" }

// JobKind distinguishes audio-only from video generation jobs.
type JobKind string

const (
	JobKindAudio JobKind = "audio"
	JobKindVideo JobKind = "video"
)

// InputMode is how a video job is seeded: from a script or from
// pre-recorded audio.
type InputMode string

const (
	InputModeScript        InputMode = "script"
	InputModePreRecorded   InputMode = "pre-recorded-audio"
)

// Quality controls video-svc model selection and poll cadence.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityHigh     Quality = "high"
	QualityStandard Quality = "standard"
)

// JobStatus is the generation job's lifecycle state. Terminal states are
// Completed, Failed, and TimedOut.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusTimedOut   JobStatus = "timed-out"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// GenerationJob is one audio or video generation request.
type GenerationJob struct {
	ID            string
	OwnerID       string
	AvatarID      string
	Kind          JobKind
	InputMode     InputMode
	ScriptText    string
	SourceAudioURL string
	AudioURL      string // temp synth audio, set mid-pipeline for video/script jobs
	Quality       Quality
	Language      string
	UpstreamTaskID string
	ResultURL     string
	Status        JobStatus
	Progress      int
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Validate enforces the invariants from the data model section. It is
// meant to be called before a job is persisted in a non-terminal state
// transition that changes these fields.
func (j *GenerationJob) Validate() error {
	if j.Status == JobStatusCompleted && j.ResultURL == "" {
		return errRequired("result_url", "completed job must have a result URL")
	}
	if j.Status == JobStatusFailed && j.ErrorMessage == "" {
		return errRequired("error_message", "failed job must have an error message")
	}
	if j.Kind == JobKindVideo && j.InputMode == InputModeScript {
		if j.ScriptText == "" {
			return errRequired("script_text", "script video jobs require script text")
		}
	}
	return nil
}

type validationErr struct {
	field, reason string
}

func (e *validationErr) Error() string { return e.field + ": " + e.reason }

func errRequired(field, reason string) error { return &validationErr{field, reason} }

// UsageResource enumerates the monthly accumulator buckets.
type UsageResource string

const (
	ResourceAudioMinutes        UsageResource = "audio-minutes"
	ResourceVideoMinutes        UsageResource = "video-minutes"
	ResourceConversationMinutes UsageResource = "conversation-minutes"
	ResourceAvatarCreations     UsageResource = "avatar-creations"
	ResourceAPICalls            UsageResource = "api-calls"
)

// UsageCounter is a per-user per-resource monthly accumulator.
type UsageCounter struct {
	OwnerID        string
	Resource       UsageResource
	Used           float64
	Limit          float64
	BillingAnchor  time.Time
}

// SessionKind distinguishes voice-only from video conversations.
type SessionKind string

const (
	SessionKindVoice SessionKind = "voice"
	SessionKindVideo SessionKind = "video"
)

// SessionStatus mirrors the mediator's coarse state for persistence and
// status reporting; the mediator's own state machine (internal/mediator)
// has finer-grained transitions (Connecting/Ready/Active/Draining/Failed)
// that collapse onto this set at rest.
type SessionStatus string

const (
	SessionStatusConnecting SessionStatus = "connecting"
	SessionStatusReady      SessionStatus = "ready"
	SessionStatusActive     SessionStatus = "active"
	SessionStatusEnded      SessionStatus = "ended"
	SessionStatusFailed     SessionStatus = "failed"
)

// TranscriptTurn is one role-tagged utterance in a session transcript.
type TranscriptTurn struct {
	Role string // "user" | "model"
	Text string
}

// ApiKey is a principal for machine callers. The secret itself is never
// stored, only SecretHash and the display Prefix.
type ApiKey struct {
	ID               string
	OwnerID          string
	SecretHash       string
	Prefix           string
	PermittedResources []string
	Active           bool
	Expiry           *time.Time
	LastUsedAt       *time.Time
}
