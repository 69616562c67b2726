// Package apperr defines the semantic error kinds shared across the
// generation and mediation pipelines, so that job runners, the mediator,
// and HTTP handlers can all branch on "what kind of failure was this"
// without depending on each other's concrete error types.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the semantic category of a failure. It intentionally
// mirrors the error taxonomy a job row or a mediator close-reason is
// reported under; it is not a Go error type hierarchy.
type Kind string

const (
	KindValidationFailed    Kind = "validation_failed"
	KindUnauthorized        Kind = "unauthorized"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindAvatarNotFound      Kind = "avatar_not_found"
	KindAvatarIncomplete    Kind = "avatar_incomplete"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindVoiceSynthFailed    Kind = "voice_synth_failed"
	KindVideoEnqueueFailed  Kind = "video_enqueue_failed"
	KindPollTimeout         Kind = "poll_timeout"
	KindAssembleFailed      Kind = "assemble_failed"
	KindStorageUploadFailed Kind = "storage_upload_failed"
	KindStoreError          Kind = "store_error"
	KindWorkerAuthFailed    Kind = "worker_auth_failed"
	KindShutdownAborted     Kind = "shutdown_aborted"
	KindReadinessTimeout    Kind = "readiness_timeout"
	KindInternal            Kind = "internal"
)

// Error is the typed-variant failure carried on job rows, HTTP responses,
// and mediator close frames. Field meaning depends on Kind; not every
// field is populated for every kind.
type Error struct {
	Kind       Kind
	Field      string // ValidationFailed
	Reason     string // ValidationFailed
	Resource   string // QuotaExceeded
	Used       float64
	Limit      float64
	Missing    string // AvatarIncomplete: "image" | "voice"
	Service    string // UpstreamUnavailable / UpstreamRejected
	Body       string // UpstreamRejected
	ChunkIndex int     // VoiceSynthFailed, -1 if not applicable
	Cause      error
}

func (e *Error) Error() string {
	msg := humanMessage(e)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func humanMessage(e *Error) string {
	switch e.Kind {
	case KindValidationFailed:
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
	case KindUnauthorized:
		return "unauthorized"
	case KindQuotaExceeded:
		return fmt.Sprintf("quota exceeded for %s: used=%.2f limit=%.2f", e.Resource, e.Used, e.Limit)
	case KindAvatarNotFound:
		return "avatar not found"
	case KindAvatarIncomplete:
		return fmt.Sprintf("avatar is missing required %s asset", e.Missing)
	case KindUpstreamUnavailable:
		return fmt.Sprintf("%s is unavailable", e.Service)
	case KindUpstreamRejected:
		return fmt.Sprintf("%s rejected the request: %s", e.Service, e.Body)
	case KindVoiceSynthFailed:
		if e.ChunkIndex >= 0 {
			return fmt.Sprintf("voice synthesis failed on chunk %d", e.ChunkIndex)
		}
		return "voice synthesis failed"
	case KindVideoEnqueueFailed:
		return "video enqueue failed"
	case KindPollTimeout:
		return "video poll exceeded the allotted window"
	case KindAssembleFailed:
		return "audio assembly failed"
	case KindStorageUploadFailed:
		return "object storage upload failed"
	case KindStoreError:
		return "persistence store error"
	case KindWorkerAuthFailed:
		return "worker callback auth failed"
	case KindShutdownAborted:
		return "job aborted by scheduler shutdown"
	case KindReadinessTimeout:
		return "session readiness timed out"
	default:
		return "internal error"
	}
}

func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause, ChunkIndex: -1}
}

func Validation(field, reason string) *Error {
	return &Error{Kind: KindValidationFailed, Field: field, Reason: reason, ChunkIndex: -1}
}

func Quota(resource string, used, limit float64) *Error {
	return &Error{Kind: KindQuotaExceeded, Resource: resource, Used: used, Limit: limit, ChunkIndex: -1}
}

func AvatarIncomplete(missing string) *Error {
	return &Error{Kind: KindAvatarIncomplete, Missing: missing, ChunkIndex: -1}
}

func UpstreamRejected(service string, body string) *Error {
	return &Error{Kind: KindUpstreamRejected, Service: service, Body: body, ChunkIndex: -1}
}

func UpstreamUnavailable(service string, cause error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Service: service, Cause: cause, ChunkIndex: -1}
}

func VoiceSynthFailed(chunkIndex int, body string) *Error {
	return &Error{Kind: KindVoiceSynthFailed, ChunkIndex: chunkIndex, Body: body}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
