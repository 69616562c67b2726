package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVideoClient_Status_EmptyMP4BodyIsNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		// no body written: upstream sent the content-type header before
		// the artifact bytes were ready.
	}))
	defer srv.Close()

	c := NewVideoClient(VideoConfig{RESTBaseURL: srv.URL, PollTimeout: time.Second})
	result, err := c.Status(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ready {
		t.Fatalf("expected Ready=false for an empty video/mp4 body, got %+v", result)
	}
}

func TestVideoClient_Status_NonEmptyMP4BodyIsReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte{0x00, 0x01, 0x02, 0x03})
	}))
	defer srv.Close()

	c := NewVideoClient(VideoConfig{RESTBaseURL: srv.URL, PollTimeout: time.Second})
	result, err := c.Status(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Ready {
		t.Fatalf("expected Ready=true for a non-empty video/mp4 body, got %+v", result)
	}
	if len(result.Body) != 4 {
		t.Fatalf("Body length = %d, want 4", len(result.Body))
	}
}

func TestVideoClient_Status_404IsTransientProcessing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewVideoClient(VideoConfig{RESTBaseURL: srv.URL, PollTimeout: time.Second})
	result, err := c.Status(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ready || result.Status != "processing" {
		t.Fatalf("expected a transient processing result for 404, got %+v", result)
	}
}
