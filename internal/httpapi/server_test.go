package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avatarplatform/mediator/internal/config"
	"github.com/avatarplatform/mediator/internal/models"
)

func TestHealth_ReportsUnconfiguredUpstreams(t *testing.T) {
	s := &Server{cfg: config.Config{}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !containsAll(body, `"voice_service":"unconfigured"`, `"video_service":"unconfigured"`, `"status":"healthy"`) {
		t.Fatalf("body = %s, missing expected fields", body)
	}
}

func TestWorkerTokenValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/worker/callback", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	if !workerTokenValid(req, "secret-token") {
		t.Fatal("expected bearer token to validate")
	}

	req2 := httptest.NewRequest(http.MethodPost, "/worker/callback", nil)
	req2.Header.Set("x-worker-token", "secret-token")
	if !workerTokenValid(req2, "secret-token") {
		t.Fatal("expected x-worker-token header to validate")
	}

	req3 := httptest.NewRequest(http.MethodPost, "/worker/callback", nil)
	if workerTokenValid(req3, "secret-token") {
		t.Fatal("expected missing token to fail")
	}

	req4 := httptest.NewRequest(http.MethodPost, "/worker/callback", nil)
	req4.Header.Set("Authorization", "Bearer wrong")
	if workerTokenValid(req4, "secret-token") {
		t.Fatal("expected mismatched token to fail")
	}

	if workerTokenValid(req4, "") {
		t.Fatal("expected empty configured token to always fail")
	}
}

func TestDefaultProgress(t *testing.T) {
	cases := map[models.JobStatus]int{
		models.JobStatusQueued:     10,
		models.JobStatusProcessing: 50,
		models.JobStatusCompleted:  100,
		models.JobStatusFailed:     0,
		models.JobStatusTimedOut:   0,
	}
	for status, want := range cases {
		if got := defaultProgress(status); got != want {
			t.Errorf("defaultProgress(%s) = %d, want %d", status, got, want)
		}
	}
}

func TestEstimateAdmitMinutes_FloorsAtHalfMinute(t *testing.T) {
	if got := estimateAdmitMinutes("short"); got != 0.5 {
		t.Fatalf("estimateAdmitMinutes(short) = %v, want 0.5", got)
	}
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	if got := estimateAdmitMinutes(string(long)); got <= 0.5 {
		t.Fatalf("estimateAdmitMinutes(long) = %v, want > 0.5", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
