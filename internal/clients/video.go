package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/avatarplatform/mediator/internal/apperr"
)

// VideoConfig configures the video-svc client.
type VideoConfig struct {
	RESTBaseURL    string
	WSBaseURL      string
	APIKey         string
	EnqueueTimeout time.Duration
	PollTimeout    time.Duration
}

// VideoClient is a typed wrapper over the video-synthesis microservice.
type VideoClient struct {
	cfg  VideoConfig
	http *http.Client
}

func NewVideoClient(cfg VideoConfig) *VideoClient {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 30 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	return &VideoClient{cfg: cfg, http: &http.Client{}}
}

// Enqueue calls video-svc's REST enqueue endpoint and returns the
// assigned task id.
func (c *VideoClient) Enqueue(ctx context.Context, imageURL, audioURL string, quality string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EnqueueTimeout)
	defer cancel()

	var taskID string
	op := func() error {
		body := strings.NewReader(fmt.Sprintf(`{"image_url":%q,"audio_url":%q,"quality":%q}`, imageURL, audioURL, quality))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RESTBaseURL+"/enqueue", body)
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if apperr.IsRetryableHTTPStatus(resp.StatusCode) {
				return fmt.Errorf("video-svc enqueue status %d", resp.StatusCode)
			}
			return permanent(apperr.New(apperr.KindVideoEnqueueFailed, apperr.UpstreamRejected("video-svc", string(data))))
		}
		if readErr != nil {
			return readErr
		}
		id, err := extractJSONString(data, "task_id")
		if err != nil {
			return permanent(apperr.New(apperr.KindVideoEnqueueFailed, err))
		}
		taskID = id
		return nil
	}

	if err := backoff.Retry(op, retryPolicy(ctx, c.cfg.EnqueueTimeout)); err != nil {
		if ae, ok := err.(*apperr.Error); ok {
			return "", ae
		}
		return "", apperr.New(apperr.KindVideoEnqueueFailed, err)
	}
	return taskID, nil
}

// StatusResult is the content-negotiated result of a video-svc status
// poll: either a ready artifact body, or a JSON status/error pair.
type StatusResult struct {
	Ready  bool
	Body   []byte
	Status string
	Error  string
}

// Status performs a single status GET; callers (the poll loop) decide
// retry/abort policy based on the returned StatusResult and error.
// A 404 is returned as a transient StatusResult{Status:"processing"},
// never as an error. A video/mp4 response with an empty body is also
// treated as not-yet-ready: an empty artifact is never valid, and some
// upstreams momentarily send the content-type header before the body is
// fully written.
func (c *VideoClient) Status(ctx context.Context, taskID string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RESTBaseURL+"/status/"+taskID, nil)
	if err != nil {
		return StatusResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StatusResult{Status: "processing"}, nil
	}

	contentType := resp.Header.Get("Content-Type")
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusResult{}, err
	}

	if strings.HasPrefix(contentType, "video/mp4") && len(data) > 0 {
		return StatusResult{Ready: true, Body: data}, nil
	}

	status, _ := extractJSONString(data, "status")
	errMsg, _ := extractJSONString(data, "error")
	return StatusResult{Status: status, Error: errMsg}, nil
}

// VideoStream is the open bidirectional WS connection to video-svc.
type VideoStream struct {
	conn *websocket.Conn
}

// InitStream provisions a stream session via REST before dialing the WS.
func (c *VideoClient) InitStream(ctx context.Context, sessionID, imageURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EnqueueTimeout)
	defer cancel()
	body := strings.NewReader(fmt.Sprintf(`{"session_id":%q,"image_url":%q}`, sessionID, imageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RESTBaseURL+"/init-stream", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.UpstreamUnavailable("video-svc", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return apperr.UpstreamRejected("video-svc", string(data))
	}
	return nil
}

// EndStream tears down a stream session via REST.
func (c *VideoClient) EndStream(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EnqueueTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RESTBaseURL+"/end-stream/"+sessionID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// DialStream opens the video-svc WS stream/<session_id>.
func (c *VideoClient) DialStream(ctx context.Context, sessionID string) (*VideoStream, error) {
	u, err := url.Parse(c.cfg.WSBaseURL)
	if err != nil {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/stream/" + sessionID

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, apperr.UpstreamUnavailable("video-svc", err)
	}
	return &VideoStream{conn: conn}, nil
}

func (s *VideoStream) SendAudio(chunk []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// SendStopSpeaking sends {type:"stop_speaking"}, the barge-in control
// frame, mirroring VoiceStream's.
func (s *VideoStream) SendStopSpeaking() error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop_speaking"}`))
}

func (s *VideoStream) ReadMessage() (bool, []byte, error) {
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return false, nil, err
	}
	return mt == websocket.BinaryMessage, data, nil
}

func (s *VideoStream) Close() error {
	return s.conn.Close()
}

// extractJSONString pulls a single top-level string field out of a JSON
// object without pulling in a full struct per caller; video-svc's status
// payload shape is small and this avoids defining throwaway structs for
// each field combination callers care about.
func extractJSONString(data []byte, field string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	v, ok := m[field]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", field)
	}
	return s, nil
}
