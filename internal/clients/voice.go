package clients

import (
	"context"
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

// VoiceConfig configures the voice-svc client.
type VoiceConfig struct {
	RESTBaseURL string
	WSBaseURL   string
	SecretKey   string
	RESTTimeout time.Duration
}

// VoiceClient is a typed wrapper over the voice-synthesis microservice:
// a REST synthesize call and a bidirectional WebSocket stream.
type VoiceClient struct {
	cfg  VoiceConfig
	http *http.Client
}

func NewVoiceClient(cfg VoiceConfig) *VoiceClient {
	if cfg.RESTTimeout <= 0 {
		cfg.RESTTimeout = 60 * time.Second
	}
	return &VoiceClient{cfg: cfg, http: &http.Client{Timeout: cfg.RESTTimeout}}
}

// Synthesize calls voice-svc's REST synthesize endpoint, retrying
// transient 5xx/connection failures within RESTTimeout. A non-2xx
// response that survives retries surfaces as apperr.KindVoiceSynthFailed
// (chunk-indexed by the caller).
func (c *VoiceClient) Synthesize(ctx context.Context, voiceID, cloneRef, text, language string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RESTTimeout)
	defer cancel()

	var result []byte
	op := func() error {
		body := strings.NewReader(synthesizeRequestBody(voiceID, cloneRef, text, language))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RESTBaseURL+"/synthesize", body)
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+MintVoiceToken(c.cfg.SecretKey, time.Now().Unix()))

		resp, err := c.http.Do(req)
		if err != nil {
			return err // transient: connection-level, retry
		}
		defer resp.Body.Close()
		data, readErr := io.ReadAll(resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if apperr.IsRetryableHTTPStatus(resp.StatusCode) {
				return fmt.Errorf("voice-svc status %d", resp.StatusCode)
			}
			return permanent(apperr.UpstreamRejected("voice-svc", string(data)))
		}
		if readErr != nil {
			return readErr
		}
		if len(data) == 0 {
			return fmt.Errorf("voice-svc returned empty body")
		}
		result = data
		return nil
	}

	if err := backoff.Retry(op, retryPolicy(ctx, c.cfg.RESTTimeout)); err != nil {
		if ae, ok := err.(*apperr.Error); ok {
			return nil, ae
		}
		return nil, apperr.UpstreamUnavailable("voice-svc", err)
	}
	return result, nil
}

func synthesizeRequestBody(voiceID, cloneRef, text, language string) string {
	return fmt.Sprintf(`{"voice_id":%q,"clone_ref":%q,"text":%q,"language":%q}`,
		voiceID, cloneRef, text, language)
}

// VoiceStream is the open bidirectional WS connection to voice-svc.
type VoiceStream struct {
	conn *websocket.Conn
}

// DialStream opens the voice-svc WS using the VOICE_CLONE_AUTH- header.
func (c *VoiceClient) DialStream(ctx context.Context, sessionID string) (*VoiceStream, error) {
	u, err := url.Parse(c.cfg.WSBaseURL)
	if err != nil {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, err)
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", MintVoiceToken(c.cfg.SecretKey, time.Now().Unix()))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, apperr.UpstreamUnavailable("voice-svc", err)
	}
	return &VoiceStream{conn: conn}, nil
}

// SendInit sends the {type:"init", ...} control message after open.
func (s *VoiceStream) SendInit(userID, avatarID, voiceCloneURL, language string) error {
	msg := fmt.Sprintf(`{"type":"init","userId":%q,"avatarId":%q,"voice_clone_url":%q,"language":%q}`,
		userID, avatarID, voiceCloneURL, language)
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// SendTextToSpeak sends {type:"text_to_speak", text}.
func (s *VoiceStream) SendTextToSpeak(text string) error {
	msg := fmt.Sprintf(`{"type":"text_to_speak","text":%q}`, text)
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// SendStopSpeaking sends {type:"stop_speaking"}.
func (s *VoiceStream) SendStopSpeaking() error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop_speaking"}`))
}

// SendAudio forwards a raw binary audio chunk (e.g. for video lip-sync
// forwarding, where the same chunk also goes to video-svc).
func (s *VoiceStream) SendAudio(chunk []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// ReadMessage reads one inbound frame, returning (isBinary, payload, error).
func (s *VoiceStream) ReadMessage() (bool, []byte, error) {
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return false, nil, err
	}
	return mt == websocket.BinaryMessage, data, nil
}

func (s *VoiceStream) Close() error {
	return s.conn.Close()
}
