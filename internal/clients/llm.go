package clients

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avatarplatform/mediator/internal/apperr"
)

// rollingWindowSize is the bounded suffix of conversation turns retained
// per session id for LLM context.
const rollingWindowSize = 10

type turn struct {
	role, text string
}

// LLMClient is a turn-based wrapper over a chat-completions backend,
// keeping a rolling window of the last N turns per session id in memory.
type LLMClient struct {
	api   *openai.Client
	model string

	mu      sync.Mutex
	history map[string][]turn
}

func NewLLMClient(apiKey, baseURL, model string) *LLMClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMClient{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		history: make(map[string][]turn),
	}
}

// Generate appends userText to the session's rolling window, calls the
// backend with systemPrompt plus history, appends the model's reply to
// the window, and returns it.
func (c *LLMClient) Generate(ctx context.Context, sessionID, userText, systemPrompt, language string) (string, error) {
	c.mu.Lock()
	hist := append([]turn{}, c.history[sessionID]...)
	c.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(hist)+2)
	sp := systemPrompt
	if language != "" {
		sp = fmt.Sprintf("%s Respond in language: %s.", sp, language)
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sp})
	for _, t := range hist {
		role := openai.ChatMessageRoleUser
		if t.role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", apperr.UpstreamUnavailable("llm", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.UpstreamRejected("llm", "no choices returned")
	}
	reply := resp.Choices[0].Message.Content

	c.appendTurns(sessionID, turn{role: "user", text: userText}, turn{role: "model", text: reply})
	return reply, nil
}

func (c *LLMClient) appendTurns(sessionID string, turns ...turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := append(c.history[sessionID], turns...)
	if len(h) > rollingWindowSize {
		h = h[len(h)-rollingWindowSize:]
	}
	c.history[sessionID] = h
}

// DropSession releases the rolling-window history for a closed session.
func (c *LLMClient) DropSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.history, sessionID)
}
