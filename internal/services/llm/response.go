package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoiceMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

type chatResponse struct {
	Choices []struct {
		Message chatChoiceMessage `json:"message"`
		// Some gateways answer with the streaming schema even when stream=false.
		Delta        chatChoiceMessage `json:"delta"`
		Text         string            `json:"text"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`

	raw string
}

// reply returns the first non-blank content across choices together with the
// finish reason and any refusal the model gave instead.
func (r chatResponse) reply() (content, finish, refusal string) {
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonBlank(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if content = firstNonBlank(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finish, refusal
		}
	}
	return "", finish, refusal
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func newStatusError(resp *http.Response, body []byte) *statusError {
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return &statusError{code: resp.StatusCode, body: snippet(body), retryAfter: retryAfter}
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.code, e.body)
}

// retryable reports whether the gateway may succeed on a later attempt.
func (e *statusError) retryable() bool {
	return e.code == http.StatusRequestTimeout || e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

type emptyReplyError struct {
	choices      int
	finishReason string
	refusal      string
	snippet      string
}

func (e *emptyReplyError) Error() string {
	if e.choices == 0 {
		return "chat reply has no choices: " + e.snippet
	}
	return fmt.Sprintf("chat reply has empty content (finish_reason=%q, refusal=%q, response=%s)", e.finishReason, e.refusal, e.snippet)
}

func snippet(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
