package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"evidentia/internal/services"
)

// summarySystemPrompt constrains the model to a neutral, formal register.
// Summaries may end up attached to legal filings, so the prompt forbids
// opinion and interpretation outright.
const summarySystemPrompt = `You are a professional legal summarizer. Your task is to generate a neutral, formal, and objective summary of the following transcript. This summary may be used as evidence in a legal proceeding.
- Do NOT inject any opinion, interpretation, or emotion.
- Stick strictly to the facts and key statements as presented in the text.
- The summary must be a clear, concise, and factual representation of the content.
- Focus on who said what, key events, and factual statements.
- The tone must be strictly formal and neutral.
- Do NOT translate the summary, the summary MUST be in the same language as the transcript`

// EmptyTranscriptSummary is recorded for recordings whose audio produced no
// recognizable speech. It is returned without contacting the API.
const EmptyTranscriptSummary = "File was empty. No summary generated."

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize produces a formal summary of the transcript. Temperature is
// pinned to zero so repeated runs over the same transcript converge.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return EmptyTranscriptSummary, nil
	}
	if err := c.requireCredential("summarize"); err != nil {
		return "", err
	}

	summary, err := c.withRetry(ctx, "summarize", func() (string, error) {
		return c.summarizeOnce(ctx, transcript)
	})
	if err != nil {
		if services.Details(err).Kind != "unknown" {
			return "", err
		}
		return "", services.Wrap(services.ErrSummarization, "summarize", "chat completion", "", err)
	}
	return summary, nil
}

func (c *Client) summarizeOnce(ctx context.Context, transcript string) (string, error) {
	payload := chatRequest{
		Model: c.summaryModel,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: "Please summarize the following transcript:\n\n" + transcript},
		},
		Temperature: 0,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty completion content")
	}
	return content, nil
}
