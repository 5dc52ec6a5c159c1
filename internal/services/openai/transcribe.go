package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"evidentia/internal/language"
	"evidentia/internal/services"
)

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads an audio artifact to the speech-to-text endpoint and
// returns the recognized text. The configured language, if any, is passed as
// a hint in ISO-639-1 form.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := c.requireCredential("transcribe"); err != nil {
		return "", err
	}

	payload, err := os.ReadFile(audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "read audio", "", err)
	}

	text, err := c.withRetry(ctx, "transcribe", func() (string, error) {
		return c.transcribeOnce(ctx, filepath.Base(audioPath), payload)
	})
	if err != nil {
		if services.Details(err).Kind != "unknown" {
			return "", err
		}
		return "", services.Wrap(services.ErrTranscription, "transcribe", "audio upload", "", err)
	}
	return text, nil
}

func (c *Client) transcribeOnce(ctx context.Context, filename string, payload []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("model", c.transcribeModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if c.language != "" {
		if err := writer.WriteField("language", language.ToISO2(c.language)); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

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

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	return parsed.Text, nil
}
