package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

// HuggingFaceResponder calls the hosted inference API for a text model.
type HuggingFaceResponder struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewHuggingFaceResponder(baseURL, model, apiKey string, client *http.Client) *HuggingFaceResponder {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFaceResponder{baseURL: strings.TrimRight(baseURL, "/"), model: model, apiKey: apiKey, client: client}
}

func (h *HuggingFaceResponder) Name() string { return "huggingface" }

type generation struct {
	GeneratedText string `json:"generated_text"`
	Text          string `json:"text"`
}

func (h *HuggingFaceResponder) Reply(ctx context.Context, message string) (string, error) {
	prompt := systemPrompt + "\n\nUser: " + message + "\nAssistant:"
	body, err := json.Marshal(map[string]any{
		"inputs":     prompt,
		"parameters": map[string]any{"max_new_tokens": 180, "temperature": 0.2},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/models/"+h.model, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", fmt.Errorf("huggingface: status %d: %s", resp.StatusCode, snippet)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return parseGeneration(raw)
}

// parseGeneration accepts either a list of generations or a single object.
// The prompt is echoed back by most models, so only the text after the last
// "Assistant:" marker is kept.
func parseGeneration(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	var g generation
	if len(raw) > 0 && raw[0] == '[' {
		var list []generation
		if err := json.Unmarshal(raw, &list); err != nil {
			return "", fmt.Errorf("huggingface: decode: %w", err)
		}
		if len(list) == 0 {
			return "", ErrEmptyReply
		}
		g = list[0]
	} else if err := json.Unmarshal(raw, &g); err != nil {
		return "", fmt.Errorf("huggingface: decode: %w", err)
	}

	full := g.GeneratedText
	if full == "" {
		full = g.Text
	}
	if i := strings.LastIndex(full, "Assistant:"); i >= 0 {
		if tail := strings.TrimSpace(full[i+len("Assistant:"):]); tail != "" {
			return tail, nil
		}
	}
	return strings.TrimSpace(full), nil
}
