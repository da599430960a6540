package structuring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DeepSeek implements the Structurer interface against any OpenAI-compatible
// chat-completions endpoint. One request per image, no retries: a service
// failure surfaces to the caller as a failed image.
type DeepSeek struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewDeepSeek creates a new DeepSeek Structurer instance
func NewDeepSeek(apiKey, baseURL, modelName string) (*DeepSeek, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	if modelName == "" {
		modelName = "deepseek-chat"
	}

	return &DeepSeek{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// chatRequest represents the request body for the chat-completions API
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response from the chat-completions API
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// StructureTrade sends the OCR text to the model and returns the raw completion
func (d *DeepSeek) StructureTrade(rawText, imageSource string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Low temperature: extraction, not generation
	reqBody := chatRequest{
		Model:       d.model,
		Temperature: 0.1,
		MaxTokens:   500,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(rawText, imageSource)},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := d.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat-completions API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat-completions API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Close closes the DeepSeek client (no-op for HTTP client)
func (d *DeepSeek) Close() error {
	return nil
}
