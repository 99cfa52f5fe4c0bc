package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// localChatClient talks to an Ollama-compatible /api/chat endpoint.
type localChatClient struct {
	baseURL string
	client  *http.Client
}

func newLocalChatClient(baseURL string, timeout time.Duration) *localChatClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &localChatClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type localChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localChatRequest struct {
	Model    string             `json:"model"`
	Messages []localChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  map[string]any     `json:"options,omitempty"`
}

type localChatResponse struct {
	Message         localChatMessage `json:"message"`
	Done            bool             `json:"done"`
	PromptEvalCount int              `json:"prompt_eval_count"`
	EvalCount       int              `json:"eval_count"`
}

func chatMessages(system, user string) []localChatMessage {
	msgs := make([]localChatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, localChatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, localChatMessage{Role: "user", Content: user})
	return msgs
}

// Chat runs a buffered completion against the local model.
func (c *localChatClient) Chat(ctx context.Context, model, system, user string) (string, Usage, error) {
	body, err := json.Marshal(localChatRequest{
		Model:    model,
		Messages: chatMessages(system, user),
		Stream:   false,
		Options:  map[string]any{"temperature": generationTemperature, "num_predict": generationMaxTokens},
	})
	if err != nil {
		return "", Usage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("local chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading local chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, fmt.Errorf("local chat error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed localChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("decoding local chat response: %w", err)
	}

	usage := Usage{
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
		TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = EstimateTokens(parsed.Message.Content)
	}
	return parsed.Message.Content, usage, nil
}

// ChatStream runs a streaming completion, forwarding each delta to out.
// The local API emits one JSON object per line with done=true last.
func (c *localChatClient) ChatStream(ctx context.Context, model, system, user string, out chan<- StreamDelta) error {
	body, err := json.Marshal(localChatRequest{
		Model:    model,
		Messages: chatMessages(system, user),
		Stream:   true,
		Options:  map[string]any{"temperature": generationTemperature, "num_predict": generationMaxTokens},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("local chat stream failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("local chat stream error %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var parsed localChatResponse
		if err := json.Unmarshal(line, &parsed); err != nil {
			return fmt.Errorf("decoding stream line: %w", err)
		}
		if parsed.Message.Content != "" {
			select {
			case out <- StreamDelta{Content: parsed.Message.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if parsed.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}
