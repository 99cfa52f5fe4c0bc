package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"engdocs-qa-platform/internal/config"
	"engdocs-qa-platform/models"
)

// Provider identifiers.
const (
	ProviderLocal = "local-chat"
	ProviderCloud = "cloud-chat"
)

const (
	generationTemperature = 0.2
	generationMaxTokens   = 2048
	cloudMaxRetries       = 3
)

// Override selects a provider/model for a single request.
type Override struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Usage reports token counts for one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamDelta is one element of a streaming generation. A non-nil Err is
// the typed error sentinel: the channel closes right after it and no
// provider exception ever escapes the generator.
type StreamDelta struct {
	Content string
	Err     error
}

// Generator calls the configured LLM provider in buffered or streaming
// mode. Its configuration is process-wide mutable state: a single writer
// (the admin surface) updates it while readers take snapshots; updating
// invalidates any cached clients.
type Generator struct {
	mu       sync.RWMutex
	settings models.GeneratorSettings
	local    *localChatClient
	cloud    *openai.Client

	breaker      *gobreaker.CircuitBreaker
	timeout      time.Duration
	cloudBaseURL string
}

func NewGenerator(cfg *config.Config) *Generator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "CloudLLM",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Generator{
		settings: models.GeneratorSettings{
			DefaultProvider: cfg.DefaultProvider,
			LocalModel:      cfg.LocalModel,
			LocalBaseURL:    cfg.LocalBaseURL,
			CloudModel:      cfg.CloudModel,
			CloudAPIKey:     cfg.CloudAPIKey,
		},
		breaker:      breaker,
		timeout:      time.Duration(cfg.LLMTimeout) * time.Second,
		cloudBaseURL: cfg.CloudBaseURL,
	}
}

// Settings returns a snapshot of the current configuration. The API key
// is included; callers exposing it externally must redact it.
func (g *Generator) Settings() models.GeneratorSettings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings
}

// UpdateSettings replaces the configuration and drops cached clients so
// the next call reconnects with the new model/endpoint.
func (g *Generator) UpdateSettings(s models.GeneratorSettings) error {
	switch s.DefaultProvider {
	case ProviderLocal, ProviderCloud:
	default:
		return fmt.Errorf("unknown provider %q", s.DefaultProvider)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.CloudAPIKey == "" {
		s.CloudAPIKey = g.settings.CloudAPIKey
	}
	g.settings = s
	g.local = nil
	g.cloud = nil
	return nil
}

// resolve picks the provider, model, and client for a request.
func (g *Generator) resolve(ov *Override) (provider, model string, local *localChatClient, cloud *openai.Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	provider = g.settings.DefaultProvider
	if ov != nil && ov.Provider != "" {
		provider = ov.Provider
	}

	switch provider {
	case ProviderCloud:
		model = g.settings.CloudModel
		if g.cloud == nil {
			opts := []option.RequestOption{
				option.WithAPIKey(g.settings.CloudAPIKey),
				option.WithMaxRetries(0),
			}
			if g.cloudBaseURL != "" {
				opts = append(opts, option.WithBaseURL(g.cloudBaseURL))
			}
			c := openai.NewClient(opts...)
			g.cloud = &c
		}
		cloud = g.cloud
	default:
		provider = ProviderLocal
		model = g.settings.LocalModel
		if g.local == nil {
			g.local = newLocalChatClient(g.settings.LocalBaseURL, g.timeout)
		}
		local = g.local
	}

	if ov != nil && ov.Model != "" {
		model = ov.Model
	}
	return provider, model, local, cloud
}

// Generate runs a buffered completion and returns the full text.
func (g *Generator) Generate(ctx context.Context, system, user string, ov *Override) (string, Usage, error) {
	provider, model, local, cloud := g.resolve(ov)

	tracer := otel.Tracer("generator")
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if provider == ProviderCloud {
		return g.generateCloud(ctx, cloud, model, system, user)
	}
	return local.Chat(ctx, model, system, user)
}

// Stream runs a streaming completion. The returned channel carries text
// deltas and closes after the final delta; on failure the last element
// is an error sentinel. The sequence is finite and non-restartable.
func (g *Generator) Stream(ctx context.Context, system, user string, ov *Override) <-chan StreamDelta {
	provider, model, local, cloud := g.resolve(ov)
	out := make(chan StreamDelta, 16)

	go func() {
		defer close(out)
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		var err error
		if provider == ProviderCloud {
			err = g.streamCloud(ctx, cloud, model, system, user, out)
		} else {
			err = local.ChatStream(ctx, model, system, user, out)
		}
		if err != nil {
			out <- StreamDelta{Err: err}
		}
	}()
	return out
}

// CurrentProviderModel reports what a request with the given override
// would use, for event attribution.
func (g *Generator) CurrentProviderModel(ov *Override) (string, string) {
	provider, model, _, _ := g.resolve(ov)
	return provider, model
}

func (g *Generator) generateCloud(ctx context.Context, client *openai.Client, model, system, user string) (string, Usage, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return cloudChatWithRetry(ctx, client, model, system, user)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return "", Usage{}, fmt.Errorf("cloud provider temporarily unavailable: %w", err)
		}
		return "", Usage{}, err
	}

	resp := result.(*openai.ChatCompletion)
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("cloud provider returned no choices")
	}
	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// cloudChatWithRetry retries connect/timeout failures up to three times
// with exponential backoff (1, 2, 4 s). HTTP-level errors from the
// provider are returned immediately.
func cloudChatWithRetry(ctx context.Context, client *openai.Client, model, system, user string) (*openai.ChatCompletion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(generationTemperature),
		MaxTokens:   openai.Int(generationMaxTokens),
	}

	var lastErr error
	for attempt := 0; attempt <= cloudMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := client.Chat.Completions.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			// Provider answered with an HTTP error; retrying won't help.
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("cloud chat failed after %d retries: %w", cloudMaxRetries, lastErr)
}

func (g *Generator) streamCloud(ctx context.Context, client *openai.Client, model, system, user string, out chan<- StreamDelta) error {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(generationTemperature),
		MaxTokens:   openai.Int(generationMaxTokens),
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			select {
			case out <- StreamDelta{Content: delta}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return stream.Err()
}

// EstimateTokens approximates a token count as ceil(words * 1.3), used
// when a model does not report usage.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}
