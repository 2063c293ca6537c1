package src

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// defaultModels are used when a request names no model.
var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderGemini:    "gemini-2.5-pro",
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderOllama:    "qwen2.5-coder",
}

// Transport is one provider's completion endpoint. Implementations keep
// a uniform error shape: status plus response body where applicable.
type Transport interface {
	Complete(ctx context.Context, key, model, prompt string) (string, error)
}

// CallRequest is one model call on behalf of a user.
type CallRequest struct {
	Prompt   string
	Provider Provider
	Model    string
	UserID   string
	UserKeys map[Provider]string
	Project  string
}

const retryDelay = 1500 * time.Millisecond

// Engine is the orchestration core: every model call from the plan
// protocol, the agent loop and god mode funnels through CallModel, so all
// of them inherit the same metering, key selection and retry semantics.
type Engine struct {
	cfg        Config
	store      ProjectStore
	wallet     Wallet
	audit      AuditSink
	log        *slog.Logger
	transports map[Provider]Transport
	retryDelay time.Duration
}

func NewEngine(cfg Config, store ProjectStore, wallet Wallet, audit AuditSink) *Engine {
	if audit == nil {
		audit = SlogAudit{}
	}
	e := &Engine{
		cfg:        cfg,
		store:      store,
		wallet:     wallet,
		audit:      audit,
		log:        slog.Default(),
		retryDelay: retryDelay,
	}
	e.transports = map[Provider]Transport{
		ProviderOpenAI:    &openaiTransport{baseURL: cfg.OpenAIBaseURL},
		ProviderGemini:    &geminiTransport{},
		ProviderAnthropic: &anthropicTransport{client: &http.Client{Timeout: 120 * time.Second}},
		ProviderOllama:    &ollamaTransport{baseURL: cfg.OllamaBaseURL, client: &http.Client{Timeout: 300 * time.Second}},
	}
	return e
}

// UseTransport replaces one provider's transport. Tests install fakes here.
func (e *Engine) UseTransport(p Provider, t Transport) { e.transports[p] = t }

// CallModel runs one completion. Order: budget check, key resolution,
// dispatch, one retry after a fixed delay, audit on final failure, debit
// on success. Total attempts is capped at 2; wall-clock bounds live in
// the transports.
func (e *Engine) CallModel(ctx context.Context, req CallRequest) (string, error) {
	if req.Provider == "" {
		req.Provider = e.cfg.DefaultProvider
	}

	balance, err := e.wallet.Balance(ctx, req.UserID)
	if err != nil {
		return "", fmt.Errorf("budget lookup: %w", err)
	}
	if balance <= 0 {
		return "", ErrInsufficientBudget
	}

	transport, ok := e.transports[req.Provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", req.Provider)
	}
	key, err := e.resolveKey(req)
	if err != nil {
		return "", err
	}
	model := req.Model
	if model == "" {
		model = defaultModels[req.Provider]
	}

	var lastErr error
	attempts := 0
	for attempts < 2 {
		attempts++
		text, err := transport.Complete(ctx, key, model, req.Prompt)
		if err == nil {
			if derr := e.wallet.Debit(ctx, req.UserID); derr != nil {
				e.log.Warn("debit after successful call failed", "user", req.UserID, "error", derr)
			}
			return text, nil
		}
		lastErr = err
		e.log.Warn("model call attempt failed",
			"provider", string(req.Provider), "attempt", attempts, "error", err)
		if attempts < 2 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(e.retryDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	e.audit.LogError(AuditRecord{
		User:     req.UserID,
		Provider: req.Provider,
		Attempts: attempts,
		Error:    lastErr.Error(),
		Project:  req.Project,
	})
	return "", &ProviderError{Provider: req.Provider, Attempts: attempts, Last: lastErr}
}

// resolveKey prefers the caller's own key, then (when enabled) one shared
// pool key picked uniformly at random. Ollama runs keyless.
func (e *Engine) resolveKey(req CallRequest) (string, error) {
	if k := req.UserKeys[req.Provider]; k != "" {
		return k, nil
	}
	if req.Provider == ProviderOllama {
		return "", nil
	}
	if e.cfg.PoolEnabled {
		if pool := e.cfg.Pool[req.Provider]; len(pool) > 0 {
			return pool[rand.IntN(len(pool))], nil
		}
	}
	return "", fmt.Errorf("%w for provider %s", ErrMissingCredential, req.Provider)
}

type openaiTransport struct {
	baseURL string
}

func (t *openaiTransport) Complete(ctx context.Context, key, model, prompt string) (string, error) {
	cfg := openai.DefaultConfig(key)
	if t.baseURL != "" {
		cfg.BaseURL = t.baseURL
	}
	client := openai.NewClientWithConfig(cfg)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiTransport struct{}

func (t *geminiTransport) Complete(ctx context.Context, key, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer client.Close()

	resp, err := client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: no text parts in candidate")
	}
	return sb.String(), nil
}

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	anthropicMaxTokens  = 8192
)

type anthropicTransport struct {
	client *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *anthropicTransport) Complete(ctx context.Context, key, model, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens: anthropicMaxTokens,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicBaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", key)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, truncate(string(data), 512))
	}
	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	var sb strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty content")
	}
	return sb.String(), nil
}

type ollamaTransport struct {
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (t *ollamaTransport) Complete(ctx context.Context, _ string, model, prompt string) (string, error) {
	base := t.baseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	body, err := json.Marshal(ollamaRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, truncate(string(data), 512))
	}
	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("ollama: decode: %w", err)
	}
	return parsed.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
