package perception

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"voxsh/internal/logging"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds configuration for the Gemini oracle.
type GeminiConfig struct {
	APIKey string
	Model  string

	// Timeout bounds each call. Zero means no timeout.
	Timeout time.Duration

	// MaxOutputTokens caps the reply. A command is one line, so this stays small.
	MaxOutputTokens int32

	// BaseURL and HTTPClient override the endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           DefaultGeminiModel,
		MaxOutputTokens: 1024,
	}
}

// GeminiOracle implements Oracle on top of the Gemini API.
type GeminiOracle struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	config  *genai.GenerateContentConfig
}

// NewGeminiOracle creates a Gemini-backed oracle.
func NewGeminiOracle(ctx context.Context, cfg GeminiConfig) (*GeminiOracle, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	gen := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if cfg.MaxOutputTokens > 0 {
		gen.MaxOutputTokens = cfg.MaxOutputTokens
	}

	logging.PerceptionDebug("Gemini oracle ready: model=%s timeout=%s", model, cfg.Timeout)
	return &GeminiOracle{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		config:  gen,
	}, nil
}

// Model returns the configured model name.
func (o *GeminiOracle) Model() string { return o.model }

// Complete sends prompt as a single user turn and returns the text of the
// first candidate. Thought parts are skipped.
func (o *GeminiOracle) Complete(ctx context.Context, prompt string) (Completion, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := o.client.Models.GenerateContent(ctx, o.model, contents, o.config)
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate: %w", err)
	}
	return completionFromResponse(resp)
}

func completionFromResponse(resp *genai.GenerateContentResponse) (Completion, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Completion{}, &ParseFault{Reason: "no candidates"}
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return Completion{}, &ParseFault{Reason: fmt.Sprintf("empty candidate (finish reason %s)", cand.FinishReason)}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return Completion{Raw: sb.String()}, nil
}
