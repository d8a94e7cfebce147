package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"marketpulse/internal/config"
	"marketpulse/internal/filter"
	"marketpulse/internal/models"
	"marketpulse/internal/repository"
)

// Item is one structured judgment returned by the model for a batch entry.
type Item struct {
	Index      int      `json:"index"`
	Summary    string   `json:"summary"`
	Direction  string   `json:"impact_direction"`
	Magnitude  int      `json:"impact_magnitude"`
	Sectors    []string `json:"affected_sectors"`
	Suggestion string   `json:"action_suggestion"`
}

// BatchResult reports a batch analysis outcome. A gateway failure is carried
// in Success/Err instead of an error so callers treat it as a skipped cycle.
type BatchResult struct {
	Items   []Item
	Total   int
	Success bool
	Err     string
	Raw     string
}

// Client wraps the chat-completion API behind the three gateway operations.
type Client struct {
	api         openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

func NewClient(cfg config.AnalysisConfig, logger *zap.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		api:         openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// AnalyzeBatch judges a pre-built batch text of count messages.
func (c *Client) AnalyzeBatch(ctx context.Context, batchText string, count int) BatchResult {
	if c == nil {
		return BatchResult{Success: false, Err: "analysis client not configured"}
	}

	raw, err := c.complete(ctx, systemPrompt, batchPrompt(batchText, count))
	if err != nil {
		return BatchResult{Success: false, Err: err.Error()}
	}

	var parsed struct {
		Items         []Item `json:"items"`
		TotalAnalyzed int    `json:"total_analyzed"`
	}
	if err := json.Unmarshal(extractJSON(raw), &parsed); err != nil {
		if c.logger != nil {
			c.logger.Warn("batch response unparsable", zap.Error(err))
		}
		return BatchResult{Success: false, Err: "response parse failed", Raw: raw}
	}

	total := parsed.TotalAnalyzed
	if total == 0 {
		total = count
	}
	for i := range parsed.Items {
		parsed.Items[i].Direction = normalizeDirection(parsed.Items[i].Direction)
		parsed.Items[i].Magnitude = clampMagnitude(parsed.Items[i].Magnitude)
	}

	return BatchResult{Items: parsed.Items, Total: total, Success: true, Raw: raw}
}

// DigestNarrative produces the free-text synopsis for the daily digest.
func (c *Client) DigestNarrative(ctx context.Context, contextText string, stats repository.DailyStats) (string, error) {
	if c == nil {
		return "", fmt.Errorf("analysis client not configured")
	}
	narrative, err := c.complete(ctx, "", digestPrompt(contextText, stats))
	if err != nil {
		return "", err
	}
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return "", fmt.Errorf("empty digest narrative")
	}
	return narrative, nil
}

// TrendKeywords asks the model for the current dynamic keyword overlay.
func (c *Client) TrendKeywords(ctx context.Context, asOf time.Time) (filter.Document, error) {
	if c == nil {
		return filter.Document{}, fmt.Errorf("analysis client not configured")
	}

	raw, err := c.complete(ctx, "", trendPrompt(asOf))
	if err != nil {
		return filter.Document{}, err
	}

	var doc filter.Document
	if err := json.Unmarshal(extractJSON(raw), &doc); err != nil {
		return filter.Document{}, fmt.Errorf("trend response parse: %w", err)
	}
	if len(doc.High) == 0 && len(doc.Medium) == 0 {
		return filter.Document{}, fmt.Errorf("trend response has no keywords")
	}
	return doc, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}

func normalizeDirection(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case models.DirectionBullish:
		return models.DirectionBullish
	case models.DirectionBearish:
		return models.DirectionBearish
	default:
		return models.DirectionNeutral
	}
}

func clampMagnitude(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
