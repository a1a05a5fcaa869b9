package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "c2c",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of AI strategy generation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "c2c",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of AI strategy generation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/ReMyndassessments/concern2care-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Generate sends the generation request to OpenAI and parses the response.
func (g *OpenAIGenerator) Generate(parent context.Context, input StrategyInput) (StrategyResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: generatorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StrategyResult{}, fmt.Errorf("openai generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StrategyResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseStrategyResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StrategyResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func generatorSystemPrompt() string {
	return "You are an experienced school intervention specialist. Given a teacher's description of a student concern, " +
		"respond with a JSON object containing summary (one paragraph) and strategies (an array of 3-5 concrete, " +
		"classroom-ready intervention steps). Strategies must be actionable by the teacher without specialist resources."
}

func buildUserPrompt(input StrategyInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Student\n")
	builder.WriteString(input.StudentRef)
	builder.WriteString("\n\n## Concern\n")
	builder.WriteString(input.ConcernText)
	if input.GradeHint != "" {
		builder.WriteString("\n\n## Grade level\n")
		builder.WriteString(input.GradeHint)
	}
	if input.Urgent {
		builder.WriteString("\n\nNote: this concern was flagged urgent and is under human review; " +
			"include immediate de-escalation guidance alongside longer-term strategies.")
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseStrategyResponse(content string) (StrategyResult, error) {
	type payload struct {
		Summary    string   `json:"summary"`
		Strategies []string `json:"strategies"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return StrategyResult{}, fmt.Errorf("parse strategy json: %w", err)
	}

	if data.Summary == "" && len(data.Strategies) == 0 {
		return StrategyResult{}, fmt.Errorf("empty strategy response")
	}

	return StrategyResult{
		Summary:    data.Summary,
		Strategies: data.Strategies,
	}, nil
}
