package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sjsage522/reviewworker/internal/crawler"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
)

const (
	// DefaultMaxTokens bounds the model's answer
	DefaultMaxTokens = 300
	// DefaultTemperature makes the answer deterministic
	DefaultTemperature = 0.0
)

// GenerateRequest is a single text-generation call
type GenerateRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator is a text-generation backend. An empty string with a nil error
// means the backend produced no generation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Classifier asks a Generator which candidate selector plays each review role
type Classifier struct {
	generator Generator
	model     string
	maxTokens int
	log       *logger.Logger
}

// New creates a classifier issuing requests for model
func New(generator Generator, model string, maxTokens int) *Classifier {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Classifier{
		generator: generator,
		model:     model,
		maxTokens: maxTokens,
		log:       logger.ForClassifier(),
	}
}

// Classify issues exactly one generation request and decodes the answer.
// It never fails: an empty answer, undecodable JSON, a backend error or a
// panic inside the backend all yield the all-absent assignment.
func (c *Classifier) Classify(ctx context.Context, selectors map[string]string) (roles crawler.RoleAssignment) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Err(apperrors.NewClassification("unexpected error", fmt.Errorf("%v", r))).
				Msg("Classification aborted")
			roles = crawler.AbsentRoles()
		}
	}()

	roles, err := c.classify(ctx, selectors)
	if err != nil {
		c.log.Error().Err(err).Int("selectors", len(selectors)).Msg("Classification failed")
		return crawler.AbsentRoles()
	}

	c.log.Info().
		Interface("roles", roles).
		Msg("Selectors classified")
	return roles
}

func (c *Classifier) classify(ctx context.Context, selectors map[string]string) (crawler.RoleAssignment, error) {
	prompt, err := BuildPrompt(selectors)
	if err != nil {
		return crawler.AbsentRoles(), apperrors.NewClassification("failed to build prompt", err)
	}

	text, err := c.generator.Generate(ctx, GenerateRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: DefaultTemperature,
	})
	if err != nil {
		return crawler.AbsentRoles(), apperrors.NewClassification("generation request failed", err)
	}

	c.log.Debug().Str("response", text).Msg("Generator response")

	return ParseResponse(text)
}

// ParseResponse decodes a generated answer into a role assignment after
// stripping Markdown code fences.
func ParseResponse(text string) (crawler.RoleAssignment, error) {
	if strings.TrimSpace(text) == "" {
		return crawler.AbsentRoles(), apperrors.NewClassification("empty response from generator", nil)
	}

	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var roles crawler.RoleAssignment
	if err := json.Unmarshal([]byte(cleaned), &roles); err != nil {
		return crawler.AbsentRoles(), apperrors.NewClassification("failed to decode response", err)
	}
	return roles, nil
}
