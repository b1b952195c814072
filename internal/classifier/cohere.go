package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultCohereBaseURL is Cohere's public API endpoint
const DefaultCohereBaseURL = "https://api.cohere.ai"

type cohereGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type cohereGenerateResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}

// CohereGenerator calls Cohere's generate endpoint
type CohereGenerator struct {
	client *resty.Client
}

// NewCohereGenerator creates a generator authenticated with apiKey
func NewCohereGenerator(apiKey, baseURL string, timeout time.Duration) *CohereGenerator {
	if baseURL == "" {
		baseURL = DefaultCohereBaseURL
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(apiKey)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)

	return &CohereGenerator{client: client}
}

func (g *CohereGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var result cohereGenerateResponse
	var apiErr cohereErrorResponse

	res, err := g.client.R().
		SetContext(ctx).
		SetBody(cohereGenerateRequest{
			Model:       req.Model,
			Prompt:      req.Prompt,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/generate")
	if err != nil {
		return "", err
	}
	if res.IsError() {
		if apiErr.Message != "" {
			return "", fmt.Errorf("cohere: %s: %s", res.Status(), apiErr.Message)
		}
		return "", fmt.Errorf("cohere: %s", res.Status())
	}

	if len(result.Generations) == 0 {
		return "", nil
	}
	return result.Generations[0].Text, nil
}
