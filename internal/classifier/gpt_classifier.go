package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/models"
)

// GPTResponse is the JSON object the model is asked to return.
type GPTResponse struct {
	Emotions map[string]float64 `json:"emotions"`
	Language string             `json:"language"`
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type GPTClassifier struct {
	client      chatCompleter
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewGPTClassifier builds a classifier backed by the chat completions API.
func NewGPTClassifier(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

const promptTemplate = `Detect the emotions expressed in the following chat message. The message may be in English, Hindi, or Hinglish (romanised Hindi mixed with English).

Use only these labels: %s.

Return a JSON object with this structure:
{
    "emotions": {"label": probability, ...},
    "language": "en|hi|hinglish"
}
Probabilities are between 0 and 1. Include only labels with probability above 0.01.

Message: %s`

func (c *GPTClassifier) Classify(ctx context.Context, text string) (models.Distribution, error) {
	if strings.TrimSpace(text) == "" {
		return models.Distribution{}, nil
	}

	prompt := fmt.Sprintf(promptTemplate, strings.Join(models.Labels, ", "), text)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: %w", ErrEmptyResult)
	}

	response := strings.TrimSpace(resp.Choices[0].Message.Content)
	dist, err := parseResponse(response)
	if err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return nil, err
	}
	return dist, nil
}

// parseResponse accepts either {"emotions": {...}} or a bare label map.
func parseResponse(response string) (models.Distribution, error) {
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var gptResponse GPTResponse
	if err := json.Unmarshal([]byte(response), &gptResponse); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	raw := gptResponse.Emotions
	if len(raw) == 0 {
		var bare map[string]float64
		if err := json.Unmarshal([]byte(response), &bare); err == nil {
			raw = bare
		}
	}

	dist := make(models.Distribution, len(raw))
	for label, p := range raw {
		label = strings.ToLower(strings.TrimSpace(label))
		if models.IsLabel(label) && p > 0 {
			dist[label] = min(p, 1)
		}
	}
	if len(dist) == 0 {
		return nil, ErrEmptyResult
	}
	return dist, nil
}

// permanent reports whether retrying err cannot help.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429
	}
	return false
}
