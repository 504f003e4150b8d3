package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alefedor/notequiz/internal/llm/prompts"
	"github.com/alefedor/notequiz/internal/model"
)

// Client wraps an OpenAI-compatible API client for the vision-to-text and
// question-generation calls. Responses are returned raw: recovering typed
// values from them is the extractor's job, not the client's.
type Client struct {
	api         *openai.Client
	visionModel string
	textModel   string
}

// New creates a new LLM client. baseURL may point at any OpenAI-compatible
// gateway; an empty baseURL uses the default endpoint.
func New(baseURL, apiKey, visionModel, textModel string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		visionModel: visionModel,
		textModel:   textModel,
	}
}

// Ping verifies the endpoint is reachable before the server starts taking uploads.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// ExtractPage sends a page image to the vision model with the strict-JSON
// extraction instruction and returns the raw model output. The response is not
// guaranteed to honor the instruction.
func (c *Client) ExtractPage(ctx context.Context, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompts.PageExtraction},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("vision API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("vision response", "length", len(raw))
	return raw, nil
}

// GenerateQuestions asks the text model for count questions of one category
// and returns the raw response for array recovery downstream.
func (c *Client) GenerateQuestions(ctx context.Context, category model.QuestionType, text string, count int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.textModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompts.Questions(category, text, count),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("generation API call (%s): %w", category, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation model returned no choices for %s", category)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("generation response", "category", category, "length", len(raw))
	return raw, nil
}
