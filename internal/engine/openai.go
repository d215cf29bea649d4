package engine

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine talks to any server implementing the OpenAI chat completions
// API: OpenAI itself, Gemini's OpenAI-compatible endpoint, OpenRouter or a
// local llama.cpp / vLLM server.
type OpenAIEngine struct {
	client *openai.Client
}

// NewOpenAIEngine creates an OpenAIEngine. An empty baseURL targets the
// public OpenAI API.
func NewOpenAIEngine(apiKey, baseURL string) *OpenAIEngine {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &OpenAIEngine{client: openai.NewClientWithConfig(clientConfig)}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	if model == "" {
		return "", ErrNoModel
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): empty response", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// IsRunning lists models as a cheap reachability and credentials probe.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}
