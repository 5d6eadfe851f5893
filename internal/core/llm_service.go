package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/sgginc/learningchat/internal/config"
)

// ErrGateway marks completion provider failures (network, quota,
// invalid model). Callers surface it as an error payload; there are
// no retries.
var ErrGateway = errors.New("completion provider error")

// CompletionClient is the boundary to the external chat-completion
// service: a prompt and a model identifier in, response text out.
type CompletionClient interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
	Close() error
}

// NewCompletionClient builds the provider selected by configuration.
func NewCompletionClient() (CompletionClient, error) {
	switch config.AppConfig.LLMProvider {
	case "gemini":
		return NewGeminiClient(config.AppConfig.GeminiAPIKey)
	case "openai":
		return NewOpenAIClient(config.AppConfig.OpenAIAPIKey, config.AppConfig.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", config.AppConfig.LLMProvider)
	}
}

// GeminiClient serves the gemini-* models.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := c.client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini request failed: %v", ErrGateway, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrGateway)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if responseText.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned an empty response", ErrGateway)
	}
	return responseText.String(), nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// OpenAIClient serves the gpt-* models, including OpenAI-compatible
// endpoints via a custom base URL.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(clientConfig)}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai request failed: %v", ErrGateway, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrGateway)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Close() error {
	return nil
}
