package openai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/customHttpClient"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	logger       *logger_i.Logger
	openaiClient *client
	once         sync.Once
)

type client struct {
	sdk            openaisdk.Client
	modelName      string
	embeddingModel string
}

func GetOpenAIClient(apikey string) provider.Gateway {
	once.Do(func() {
		logger = logger_i.NewLogger("provider_openai")
		if apikey == "" {
			logger.Error("OpenAI API key missing")
			return
		}
		openaiClient = &client{
			sdk: openaisdk.NewClient(
				option.WithAPIKey(apikey),
				option.WithHTTPClient(customHttpClient.PooledClient()),
			),
			modelName:      config.OpenAIModelName,
			embeddingModel: config.OpenAIEmbeddingModel,
		}
		logger.Info("OpenAI client created", "model", config.OpenAIModelName)
	})

	if openaiClient == nil {
		return nil
	}
	return openaiClient
}

func (c *client) Name() string {
	return "openai/" + c.modelName
}

func (c *client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.modelName),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices: %w", provider.ErrTransient)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model:      openaisdk.EmbeddingModel(c.embeddingModel),
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openaisdk.Int(int64(config.EmbeddingDimensionality)),
	})
	if err != nil {
		return nil, classify(err)
	}

	vectors := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// OpenAI embeddings are symmetric, so the query side reuses the batch call.
func (c *client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned: %w", provider.ErrTransient)
	}
	return vectors[0], nil
}

func classify(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return fmt.Errorf("openai: %v: %w", err, provider.ErrRateLimited)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("openai: %v: %w", err, provider.ErrTransient)
		case apiErr.StatusCode == 400:
			return fmt.Errorf("openai: %v: %w", err, provider.ErrBadInput)
		}
	}
	return err
}
