package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	logger       *logger_i.Logger
	geminiClient *client
	once         sync.Once
	dimension    = config.EmbeddingDimensionality
)

type client struct {
	genAi          *genai.Client
	modelName      string
	embeddingModel string
}

// GetGeminiClient initializes the singleton and returns nil when the SDK
// client cannot be constructed, matching the other external services.
func GetGeminiClient(ctx context.Context, apikey string) provider.Gateway {
	once.Do(func() {
		logger = logger_i.NewLogger("provider_gemini")
		newClient(ctx, apikey)
	})

	if geminiClient == nil {
		return nil
	}
	return geminiClient
}

func newClient(ctx context.Context, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		return
	}
	geminiClient = &client{
		genAi:          c,
		modelName:      config.GeminiModelName,
		embeddingModel: config.GeminiEmbeddingModel,
	}
	logger.Info("Gemini client created", "model", config.GeminiModelName)
}

func (c *client) Name() string {
	return "gemini/" + c.modelName
}

func (c *client) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.genAi.Models.GenerateContent(
		ctx,
		c.modelName,
		genai.Text(prompt),
		&genai.GenerateContentConfig{},
	)
	if err != nil {
		return "", classify(err)
	}
	return result.Text(), nil
}

func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery uses the query-side task type so the vectors land in the same
// space the documents were indexed with.
func (c *client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("gemini: no embedding returned: %w", provider.ErrTransient)
	}
	return vectors[0], nil
}

func (c *client) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		})
	}

	result, err := c.genAi.Models.EmbedContent(ctx, c.embeddingModel, contents,
		&genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: taskType})
	if err != nil {
		return nil, classify(err)
	}

	vectors := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}

// classify maps grpc status codes onto the gateway error taxonomy so the
// throttle can tell a rate limit from everything else.
func classify(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			return fmt.Errorf("gemini: %v: %w", err, provider.ErrRateLimited)
		case codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
			return fmt.Errorf("gemini: %v: %w", err, provider.ErrTransient)
		case codes.InvalidArgument:
			return fmt.Errorf("gemini: %v: %w", err, provider.ErrBadInput)
		}
	}
	return err
}
