package activity

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/harunnryd/hearth/internal/config"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Embedder turns text into a vector for memory similarity search.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the embedder selected by embedding.provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultEmbeddingRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse embedding request timeout: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding provider openai requires an api key")
		}
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding provider gemini requires an api key")
		}
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, timeout)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: hash, openai, gemini)", cfg.Provider)
	}
}

// HashEmbedder is a local bag-of-words embedder using feature hashing. It
// needs no network and gives stable vectors, so lexical overlap drives
// similarity.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = config.DefaultEmbeddingDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Name() string { return "hash" }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(h.dims))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		// chromem needs a non-zero vector to normalise.
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIEmbedder(apiKey, baseURL, model string, timeout time.Duration) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model, timeout: timeout}
}

func (e *OpenAIEmbedder) Name() string { return "openai" }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}
	return resp.Data[0].Embedding, nil
}

type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = config.DefaultEmbeddingGeminiModel
	}
	return &GeminiEmbedder{client: client, model: model, timeout: timeout}, nil
}

func (e *GeminiEmbedder) Name() string { return "gemini" }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embedding returned empty result")
	}
	return resp.Embeddings[0].Values, nil
}
