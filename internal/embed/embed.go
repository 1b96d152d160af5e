// Package embed fills embedding vectors for graph nodes whose content
// changed since the last ingestion.
package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Provider is the embedding collaborator contract.
type Provider interface {
	// Info identifies the backing provider and model; ok is false when no
	// provider is configured.
	Info() (provider, model string, ok bool)
	// GenerateFor embeds every dirty node of a project and returns how many
	// vectors were written.
	GenerateFor(ctx context.Context, projectID string) (int, error)
}

// DirtyNode is a node missing a vector for its content.
type DirtyNode struct {
	UUID    string
	Name    string
	Content string
}

// VectorStore is the slice of the graph store the embedder needs.
type VectorStore interface {
	DirtyNodes(ctx context.Context, projectID string, limit int) ([]DirtyNode, error)
	SetEmbedding(ctx context.Context, uuid, field string, vector []float32, provider, model string) error
}

const (
	defaultModel = string(openai.SmallEmbedding3)
	batchLimit   = 64
)

// OpenAIProvider embeds through an OpenAI-compatible endpoint, paced by a
// client-side rate limiter.
type OpenAIProvider struct {
	client  *openai.Client
	store   VectorStore
	model   string
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewOpenAIProvider creates the provider. baseURL may be empty for the
// public API; requestsPerSecond bounds the call rate.
func NewOpenAIProvider(apiKey, baseURL, model string, requestsPerSecond float64, store VectorStore, logger *logrus.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		store:   store,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// Info identifies the provider and model.
func (p *OpenAIProvider) Info() (string, string, bool) {
	return "openai", p.model, true
}

// GenerateFor embeds dirty nodes in batches until none remain.
func (p *OpenAIProvider) GenerateFor(ctx context.Context, projectID string) (int, error) {
	total := 0
	for {
		nodes, err := p.store.DirtyNodes(ctx, projectID, batchLimit)
		if err != nil {
			return total, fmt.Errorf("list dirty nodes: %w", err)
		}
		if len(nodes) == 0 {
			return total, nil
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return total, err
		}

		inputs := make([]string, len(nodes))
		for i, n := range nodes {
			text := n.Content
			if text == "" {
				text = n.Name
			}
			inputs[i] = text
		}

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: inputs,
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			return total, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(nodes) {
			return total, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(nodes), len(resp.Data))
		}

		for i, n := range nodes {
			if err := p.store.SetEmbedding(ctx, n.UUID, "content", resp.Data[i].Embedding, "openai", p.model); err != nil {
				return total, fmt.Errorf("store embedding for %s: %w", n.UUID, err)
			}
			total++
		}

		p.logger.WithFields(logrus.Fields{
			"batch":   len(nodes),
			"total":   total,
			"project": projectID,
		}).Debug("embedded nodes")
	}
}
