package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
)

// the embedding API takes at most this many texts per batch call
const maxEmbedBatch = 100

// Embedder turns text into vectors. Documents and queries may be embedded
// differently.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chat answers one question under a system instruction
type Chat interface {
	Answer(ctx context.Context, system, question string) (string, error)
}

// Gemini implements Embedder and Chat on one client
type Gemini struct {
	client      *genai.Client
	docs        *genai.EmbeddingModel
	query       *genai.EmbeddingModel
	chatModel   string
	temperature float32
}

// NewGemini creates the Gemini client for document answering
func NewGemini(ctx context.Context, cfg *config.DocumentsConfig) (*Gemini, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.Configuration("documents.gemini_api_key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	docs := client.EmbeddingModel(cfg.EmbeddingModel)
	docs.TaskType = genai.TaskTypeRetrievalDocument
	query := client.EmbeddingModel(cfg.EmbeddingModel)
	query.TaskType = genai.TaskTypeRetrievalQuery

	return &Gemini{
		client:      client,
		docs:        docs,
		query:       query,
		chatModel:   cfg.ChatModel,
		temperature: cfg.Temperature,
	}, nil
}

func (g *Gemini) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		batch := g.docs.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		resp, err := g.docs.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			if e == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.query.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini: empty query embedding")
	}
	return resp.Embedding.Values, nil
}

func (g *Gemini) Answer(ctx context.Context, system, question string) (string, error) {
	// a model value per call; SystemInstruction differs per document
	m := g.client.GenerativeModel(g.chatModel)
	m.SetTemperature(g.temperature)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := m.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
