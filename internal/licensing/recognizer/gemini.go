package recognizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/logger"
)

// generator sends one multimodal prompt and returns the text reply
type generator interface {
	Generate(ctx context.Context, blob genai.Blob, prompt string) (string, error)
}

// GeminiRecognizer asks a multimodal model for the license fields directly.
type GeminiRecognizer struct {
	gen    generator
	client *genai.Client
	log    *logger.Logger
}

// NewGeminiRecognizer creates a Gemini recognizer for the given model.
func NewGeminiRecognizer(ctx context.Context, apiKey, model string, log *logger.Logger) (*GeminiRecognizer, error) {
	if apiKey == "" {
		return nil, errors.Configuration("recognition.gemini_api_key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0)

	return &GeminiRecognizer{
		gen:    &genaiGenerator{model: m},
		client: client,
		log:    log.WithComponent("gemini"),
	}, nil
}

func (g *GeminiRecognizer) Name() string { return StrategyGemini }

func (g *GeminiRecognizer) CanProcess(mediaType domain.MediaType) bool {
	return mediaType == domain.MediaImage || mediaType == domain.MediaPDF
}

func (g *GeminiRecognizer) Recognize(ctx context.Context, req *domain.ExtractionRequest) (*domain.RecognitionResult, error) {
	reply, err := g.gen.Generate(ctx, genai.Blob{MIMEType: req.ContentType, Data: req.Data}, extractionPrompt)
	if err != nil {
		return nil, classify(ctx, "gemini", err)
	}

	fields, err := parseFields(reply)
	if err != nil {
		g.log.Warn().Err(err).Int("reply_len", len(reply)).Msg("unparseable model reply, returning empty fields")
		return &domain.RecognitionResult{
			Strategy:   StrategyGemini,
			RawText:    reply,
			Structured: emptyStructured(),
			Warnings:   []string{domain.WarningParseFailed},
		}, nil
	}

	return &domain.RecognitionResult{
		Strategy:   StrategyGemini,
		RawText:    reply,
		Structured: fields,
	}, nil
}

// Close releases the underlying client
func (g *GeminiRecognizer) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

type genaiGenerator struct {
	model *genai.GenerativeModel
}

func (g *genaiGenerator) Generate(ctx context.Context, blob genai.Blob, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, blob, genai.Text(prompt))
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
