// Package recognizer adapts external recognition services to a single
// contract: document bytes in, raw text or field-shaped values out.
package recognizer

import (
	"context"

	"github.com/testme/testme-backend/internal/licensing/domain"
)

// Strategy names accepted in recognition.strategies
const (
	StrategyVision      = "vision"
	StrategyRekognition = "rekognition"
	StrategyGemini      = "gemini"
)

// Recognizer turns a document into text or field-shaped values.
// Implementations must not retain the request data after returning.
type Recognizer interface {
	// Name returns the strategy name for logging and the response body
	Name() string

	// CanProcess returns true if the strategy accepts the media type
	CanProcess(mediaType domain.MediaType) bool

	// Recognize performs one outbound call. Missing credentials yield a
	// configuration error, transport and non-2xx failures an upstream error.
	Recognize(ctx context.Context, req *domain.ExtractionRequest) (*domain.RecognitionResult, error)
}

// Registry holds the configured strategies in preference order
type Registry struct {
	recognizers []Recognizer
}

// NewRegistry creates a registry; earlier recognizers are preferred
func NewRegistry(recognizers ...Recognizer) *Registry {
	return &Registry{recognizers: recognizers}
}

// For returns every recognizer that accepts the media type, in order.
// Later entries are fallbacks for earlier ones.
func (r *Registry) For(mediaType domain.MediaType) []Recognizer {
	var result []Recognizer
	for _, rec := range r.recognizers {
		if rec.CanProcess(mediaType) {
			result = append(result, rec)
		}
	}
	return result
}

// Names lists the registered strategies
func (r *Registry) Names() []string {
	names := make([]string, len(r.recognizers))
	for i, rec := range r.recognizers {
		names[i] = rec.Name()
	}
	return names
}
