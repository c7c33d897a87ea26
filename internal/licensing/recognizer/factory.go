package recognizer

import (
	"context"
	"fmt"
	"io"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/logger"
)

// FromConfig builds the registry named by recognition.strategies. A strategy
// whose credentials are missing is still registered and fails every call
// with its configuration error, so the service starts and reports the
// problem per request. The returned closer releases client resources.
func FromConfig(ctx context.Context, cfg *config.RecognitionConfig, log *logger.Logger) (*Registry, io.Closer, error) {
	var (
		recognizers []Recognizer
		closers     multiCloser
	)

	for _, name := range cfg.Strategies {
		var (
			rec Recognizer
			err error
		)
		switch name {
		case StrategyVision:
			rec, err = NewVisionRecognizer(ctx, cfg.VisionAPIKey, cfg.VisionURL)
		case StrategyRekognition:
			rec, err = NewRekognitionRecognizer(ctx, cfg.AWSRegion)
		case StrategyGemini:
			var g *GeminiRecognizer
			g, err = NewGeminiRecognizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
			if err == nil {
				closers = append(closers, g)
				rec = g
			}
		default:
			return nil, nil, fmt.Errorf("unknown recognition strategy %q", name)
		}

		if err != nil {
			var appErr *errors.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, errors.ErrConfiguration) {
				return nil, nil, err
			}
			log.Warn().Err(err).Str("strategy", name).Msg("recognition strategy is not configured")
			rec = &unconfigured{name: name, err: appErr}
		}
		recognizers = append(recognizers, rec)
	}

	if len(recognizers) == 0 {
		return nil, nil, fmt.Errorf("no recognition strategies configured")
	}
	return NewRegistry(recognizers...), closers, nil
}

// unconfigured stands in for a strategy that is missing its credentials
type unconfigured struct {
	name string
	err  *errors.AppError
}

func (u *unconfigured) Name() string { return u.name }

func (u *unconfigured) CanProcess(domain.MediaType) bool { return true }

func (u *unconfigured) Recognize(context.Context, *domain.ExtractionRequest) (*domain.RecognitionResult, error) {
	return nil, u.err
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
