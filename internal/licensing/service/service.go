package service

import (
	"context"
	"time"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/internal/licensing/normalize"
	"github.com/testme/testme-backend/internal/licensing/recognizer"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/retry"
)

// Service orchestrates license extraction: intake → recognize → normalize
type Service struct {
	registry *recognizer.Registry
	policy   retry.Policy
	timeout  time.Duration
	maxBytes int64
	log      *logger.Logger
}

// NewService creates a new license extraction service
func NewService(registry *recognizer.Registry, cfg *config.RecognitionConfig, log *logger.Logger) *Service {
	s := &Service{
		registry: registry,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
		},
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxUploadBytes,
		log:      log.WithComponent("licensing"),
	}
	s.policy.OnRetry = func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Dur("wait", wait).Msg("recognition failed, retrying")
	}
	return s
}

// MaxBytes is the decoded payload limit
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Analyze extracts license fields from a base64 document. The timeout bounds
// the whole recognition step, retries and fallbacks included. A missing
// field is never an error; only a failed recognition call is.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*domain.ExtractionResult, error) {
	req, err := decode(in, s.maxBytes)
	if err != nil {
		return nil, err
	}
	// Document bytes never outlive the request.
	defer clear(req.Data)

	recognizers := s.registry.For(req.MediaType)
	if len(recognizers) == 0 {
		return nil, errors.InvalidInput("fileType", "errors.unsupported_file_type")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.recognize(ctx, req, recognizers)
	if err != nil {
		return nil, s.failure(ctx, err, time.Since(start))
	}

	extracted := normalize.Extract(result)

	s.log.Info().
		Str("strategy", result.Strategy).
		Str("media_type", string(req.MediaType)).
		Bool("plate_found", extracted.LicensePlate != nil).
		Strs("warnings", result.Warnings).
		Dur("duration", time.Since(start)).
		Msg("license extraction completed")

	return &domain.ExtractionResult{
		Text:      result.RawText,
		Extracted: extracted,
		Strategy:  result.Strategy,
		Warnings:  result.Warnings,
	}, nil
}

// recognize tries strategies in order. Only an upstream failure moves on to
// the next strategy; configuration errors and timeouts end the attempt.
func (s *Service) recognize(ctx context.Context, req *domain.ExtractionRequest, recognizers []recognizer.Recognizer) (*domain.RecognitionResult, error) {
	var lastErr error
	for i, rec := range recognizers {
		var result *domain.RecognitionResult
		err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
			var err error
			result, err = rec.Recognize(ctx, req)
			return err
		})
		if err == nil {
			if i > 0 {
				result.Warnings = append(result.Warnings, domain.WarningFallback)
			}
			return result, nil
		}

		lastErr = err
		if !errors.Is(err, errors.ErrUpstream) || ctx.Err() != nil {
			break
		}
		s.log.Warn().Err(err).Str("strategy", rec.Name()).Msg("recognition strategy failed, trying next")
	}
	return nil, lastErr
}

// failure maps a recognition error to what the caller sees. The technical
// cause is logged only.
func (s *Service) failure(ctx context.Context, err error, elapsed time.Duration) error {
	s.log.Error().Err(err).Dur("duration", elapsed).Msg("license extraction failed")

	switch {
	case ctx.Err() == context.DeadlineExceeded || errors.Is(err, errors.ErrTimeout):
		return errors.Timeout("recognition", err).WithKey("errors.recognition_timeout")
	case errors.Is(err, errors.ErrConfiguration):
		return err
	default:
		return errors.Upstream("recognition", err).WithKey("errors.recognition_failed")
	}
}
