package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/internal/licensing/recognizer"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/logger"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type fakeRecognizer struct {
	name   string
	media  []domain.MediaType
	calls  atomic.Int32
	result func(ctx context.Context, call int) (*domain.RecognitionResult, error)
}

func (f *fakeRecognizer) Name() string { return f.name }

func (f *fakeRecognizer) CanProcess(m domain.MediaType) bool {
	if f.media == nil {
		return true
	}
	for _, mt := range f.media {
		if mt == m {
			return true
		}
	}
	return false
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ *domain.ExtractionRequest) (*domain.RecognitionResult, error) {
	call := int(f.calls.Add(1))
	return f.result(ctx, call)
}

func text(name, raw string) func(context.Context, int) (*domain.RecognitionResult, error) {
	return func(context.Context, int) (*domain.RecognitionResult, error) {
		return &domain.RecognitionResult{Strategy: name, RawText: raw}, nil
	}
}

func newTestService(timeout time.Duration, recognizers ...recognizer.Recognizer) *Service {
	return NewService(recognizer.NewRegistry(recognizers...), &config.RecognitionConfig{
		Timeout:        timeout,
		MaxAttempts:    2,
		RetryDelay:     10 * time.Millisecond,
		MaxUploadBytes: 1 << 20,
	}, logger.Nop())
}

func jpegInput() AnalyzeInput {
	return AnalyzeInput{ImageBase64: base64.StdEncoding.EncodeToString(jpegBytes), FileType: "image/jpeg"}
}

func TestAnalyze_RawTextScenario(t *testing.T) {
	rec := &fakeRecognizer{name: "vision", result: text("vision", "מספר רכב 12-345-67\nתאריך מבחן 05/03/24")}
	svc := newTestService(time.Second, rec)

	result, err := svc.Analyze(context.Background(), jpegInput())
	require.NoError(t, err)

	require.NotNil(t, result.Extracted.LicensePlate)
	assert.Equal(t, "1234567", *result.Extracted.LicensePlate)
	require.NotNil(t, result.Extracted.TestDate)
	assert.Equal(t, "2024-03-05", *result.Extracted.TestDate)
	assert.Equal(t, "vision", result.Strategy)
}

func TestAnalyze_NoPlateStillSucceeds(t *testing.T) {
	rec := &fakeRecognizer{name: "vision", result: text("vision", "שם: ישראל ישראלי\nמספר 123")}
	svc := newTestService(time.Second, rec)

	result, err := svc.Analyze(context.Background(), jpegInput())
	require.NoError(t, err)

	assert.Nil(t, result.Extracted.LicensePlate)
	require.NotNil(t, result.Extracted.OwnerName)
	assert.Equal(t, "ישראל ישראלי", *result.Extracted.OwnerName)
}

func TestAnalyze_RetriesUpstreamOnce(t *testing.T) {
	rec := &fakeRecognizer{name: "vision", result: func(_ context.Context, call int) (*domain.RecognitionResult, error) {
		if call == 1 {
			return nil, errors.Upstream("vision", fmt.Errorf("503"))
		}
		return &domain.RecognitionResult{Strategy: "vision", RawText: "1234567"}, nil
	}}
	svc := newTestService(time.Second, rec)

	result, err := svc.Analyze(context.Background(), jpegInput())
	require.NoError(t, err)
	assert.Equal(t, int32(2), rec.calls.Load())
	assert.Equal(t, "1234567", *result.Extracted.LicensePlate)
}

func TestAnalyze_UpstreamFailureFallsBack(t *testing.T) {
	failing := &fakeRecognizer{name: "gemini", result: func(context.Context, int) (*domain.RecognitionResult, error) {
		return nil, errors.Upstream("gemini", fmt.Errorf("503"))
	}}
	fallback := &fakeRecognizer{name: "vision", result: text("vision", "7654321")}
	svc := newTestService(time.Second, failing, fallback)

	result, err := svc.Analyze(context.Background(), jpegInput())
	require.NoError(t, err)

	assert.Equal(t, int32(2), failing.calls.Load())
	assert.Equal(t, "vision", result.Strategy)
	assert.Contains(t, result.Warnings, domain.WarningFallback)
}

func TestAnalyze_AllStrategiesFail(t *testing.T) {
	rec := &fakeRecognizer{name: "vision", result: func(context.Context, int) (*domain.RecognitionResult, error) {
		return nil, errors.Upstream("vision", fmt.Errorf("connection refused"))
	}}
	svc := newTestService(time.Second, rec)

	_, err := svc.Analyze(context.Background(), jpegInput())
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.StatusCode)
	assert.Equal(t, "errors.recognition_failed", appErr.MessageKey)
	assert.Equal(t, int32(2), rec.calls.Load())
}

func TestAnalyze_ConfigurationErrorNotRetried(t *testing.T) {
	rec := &fakeRecognizer{name: "vision", result: func(context.Context, int) (*domain.RecognitionResult, error) {
		return nil, errors.Configuration("recognition.vision_api_key")
	}}
	fallback := &fakeRecognizer{name: "gemini", result: text("gemini", "")}
	svc := newTestService(time.Second, rec, fallback)

	_, err := svc.Analyze(context.Background(), jpegInput())
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.Equal(t, int32(1), rec.calls.Load())
	assert.Equal(t, int32(0), fallback.calls.Load())
}

func TestAnalyze_TimeoutIsBounded(t *testing.T) {
	rec := &fakeRecognizer{name: "vision", result: func(ctx context.Context, _ int) (*domain.RecognitionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := newTestService(50*time.Millisecond, rec)

	start := time.Now()
	_, err := svc.Analyze(context.Background(), jpegInput())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.Less(t, elapsed, time.Second)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusGatewayTimeout, appErr.StatusCode)
	assert.Equal(t, "errors.recognition_timeout", appErr.MessageKey)
}

func TestAnalyze_PDFRoutedToCapableRecognizer(t *testing.T) {
	imagesOnly := &fakeRecognizer{name: "rekognition", media: []domain.MediaType{domain.MediaImage}, result: text("rekognition", "")}
	pdf := &fakeRecognizer{name: "vision", result: text("vision", "1234567")}
	svc := newTestService(time.Second, imagesOnly, pdf)

	result, err := svc.Analyze(context.Background(), AnalyzeInput{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 ...")),
		FileName:    "license.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "vision", result.Strategy)
	assert.Equal(t, int32(0), imagesOnly.calls.Load())
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	svc := newTestService(time.Second, &fakeRecognizer{name: "vision", result: text("vision", "")})

	_, err := svc.Analyze(context.Background(), AnalyzeInput{})
	assert.ErrorIs(t, err, errors.ErrValidation)
}
