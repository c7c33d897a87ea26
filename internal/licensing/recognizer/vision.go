package recognizer

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/pkg/errors"
)

// files:annotate reads the first five pages when no pages are named
const visionFeature = "DOCUMENT_TEXT_DETECTION"

var visionLanguageHints = []string{"he", "en"}

// VisionRecognizer reads document text with Google Cloud Vision.
type VisionRecognizer struct {
	svc *vision.Service
}

// NewVisionRecognizer creates a Vision recognizer. An empty API key is a
// configuration error. Extra options are appended after the key, which lets
// tests point the client at a local endpoint.
func NewVisionRecognizer(ctx context.Context, apiKey, endpoint string, opts ...option.ClientOption) (*VisionRecognizer, error) {
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.Configuration("recognition.vision_api_key")
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := vision.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("vision: create client: %w", err)
	}
	return &VisionRecognizer{svc: svc}, nil
}

func (v *VisionRecognizer) Name() string { return StrategyVision }

func (v *VisionRecognizer) CanProcess(mediaType domain.MediaType) bool {
	return mediaType == domain.MediaImage || mediaType == domain.MediaPDF
}

func (v *VisionRecognizer) Recognize(ctx context.Context, req *domain.ExtractionRequest) (*domain.RecognitionResult, error) {
	content := base64.StdEncoding.EncodeToString(req.Data)
	features := []*vision.Feature{{Type: visionFeature}}
	imageContext := &vision.ImageContext{LanguageHints: visionLanguageHints}

	var (
		responses []*vision.AnnotateImageResponse
		err       error
	)
	if req.MediaType == domain.MediaPDF {
		responses, err = v.annotateFile(ctx, content, features, imageContext)
	} else {
		responses, err = v.annotateImage(ctx, content, features, imageContext)
	}
	if err != nil {
		return nil, classify(ctx, "vision", err)
	}

	var text string
	for _, r := range responses {
		if r == nil {
			continue
		}
		if r.Error != nil && r.Error.Message != "" {
			return nil, errors.Upstream("vision", fmt.Errorf("annotate: %s", r.Error.Message))
		}
		if r.FullTextAnnotation != nil && r.FullTextAnnotation.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += r.FullTextAnnotation.Text
		}
	}

	result := &domain.RecognitionResult{Strategy: StrategyVision, RawText: text}
	if text == "" {
		result.Warnings = append(result.Warnings, domain.WarningEmptyText)
	}
	return result, nil
}

func (v *VisionRecognizer) annotateImage(ctx context.Context, content string, features []*vision.Feature, imageContext *vision.ImageContext) ([]*vision.AnnotateImageResponse, error) {
	resp, err := v.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:        &vision.Image{Content: content},
			Features:     features,
			ImageContext: imageContext,
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Responses, nil
}

func (v *VisionRecognizer) annotateFile(ctx context.Context, content string, features []*vision.Feature, imageContext *vision.ImageContext) ([]*vision.AnnotateImageResponse, error) {
	resp, err := v.svc.Files.Annotate(&vision.BatchAnnotateFilesRequest{
		Requests: []*vision.AnnotateFileRequest{{
			InputConfig:  &vision.InputConfig{Content: content, MimeType: "application/pdf"},
			Features:     features,
			ImageContext: imageContext,
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	var out []*vision.AnnotateImageResponse
	for _, file := range resp.Responses {
		if file == nil {
			continue
		}
		if file.Error != nil && file.Error.Message != "" {
			return nil, fmt.Errorf("annotate file: %s", file.Error.Message)
		}
		out = append(out, file.Responses...)
	}
	return out, nil
}
