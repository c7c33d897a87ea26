package recognizer

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/pkg/errors"
)

// textDetector is the slice of the Rekognition client used here
type textDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionRecognizer reads text from images with AWS Rekognition.
// PDFs are not supported by DetectText.
type RekognitionRecognizer struct {
	client textDetector
}

// NewRekognitionRecognizer loads AWS credentials from the default chain.
func NewRekognitionRecognizer(ctx context.Context, region string) (*RekognitionRecognizer, error) {
	if region == "" {
		return nil, errors.Configuration("recognition.aws_region")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Configuration("aws credentials")
	}
	return &RekognitionRecognizer{client: rekognition.NewFromConfig(cfg)}, nil
}

func (r *RekognitionRecognizer) Name() string { return StrategyRekognition }

func (r *RekognitionRecognizer) CanProcess(mediaType domain.MediaType) bool {
	return mediaType == domain.MediaImage
}

func (r *RekognitionRecognizer) Recognize(ctx context.Context, req *domain.ExtractionRequest) (*domain.RecognitionResult, error) {
	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: req.Data},
	})
	if err != nil {
		return nil, classify(ctx, "rekognition", err)
	}

	// LINE detections come back in reading order; WORD detections repeat them.
	var lines []string
	for _, d := range out.TextDetections {
		if d.Type != types.TextTypesLine {
			continue
		}
		if text := strings.TrimSpace(aws.ToString(d.DetectedText)); text != "" {
			lines = append(lines, text)
		}
	}

	result := &domain.RecognitionResult{
		Strategy: StrategyRekognition,
		RawText:  strings.Join(lines, "\n"),
	}
	if len(lines) == 0 {
		result.Warnings = append(result.Warnings, domain.WarningEmptyText)
	}
	return result, nil
}
