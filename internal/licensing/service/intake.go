package service

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/testme/testme-backend/internal/licensing/domain"
	"github.com/testme/testme-backend/pkg/errors"
)

// AnalyzeInput is the extraction request as received from the booking form
type AnalyzeInput struct {
	ImageBase64 string `json:"imageBase64"`
	FileType    string `json:"fileType,omitempty"`
	FileName    string `json:"fileName,omitempty"`
}

// Accepted content types, keyed by every alias the form has been seen to send.
var contentTypes = map[string]string{
	"image/jpeg":      "image/jpeg",
	"image/jpg":       "image/jpeg",
	"image/pjpeg":     "image/jpeg",
	"jpeg":            "image/jpeg",
	"jpg":             "image/jpeg",
	"image/png":       "image/png",
	"png":             "image/png",
	"image/webp":      "image/webp",
	"webp":            "image/webp",
	"application/pdf": "application/pdf",
	"pdf":             "application/pdf",
}

// decode validates the payload and resolves its content type. The declared
// type wins over the file extension; sniffing is the last resort.
func decode(in AnalyzeInput, maxBytes int64) (*domain.ExtractionRequest, error) {
	payload := strings.TrimSpace(in.ImageBase64)
	declared := in.FileType

	// data:image/png;base64,....
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, errors.InvalidInput("imageBase64", "errors.invalid_payload")
		}
		if declared == "" {
			declared = strings.TrimSuffix(strings.TrimPrefix(payload[:comma], "data:"), ";base64")
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return nil, errors.InvalidInput("imageBase64", "errors.empty_payload")
	}

	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return nil, tooLarge(maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(stripWhitespace(payload))
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(stripWhitespace(payload)); err != nil {
			return nil, errors.InvalidInput("imageBase64", "errors.invalid_payload")
		}
	}
	if len(data) == 0 {
		return nil, errors.InvalidInput("imageBase64", "errors.empty_payload")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, tooLarge(maxBytes)
	}

	contentType := resolveContentType(declared, in.FileName, data)
	if contentType == "" {
		return nil, errors.InvalidInput("fileType", "errors.unsupported_file_type")
	}

	mediaType := domain.MediaImage
	if contentType == "application/pdf" {
		mediaType = domain.MediaPDF
	}

	return &domain.ExtractionRequest{
		Data:        data,
		MediaType:   mediaType,
		ContentType: contentType,
		FileName:    in.FileName,
	}, nil
}

// DecodeDocument validates a base64 or data-URL document the same way the
// extraction endpoint does. The booking form reuses it for license photos.
func DecodeDocument(payload, fileName string, maxBytes int64) (*domain.ExtractionRequest, error) {
	return decode(AnalyzeInput{ImageBase64: payload, FileName: fileName}, maxBytes)
}

func resolveContentType(declared, fileName string, data []byte) string {
	if declared = strings.ToLower(strings.TrimSpace(declared)); declared != "" {
		return contentTypes[declared]
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."); ext != "" {
		if ct, ok := contentTypes[ext]; ok {
			return ct
		}
	}
	return contentTypes[sniff(data)]
}

// sniff detects the media type from the file signature, without parameters
func sniff(data []byte) string {
	ct := mimetype.Detect(data).String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func tooLarge(maxBytes int64) *errors.AppError {
	return errors.TooLarge("imageBase64", maxBytes)
}
