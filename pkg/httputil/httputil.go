package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
)

// Response is the envelope for every API response. Success mirrors the
// HTTP status class; errors always carry a non-2xx status.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta carries list metadata
type Meta struct {
	Total int `json:"total"`
}

func write(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	})
}

// JSONWithMeta sends a JSON response with metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data any, meta *Meta) {
	write(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error sends an error response with the message localized to the request
// locale. Errors that are not AppErrors never leak their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		write(w, appErr.StatusCode, Response{
			Error: &ErrorBody{
				Code:    appErr.Code,
				Message: appErr.Localize(r.Context()),
				Details: appErr.Details,
			},
		})
		return
	}

	write(w, http.StatusInternalServerError, Response{
		Error: &ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: i18n.TFromContext(r.Context(), "errors.internal"),
		},
	})
}

// DecodeJSON decodes the request body into v
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errors.TooLarge("body", tooBig.Limit)
		}
		return errors.BadRequest("invalid JSON body").WithKey("errors.invalid_json")
	}
	return nil
}

// envelopeSlack is room for the JSON around a large field
const envelopeSlack = 64 << 10

// LimitBody caps a JSON body whose main field holds at most maxBytes
func LimitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	limitBody(w, r, maxBytes+envelopeSlack, maxBytes)
}

// LimitBase64Body caps a JSON body that carries a base64 file of at most
// maxBytes decoded bytes. Base64 inflates by 4/3.
func LimitBase64Body(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	limitBody(w, r, maxBytes*4/3+envelopeSlack, maxBytes)
}

func limitBody(w http.ResponseWriter, r *http.Request, bodyLimit, reported int64) {
	r.Body = &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, bodyLimit), limit: reported}
}

// limitedBody reports an oversized body as 413 naming the payload limit
// rather than the raw body limit
type limitedBody struct {
	io.ReadCloser
	limit int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooBig *http.MaxBytesError
	if err != nil && errors.As(err, &tooBig) {
		return n, errors.TooLarge("body", b.limit)
	}
	return n, err
}
