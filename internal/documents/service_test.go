package documents

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/testutil"
)

// keywordEmbedder scores a text by whether it mentions each keyword
type keywordEmbedder struct {
	keywords []string
	docErr   error
	queryErr error
	embedded []string
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(e.keywords)+1)
	v[len(e.keywords)] = 0.01
	for i, k := range e.keywords {
		if strings.Contains(strings.ToLower(text), k) {
			v[i] = 1
		}
	}
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.docErr != nil {
		return nil, e.docErr
	}
	e.embedded = texts
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.vector(text), nil
}

type fakeChat struct {
	reply    string
	err      error
	system   string
	question string
}

func (c *fakeChat) Answer(_ context.Context, system, question string) (string, error) {
	c.system, c.question = system, question
	return c.reply, c.err
}

func testConfig() *config.DocumentsConfig {
	return &config.DocumentsConfig{ChunkSize: 60, ChunkOverlap: 0, TopK: 2, MaxDocumentBytes: 1 << 20}
}

const manual = "Opening hours are Sunday to Thursday.\n\n" +
	"The annual test costs 250 NIS per car.\n\n" +
	"Bring the car registration and your ID.\n\n" +
	"Brakes are checked on the roller bench."

func TestAsk_AnswersFromClosestPassages(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"cost", "registration", "brakes"}}
	chat := &fakeChat{reply: "The test costs 250 NIS."}
	svc := NewService(emb, chat, testConfig(), logger.Nop())

	got, err := svc.Ask(context.Background(), AskRequest{Query: "How much does the test cost?", DocumentText: manual})
	require.NoError(t, err)

	assert.Equal(t, "The test costs 250 NIS.", got.Answer)
	assert.False(t, got.IsFallback)
	require.Len(t, got.Citations, 2)
	assert.Equal(t, 1, got.Citations[0].ID)
	assert.Equal(t, "The annual test costs 250 NIS per car....", got.Citations[0].Text)
	assert.Greater(t, got.Citations[0].Score, got.Citations[1].Score)

	assert.Equal(t, "How much does the test cost?", chat.question)
	assert.Contains(t, chat.system, "based ONLY on the following context")
	assert.Contains(t, chat.system, "The annual test costs 250 NIS per car.\n\n---\n\n")
	assert.Len(t, emb.embedded, 4)
}

func TestAsk_CitationTruncatedToHundredRunes(t *testing.T) {
	long := strings.Repeat("ב", 150)
	chat := &fakeChat{reply: "ok"}
	svc := NewService(&keywordEmbedder{}, chat, &config.DocumentsConfig{ChunkSize: 1000, ChunkOverlap: 200, TopK: 3}, logger.Nop())

	got, err := svc.Ask(context.Background(), AskRequest{Query: "?", DocumentText: long})
	require.NoError(t, err)

	require.Len(t, got.Citations, 1)
	assert.Equal(t, strings.Repeat("ב", 100)+"...", got.Citations[0].Text)
}

func TestAsk_EmptyDocumentStillAsks(t *testing.T) {
	emb := &keywordEmbedder{}
	chat := &fakeChat{reply: notFoundAnswer}
	svc := NewService(emb, chat, testConfig(), logger.Nop())

	got, err := svc.Ask(context.Background(), AskRequest{Query: "Anything?"})
	require.NoError(t, err)
	assert.Equal(t, notFoundAnswer, got.Answer)
	assert.Empty(t, got.Citations)
	assert.Nil(t, emb.embedded)
}

func TestAsk_EmbeddingFailureFallsBack(t *testing.T) {
	for _, emb := range []*keywordEmbedder{
		{docErr: fmt.Errorf("connection reset")},
		{queryErr: status.Error(codes.ResourceExhausted, "quota exceeded")},
	} {
		chat := &fakeChat{}
		svc := NewService(emb, chat, testConfig(), logger.Nop())

		ctx := i18n.WithLocale(context.Background(), "en")
		got, err := svc.Ask(ctx, AskRequest{Query: "cost?", DocumentText: manual})
		require.NoError(t, err)

		assert.True(t, got.IsFallback)
		assert.Equal(t, []Citation{}, got.Citations)
		assert.Contains(t, got.Answer, "unavailable")
		assert.Empty(t, chat.question, "model not called")
	}
}

func TestAsk_ChatQuotaFallsBack(t *testing.T) {
	for _, chatErr := range []error{
		&googleapi.Error{Code: http.StatusTooManyRequests},
		status.Error(codes.ResourceExhausted, "resource exhausted"),
		fmt.Errorf("You exceeded your current quota"),
	} {
		svc := NewService(&keywordEmbedder{}, &fakeChat{err: chatErr}, testConfig(), logger.Nop())

		got, err := svc.Ask(context.Background(), AskRequest{Query: "cost?", DocumentText: manual})
		require.NoError(t, err, chatErr.Error())
		assert.True(t, got.IsFallback)
	}
}

func TestAsk_ChatErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"server error", &googleapi.Error{Code: http.StatusInternalServerError}, errors.ErrUpstream},
		{"bad key", status.Error(codes.PermissionDenied, "API key not valid"), errors.ErrConfiguration},
		{"deadline", context.DeadlineExceeded, errors.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&keywordEmbedder{}, &fakeChat{err: tt.err}, testConfig(), logger.Nop())

			got, err := svc.Ask(context.Background(), AskRequest{Query: "cost?", DocumentText: manual})
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestAsk_Validation(t *testing.T) {
	svc := NewService(&keywordEmbedder{}, &fakeChat{}, &config.DocumentsConfig{MaxDocumentBytes: 10}, logger.Nop())

	_, err := svc.Ask(context.Background(), AskRequest{Query: "  ", DocumentText: "short"})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "errors.missing_query", appErr.MessageKey)

	_, err = svc.Ask(context.Background(), AskRequest{Query: "q", DocumentText: "more than ten bytes"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErr.StatusCode)
}

func TestAsk_Unconfigured(t *testing.T) {
	svc := NewService(nil, nil, testConfig(), logger.Nop())

	_, err := svc.Ask(context.Background(), AskRequest{Query: "q", DocumentText: manual})
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestHandler_Ask(t *testing.T) {
	chat := &fakeChat{reply: "250 NIS"}
	h := NewHandler(NewService(&keywordEmbedder{keywords: []string{"cost"}}, chat, testConfig(), logger.Nop()), logger.Nop())

	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Ask), testutil.NewHTTPRequest(http.MethodPost, "/documents/ask",
		AskRequest{Query: "cost?", DocumentText: manual}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp struct {
		Success bool   `json:"success"`
		Data    Answer `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "250 NIS", resp.Data.Answer)
	assert.Len(t, resp.Data.Citations, 2)
}

func TestHandler_AskMissingQuery(t *testing.T) {
	h := NewHandler(NewService(&keywordEmbedder{}, &fakeChat{}, testConfig(), logger.Nop()), logger.Nop())

	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Ask), testutil.NewHTTPRequest(http.MethodPost, "/documents/ask",
		AskRequest{DocumentText: manual}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
