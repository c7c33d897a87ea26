package documents

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/testme/testme-backend/pkg/logger"
)

const (
	contextSeparator = "\n\n---\n\n"
	citationRunes    = 100
	notFoundAnswer   = "I cannot find the answer in the document."
)

const systemPrompt = `You are a helpful AI assistant. Answer the user's question based ONLY on the following context.
If the answer is not in the context, say "` + notFoundAnswer + `"
Include specific references to the text where possible.

Context:
`

// AskRequest is the question and the document it is about
type AskRequest struct {
	Query        string `json:"query"`
	DocumentText string `json:"documentText"`
}

// Citation points at a passage the answer was drawn from
type Citation struct {
	ID    int     `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Answer is the reply to an AskRequest. IsFallback marks the canned reply
// sent while the model is out of quota.
type Answer struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	IsFallback bool       `json:"isFallback,omitempty"`
}

// Service answers questions about documents
type Service struct {
	splitter Splitter
	embedder Embedder
	chat     Chat
	topK     int
	maxBytes int64
	timeout  time.Duration
	logger   *logger.Logger
}

// NewService creates a document answering service. embedder and chat may
// be nil when no API key is configured; Ask then reports a configuration
// error.
func NewService(embedder Embedder, chat Chat, cfg *config.DocumentsConfig, log *logger.Logger) *Service {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &Service{
		splitter: Splitter{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		embedder: embedder,
		chat:     chat,
		topK:     topK,
		maxBytes: cfg.MaxDocumentBytes,
		timeout:  cfg.Timeout,
		logger:   log.WithComponent("documents"),
	}
}

// MaxBytes is the largest document accepted
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Ask answers req.Query from the passages of req.DocumentText most similar
// to it. Quota and embedding failures yield the fallback answer instead of
// an error.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.InvalidInput("query", "errors.missing_query")
	}
	if s.maxBytes > 0 && int64(len(req.DocumentText)) > s.maxBytes {
		return nil, errors.TooLarge("documentText", s.maxBytes)
	}
	if s.embedder == nil || s.chat == nil {
		return nil, errors.Configuration("documents.gemini_api_key")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	chunks := s.splitter.Split(req.DocumentText)
	log := s.logger.With().Int("chunks", len(chunks)).Logger()
	log.Info().Int("query_len", utf8.RuneCountInString(query)).Msg("answering document question")

	passages, err := s.retrieve(ctx, chunks, query)
	if err != nil {
		log.Warn().Err(err).Msg("embedding failed, sending fallback answer")
		return s.fallback(ctx), nil
	}

	texts := make([]string, len(passages))
	citations := make([]Citation, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
		citations[i] = Citation{ID: p.ID, Text: excerpt(p.Text), Score: p.Score}
	}

	answer, err := s.chat.Answer(ctx, systemPrompt+strings.Join(texts, contextSeparator), query)
	if err != nil {
		if isQuota(err) {
			log.Warn().Err(err).Msg("chat model out of quota, sending fallback answer")
			return s.fallback(ctx), nil
		}
		log.Error().Err(err).Msg("chat model failed")
		return nil, classify(ctx, err)
	}

	log.Info().Int("citations", len(citations)).Msg("document question answered")
	return &Answer{Answer: answer, Citations: citations}, nil
}

func (s *Service) retrieve(ctx context.Context, chunks []string, query string) ([]Passage, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, err
	}
	q, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return Rank(chunks, vectors, q, s.topK), nil
}

func (s *Service) fallback(ctx context.Context) *Answer {
	return &Answer{
		Answer:     i18n.TFromContext(ctx, "documents.fallback_answer"),
		Citations:  []Citation{},
		IsFallback: true,
	}
}

// excerpt is the first hundred runes of text followed by an ellipsis
func excerpt(text string) string {
	if utf8.RuneCountInString(text) > citationRunes {
		text = string([]rune(text)[:citationRunes])
	}
	return text + "..."
}
