// Package query answers questions over ingested PDFs: it retrieves the most
// similar chunks and, when a chat model is configured, asks it to answer
// from those chunks only.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragpdf-go/internal/budget"
	"github.com/54b3r/ragpdf-go/internal/logging"
	"github.com/54b3r/ragpdf-go/internal/rag"
)

// ErrMissingQuestion is returned when the question is empty.
var ErrMissingQuestion = errors.New("query: question is required")

// systemPrompt constrains the model to the retrieved context.
const systemPrompt = `You answer questions about documents the user has uploaded.
Use only the context passages provided. If they do not contain the answer,
say that you do not know. Be concise.`

// Answer is the result of one question.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
}

// Service retrieves context and optionally generates an answer.
type Service struct {
	retriever rag.Retriever
	chat      model.BaseChatModel
	maxTokens int
}

// Option customises a Service.
type Option func(*Service)

// WithChatModel enables answer generation.
func WithChatModel(m model.BaseChatModel) Option {
	return func(s *Service) { s.chat = m }
}

// WithMaxContextTokens sets the prompt budget. Defaults to
// budget.DefaultMaxContextTokens.
func WithMaxContextTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewService constructs a Service.
func NewService(retriever rag.Retriever, opts ...Option) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("query: retriever must not be nil")
	}
	s := &Service{
		retriever: retriever,
		maxTokens: budget.DefaultMaxContextTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask retrieves up to topK chunks for question and, if a chat model is
// configured, generates an answer from them. topK <= 0 uses rag.DefaultTopK.
func (s *Service) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrMissingQuestion
	}
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	log := logging.FromContext(ctx)

	found, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("query: retrieve: %w", err)
	}

	ans := &Answer{
		Sources:     found.Sources,
		NumContexts: len(found.Contexts),
	}
	if s.chat == nil || len(found.Contexts) == 0 {
		return ans, nil
	}

	msgs := s.buildMessages(ctx, question, found.Contexts)
	reply, err := s.chat.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("query: generate: %w", err)
	}
	ans.Answer = strings.TrimSpace(reply.Content)

	log.Info("query: answered", slog.Int("contexts", ans.NumContexts), slog.Int("answer_chars", len(ans.Answer)))
	return ans, nil
}

// buildMessages assembles [system, context, user], dropping the lowest-ranked
// contexts that do not fit the prompt budget.
func (s *Service) buildMessages(ctx context.Context, question string, contexts []string) []*schema.Message {
	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(question),
	}

	kept := budget.TrimContexts(fixed, contexts, s.maxTokens)
	if dropped := len(contexts) - len(kept); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped contexts to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", s.maxTokens),
		)
	}

	return []*schema.Message{
		fixed[0],
		schema.SystemMessage(formatContexts(kept)),
		fixed[1],
	}
}

// formatContexts numbers each passage so the model can tell them apart.
func formatContexts(contexts []string) string {
	var sb strings.Builder
	sb.WriteString("Context passages:\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&sb, "[%d]\n%s\n\n", i+1, c)
	}
	return sb.String()
}
