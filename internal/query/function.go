package query

import (
	"context"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/rag"
)

// Function identity for the query handler.
const (
	FunctionID   = "rag-query-pdf-ai"
	FunctionName = "RAG: Query PDF"
)

// NewQueryFunction binds s to the rag/query_pdf_ai trigger. The event data
// carries question and an optional top_k.
func NewQueryFunction(s *Service) events.Function {
	return events.Function{
		ID:      FunctionID,
		Name:    FunctionName,
		Trigger: events.TriggerQueryPDF,
		Handler: func(ctx context.Context, evt events.Event) (any, error) {
			return s.Ask(ctx, evt.String("question"), evt.Int("top_k", rag.DefaultTopK))
		},
	}
}
