package ingestion

import (
	"context"

	"github.com/54b3r/ragpdf-go/internal/events"
)

// Function identity for the ingest handler.
const (
	FunctionID   = "rag-ingest-pdf"
	FunctionName = "RAG: Ingest PDF"
)

// NewIngestFunction binds p to the rag/ingest_pdf trigger. The event data
// carries pdf_path and an optional source_id.
func NewIngestFunction(p *Pipeline) events.Function {
	return events.Function{
		ID:      FunctionID,
		Name:    FunctionName,
		Trigger: events.TriggerIngestPDF,
		Handler: func(ctx context.Context, evt events.Event) (any, error) {
			res, err := p.Ingest(ctx, Source{
				Location: evt.String("pdf_path"),
				SourceID: evt.String("source_id"),
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"ingested":  res.Chunks,
				"source_id": res.SourceID,
			}, nil
		},
	}
}
