package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/logging"
	"github.com/54b3r/ragpdf-go/internal/store"
)

const (
	// defaultDocumentsLimit is used when GET /api/documents has no ?limit.
	defaultDocumentsLimit = 20
	// maxDocumentsLimit caps ?limit on GET /api/documents.
	maxDocumentsLimit = 500
)

// handleEvents handles POST /api/events. The body is a single event object
// or an array of them. Every event is validated before any is dispatched, so
// a 400 means nothing ran.
//
// Status codes:
//   - 200 when every run succeeded (including events nobody subscribes to)
//   - 400 on a malformed body or an event without a name
//   - 413 when the body exceeds MaxBodyBytes
//   - 409 when every event was a duplicate
//   - 500 when any run failed or the dedup store was unreachable
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	evts, err := decodeEvents(r)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Warn("events: request body too large", slog.Int64("limit", tooLarge.Limit))
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		log.Warn("events: invalid request body", slog.Any("error", err))
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	now := s.now()
	resp := eventsResponse{IDs: make([]string, 0, len(evts)), Runs: []events.Run{}}
	for i := range evts {
		evts[i].Normalize(now)
		resp.IDs = append(resp.IDs, evts[i].ID)
	}

	status := http.StatusOK
	for _, evt := range evts {
		runs, err := s.registry.Dispatch(r.Context(), evt)
		resp.Runs = append(resp.Runs, runs...)

		switch {
		case errors.Is(err, events.ErrDuplicateEvent):
			resp.Duplicates = append(resp.Duplicates, evt.ID)
			s.metrics.eventsTotal.WithLabelValues(evt.Name, outcomeDuplicate).Inc()
		case err != nil && len(runs) == 0:
			// Dispatch failed before any function ran.
			log.Error("events: dispatch failed",
				slog.String("event", evt.Name),
				slog.String("event_id", evt.ID),
				slog.Any("error", err),
			)
			resp.Error = err.Error()
			status = http.StatusInternalServerError
			s.metrics.eventsTotal.WithLabelValues(evt.Name, outcomeError).Inc()
		case err != nil:
			status = http.StatusInternalServerError
			s.metrics.eventsTotal.WithLabelValues(evt.Name, outcomeFailed).Inc()
		default:
			s.metrics.eventsTotal.WithLabelValues(evt.Name, outcomeOK).Inc()
		}
	}

	if status == http.StatusOK && len(resp.Duplicates) == len(evts) {
		status = http.StatusConflict
	}

	writeJSON(r.Context(), w, status, resp)
}

// decodeEvents reads one event or an array of events from the request body
// and checks that each has a name.
func decodeEvents(r *http.Request) ([]events.Event, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var evts []events.Event
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &evts); err != nil {
			return nil, err
		}
	} else {
		var evt events.Event
		if err := json.Unmarshal(trimmed, &evt); err != nil {
			return nil, err
		}
		evts = []events.Event{evt}
	}

	if len(evts) == 0 {
		return nil, errors.New("no events")
	}
	for i, evt := range evts {
		if evt.Name == "" {
			return nil, errors.New("event " + strconv.Itoa(i) + ": name is required")
		}
	}
	return evts, nil
}

// handleFunctions handles GET /api/functions.
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, functionsResponse{
		AppID:     s.cfg.AppID,
		Functions: s.registry.Functions(),
	})
}

// handleDocuments handles GET /api/documents?limit=n and lists the most
// recently ingested documents from the ledger.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "ingestion ledger is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := defaultDocumentsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxDocumentsLimit)
	}

	docs, err := s.ledger.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("documents: ledger query failed", slog.Any("error", err))
		http.Error(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}

	writeJSON(r.Context(), w, http.StatusOK, documentsResponse{Documents: docs})
}
