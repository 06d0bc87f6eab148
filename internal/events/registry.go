package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/54b3r/ragpdf-go/internal/logging"
)

var (
	// ErrDuplicateFunction is returned by Register when the function ID is
	// already registered.
	ErrDuplicateFunction = errors.New("events: duplicate function id")

	// ErrDuplicateEvent is returned by Dispatch when the event ID was already
	// seen by the configured Deduper.
	ErrDuplicateEvent = errors.New("events: duplicate event")

	// ErrMissingName is returned by Dispatch for an event without a name.
	ErrMissingName = errors.New("events: event name is required")
)

// HandlerFunc processes one event and returns a JSON-serialisable output.
type HandlerFunc func(ctx context.Context, evt Event) (any, error)

// Function is a handler bound to a trigger event name.
type Function struct {
	// ID uniquely identifies the function (e.g. "rag-ingest-pdf").
	ID string `json:"id"`
	// Name is a human-readable label.
	Name string `json:"name"`
	// Trigger is the event name that runs this function.
	Trigger string `json:"trigger"`
	// Handler does the work.
	Handler HandlerFunc `json:"-"`
}

// Run is the outcome of one function invocation.
type Run struct {
	FunctionID string        `json:"function_id"`
	EventID    string        `json:"event_id"`
	Output     any           `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Failed reports whether the handler returned an error.
func (r Run) Failed() bool {
	return r.Error != ""
}

// Deduper reports whether an event ID has been seen before. Seen must record
// the ID as a side effect so a second call for the same ID returns true.
// Forget undoes that record; Dispatch calls it when a run fails so the event
// can be redelivered.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithDeduper makes Dispatch reject event IDs the Deduper has already seen.
func WithDeduper(d Deduper) Option {
	return func(r *Registry) { r.dedup = d }
}

// WithRunHook registers a callback invoked after every function run.
// The server uses it to record metrics.
func WithRunHook(fn func(Function, Run)) Option {
	return func(r *Registry) { r.onRun = fn }
}

// Registry maps trigger names to functions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	fns   []Function
	ids   map[string]struct{}
	dedup Deduper
	onRun func(Function, Run)
	now   func() time.Time
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ids: make(map[string]struct{}),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds fn to the registry.
func (r *Registry) Register(fn Function) error {
	if fn.ID == "" {
		return fmt.Errorf("events: function id is required")
	}
	if fn.Trigger == "" {
		return fmt.Errorf("events: function %q has no trigger", fn.ID)
	}
	if fn.Handler == nil {
		return fmt.Errorf("events: function %q has no handler", fn.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[fn.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, fn.ID)
	}
	r.ids[fn.ID] = struct{}{}
	r.fns = append(r.fns, fn)
	return nil
}

// Functions returns the registered functions in registration order.
func (r *Registry) Functions() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Function, len(r.fns))
	copy(out, r.fns)
	return out
}

// matching returns the functions subscribed to name.
func (r *Registry) matching(name string) []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Function
	for _, fn := range r.fns {
		if fn.Trigger == name {
			out = append(out, fn)
		}
	}
	return out
}

// Dispatch normalizes evt and runs every function whose trigger matches its
// name, sequentially. An unknown name yields zero runs and no error.
// Handler errors are recorded on their Run and returned joined, and the event
// ID is released from the Deduper so a retry with the same ID runs again.
func (r *Registry) Dispatch(ctx context.Context, evt Event) ([]Run, error) {
	if evt.Name == "" {
		return nil, ErrMissingName
	}
	evt.Normalize(r.now())

	log := logging.FromContext(ctx).With(
		slog.String("event", evt.Name),
		slog.String("event_id", evt.ID),
	)

	if r.dedup != nil {
		seen, err := r.dedup.Seen(ctx, evt.ID)
		if err != nil {
			return nil, fmt.Errorf("events: dedup check: %w", err)
		}
		if seen {
			log.Info("events: duplicate event ignored")
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, evt.ID)
		}
	}

	fns := r.matching(evt.Name)
	if len(fns) == 0 {
		log.Debug("events: no function subscribed")
		return []Run{}, nil
	}

	runs := make([]Run, 0, len(fns))
	var errs []error
	for _, fn := range fns {
		run := r.invoke(logging.WithLogger(ctx, log.With(slog.String("function", fn.ID))), fn, evt)
		if run.Failed() {
			errs = append(errs, fmt.Errorf("events: function %s: %s", fn.ID, run.Error))
		}
		runs = append(runs, run)
	}

	err := errors.Join(errs...)
	if err != nil && r.dedup != nil {
		if ferr := r.dedup.Forget(ctx, evt.ID); ferr != nil {
			log.Warn("events: could not release failed event for retry", slog.Any("error", ferr))
		}
	}
	return runs, err
}

// invoke runs a single handler and converts its result into a Run.
func (r *Registry) invoke(ctx context.Context, fn Function, evt Event) Run {
	log := logging.FromContext(ctx)
	start := r.now()

	out, err := fn.Handler(ctx, evt)

	elapsed := r.now().Sub(start)
	run := Run{
		FunctionID: fn.ID,
		EventID:    evt.ID,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}
	if err != nil {
		run.Error = err.Error()
		log.Error("events: function failed", slog.String("error", run.Error), slog.Int64("duration_ms", run.DurationMS))
	} else {
		run.Output = out
		log.Info("events: function completed", slog.Int64("duration_ms", run.DurationMS))
	}

	if r.onRun != nil {
		r.onRun(fn, run)
	}
	return run
}
