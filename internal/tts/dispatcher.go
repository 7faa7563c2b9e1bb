package tts

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Observer receives per-call outcomes. Implemented by the metrics package.
type Observer interface {
	ObserveSynthesis(mode, outcome string, elapsed time.Duration)
	ObserveVoices(mode, outcome string)
}

const outcomeOK = "ok"

func outcome(e *APIError) string {
	return "code_" + strconv.Itoa(int(e.Code))
}

type nopObserver struct{}

func (nopObserver) ObserveSynthesis(string, string, time.Duration) {}
func (nopObserver) ObserveVoices(string, string)                   {}

// Dispatcher runs validation, adapter invocation and error normalization.
// Every error it returns is an *APIError.
type Dispatcher struct {
	registry  *Registry
	validator *Validator
	observer  Observer
}

func NewDispatcher(registry *Registry, observer Observer) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{
		registry:  registry,
		validator: NewValidator(registry),
		observer:  observer,
	}
}

// Synthesis is a successful /tts outcome.
type Synthesis struct {
	ID     string
	Result *SynthesisResult
}

// HandleTTS validates q and synthesizes it with the resolved adapter.
func (d *Dispatcher) HandleTTS(ctx context.Context, q Query) (*Synthesis, *APIError) {
	start := time.Now()
	id := uuid.NewString()

	adapter, req, err := d.validator.Validate(ctx, q)
	if err != nil {
		apiErr := Normalize(err)
		d.observer.ObserveSynthesis(d.modeLabel(q.Mode), outcome(apiErr), time.Since(start))
		slog.Debug("synthesis rejected", "id", id, "mode", q.Mode, "code", apiErr.Code, "error", apiErr.Display)
		return nil, apiErr
	}

	result, err := adapter.Synthesize(ctx, req)
	if err != nil {
		apiErr := Normalize(err)
		d.observer.ObserveSynthesis(d.modeLabel(q.Mode), outcome(apiErr), time.Since(start))
		slog.Warn("synthesis failed",
			"id", id,
			"mode", q.Mode,
			"voice", req.Voice,
			"code", apiErr.Code,
			"error", err,
		)
		return nil, apiErr
	}

	if result.ContentType == "" {
		result.ContentType = req.Format.ContentType()
	}

	elapsed := time.Since(start)
	d.observer.ObserveSynthesis(d.modeLabel(q.Mode), outcomeOK, elapsed)
	slog.Info("synthesis complete",
		"id", id,
		"mode", q.Mode,
		"voice", req.Voice,
		"format", req.Format,
		"bytes", len(result.Audio),
		"latency_ms", elapsed.Milliseconds(),
	)
	return &Synthesis{ID: id, Result: result}, nil
}

// HandleVoices lists the voices of mode. With raw set the adapter's native
// shape is returned, otherwise a list of voice ids.
func (d *Dispatcher) HandleVoices(ctx context.Context, mode Mode, raw bool) (any, *APIError) {
	adapter, err := d.registry.Resolve(mode)
	if err != nil {
		apiErr := Normalize(err)
		d.observer.ObserveVoices(d.modeLabel(mode), outcome(apiErr))
		return nil, apiErr
	}

	list, err := adapter.ListVoices(ctx)
	if err != nil {
		apiErr := Normalize(err)
		d.observer.ObserveVoices(d.modeLabel(mode), outcome(apiErr))
		slog.Warn("voice listing failed", "mode", mode, "error", err)
		return nil, apiErr
	}

	d.observer.ObserveVoices(d.modeLabel(mode), outcomeOK)
	if raw {
		if list.Raw != nil {
			return list.Raw, nil
		}
		return list.Voices, nil
	}
	return list.IDs(), nil
}

// HandleModes returns the registered modes in a stable order.
func (d *Dispatcher) HandleModes() []Mode {
	return d.registry.Modes()
}

// modeLabel keeps metric label cardinality bounded to registered modes.
func (d *Dispatcher) modeLabel(m Mode) string {
	if _, err := d.registry.Resolve(m); err != nil {
		return "unknown"
	}
	return string(m)
}
