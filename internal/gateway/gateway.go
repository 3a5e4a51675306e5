// Package gateway resolves operation names, validates and normalizes their
// arguments, invokes the matching handler and always answers with exactly
// one envelope.
//
// The dispatcher holds no mutable state: concurrent calls need no locking
// here, and the subsystems behind the handlers guard themselves.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
	"github.com/HendryAvila/agi-mcp/internal/envelope"
	"github.com/HendryAvila/agi-mcp/internal/events"
	"github.com/HendryAvila/agi-mcp/internal/telemetry"
	"github.com/HendryAvila/agi-mcp/internal/tools"
)

// Options carries the dispatcher's ambient dependencies. Zero values fall
// back to no-ops.
type Options struct {
	Logger  *zap.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
	Events  events.Publisher
}

// Dispatcher routes calls to handlers.
type Dispatcher struct {
	handlers [catalog.Count]tools.Handler
	schemas  [catalog.Count]*jsonschema.Schema

	log     *zap.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	events  events.Publisher
}

// New builds a dispatcher over the given subsystems.
func New(sub tools.Subsystems, opts Options) (*Dispatcher, error) {
	return NewWithHandlers(tools.Handlers(sub), opts)
}

// NewWithHandlers builds a dispatcher over an explicit handler table. It
// fails when the catalog is inconsistent or an operation has no handler.
func NewWithHandlers(handlers [catalog.Count]tools.Handler, opts Options) (*Dispatcher, error) {
	if err := catalog.Check(); err != nil {
		return nil, fmt.Errorf("catalog is inconsistent: %w", err)
	}
	var missing []error
	for _, op := range catalog.Operations() {
		if handlers[op] == nil {
			missing = append(missing, fmt.Errorf("no handler for %s", op))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		handlers: handlers,
		schemas:  schemas,
		log:      opts.Logger,
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
		events:   opts.Events,
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.tracer == nil {
		d.tracer = nooptrace.NewTracerProvider().Tracer(telemetry.ScopeName)
	}
	if d.events == nil {
		d.events = events.NoOpPublisher{}
	}
	return d, nil
}

// Dispatch serves one call. It never returns an error: every failure is an
// error envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) envelope.Envelope {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, d.tracer, "gateway.dispatch", telemetry.AttrToolName.String(name))
	defer span.End()

	env := d.dispatch(ctx, name, args)

	elapsed := time.Since(start)
	d.observe(ctx, span, name, env, elapsed)
	return env
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, raw map[string]any) envelope.Envelope {
	op, err := catalog.Lookup(name)
	if err != nil {
		return envelope.Fail(err.Error())
	}

	schema := catalog.SchemaFor(op)
	args := normalize(raw)
	if err := checkFields(schema, args); err != nil {
		return envelope.Fail(err.Error())
	}
	if err := checkTypes(d.schemas[op], args); err != nil {
		return envelope.Fail(err.Error())
	}
	applyDefaults(schema, args)

	return d.invoke(ctx, op, tools.Args(args))
}

// invoke runs the handler, turning returned errors and panics into error
// envelopes.
func (d *Dispatcher) invoke(ctx context.Context, op catalog.Operation, args tools.Args) (env envelope.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", zap.Stringer("tool", op), zap.Any("panic", r), zap.Stack("stack"))
			env = envelope.Failf("%v", r)
		}
	}()

	env, err := d.handlers[op](ctx, args)
	if err != nil {
		return envelope.Fail(err.Error())
	}
	if env.Status == "" {
		return envelope.Failf("%s returned no result", op)
	}
	return env
}

func (d *Dispatcher) observe(ctx context.Context, span trace.Span, name string, env envelope.Envelope, elapsed time.Duration) {
	status := string(env.Status)
	span.SetAttributes(attribute.String("agi.envelope.status", status))

	attrs := metric.WithAttributes(telemetry.AttrToolName.String(name))
	if d.metrics != nil {
		d.metrics.ToolDuration.Record(ctx, elapsed.Seconds(), attrs)
	}

	if env.IsError() {
		span.SetStatus(codes.Error, env.Message())
		if d.metrics != nil {
			d.metrics.ToolErrors.Add(ctx, 1, attrs)
		}
		d.log.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("error", env.Message()),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		d.log.Debug("tool call",
			zap.String("tool", name),
			zap.String("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}

	ev := events.CallEvent{
		Tool:       name,
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err := d.events.PublishCall(ctx, ev); err != nil {
		d.log.Warn("publishing call event failed", zap.String("tool", name), zap.Error(err))
	}
}
