package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
	"github.com/HendryAvila/agi-mcp/internal/envelope"
	"github.com/HendryAvila/agi-mcp/internal/events"
	"github.com/HendryAvila/agi-mcp/internal/telemetry"
	"github.com/HendryAvila/agi-mcp/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a handler table whose every slot echoes the arguments it
// received.
type recorder struct {
	mu   sync.Mutex
	last map[string]any
}

func (r *recorder) handlers() [catalog.Count]tools.Handler {
	var h [catalog.Count]tools.Handler
	for _, op := range catalog.Operations() {
		h[op] = func(_ context.Context, args tools.Args) (envelope.Envelope, error) {
			r.mu.Lock()
			r.last = map[string]any(args)
			r.mu.Unlock()
			return envelope.OK(envelope.Payload{"echo": map[string]any(args)}), nil
		}
	}
	return h
}

func (r *recorder) args() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func newDispatcher(t *testing.T, h [catalog.Count]tools.Handler, opts Options) *Dispatcher {
	t.Helper()
	d, err := NewWithHandlers(h, opts)
	require.NoError(t, err)
	return d
}

func decode(t *testing.T, env envelope.Envelope) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.Text()), &out))
	return out
}

func TestNewWithHandlers_MissingHandler(t *testing.T) {
	r := &recorder{}
	h := r.handlers()
	h[catalog.Operations()[3]] = nil

	_, err := NewWithHandlers(h, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler for "+catalog.Operations()[3].String())
}

func TestDispatch_UnknownOperation(t *testing.T) {
	d := newDispatcher(t, (&recorder{}).handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_time_travel", nil)
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "agi_time_travel")
}

func TestDispatch_MissingRequired(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(t, r.handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_record_outcome", map[string]any{
		"task_id":    "t1",
		"task_type":  "analysis",
		"agent_used": "coder",
		"success":    true,
	})
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "execution_time_ms")
	assert.Nil(t, r.args(), "handler must not run")
}

func TestDispatch_DefaultsEqualExplicit(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		base     map[string]any
		field    string
		explicit any
	}{
		{"lookback", "agi_detect_patterns", map[string]any{}, "lookback_days", 7},
		{"task type", "agi_execute_task", map[string]any{"description": "write docs"}, "task_type", "general"},
		{"split ratio", "agi_start_ab_test", map[string]any{"skill_name": "s", "version_a": "1.0.0", "version_b": "1.1.0"}, "split_ratio", 0.5},
		{"limit", "agi_get_improvement_history", map[string]any{}, "limit", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			d := newDispatcher(t, r.handlers(), Options{})

			env := d.Dispatch(context.Background(), tt.op, tt.base)
			require.False(t, env.IsError(), env.Text())
			implicit := tools.Args(r.args())

			withField := map[string]any{tt.field: tt.explicit}
			for k, v := range tt.base {
				withField[k] = v
			}
			env = d.Dispatch(context.Background(), tt.op, withField)
			require.False(t, env.IsError(), env.Text())
			explicit := tools.Args(r.args())

			switch tt.explicit.(type) {
			case int:
				assert.Equal(t, explicit.Int(tt.field), implicit.Int(tt.field))
			case float64:
				a, _ := explicit.Float(tt.field)
				b, _ := implicit.Float(tt.field)
				assert.Equal(t, a, b)
			default:
				assert.Equal(t, explicit.String(tt.field), implicit.String(tt.field))
			}
		})
	}
}

func TestDispatch_NullIsAbsent(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(t, r.handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_detect_patterns", map[string]any{"lookback_days": nil})
	require.False(t, env.IsError(), env.Text())
	assert.Equal(t, 7, tools.Args(r.args()).Int("lookback_days"))

	env = d.Dispatch(context.Background(), "agi_get_goal_progress", map[string]any{"goal_id": nil})
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "goal_id")
}

func TestDispatch_ExtraFieldsIgnored(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(t, r.handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_get_goal_progress", map[string]any{
		"goal_id": "g-1",
		"verbose": true,
	})
	require.False(t, env.IsError(), env.Text())
	assert.Equal(t, "g-1", tools.Args(r.args()).String("goal_id"))
}

func TestDispatch_EnumViolation(t *testing.T) {
	d := newDispatcher(t, (&recorder{}).handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_propose_modification", map[string]any{
		"code_before":       "x := 1",
		"code_after":        "x := 2",
		"modification_type": "rewrite_everything",
		"description":       "bump",
	})
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "modification_type")
	assert.Contains(t, env.Message(), "rewrite_everything")
}

func TestDispatch_TypeMismatch(t *testing.T) {
	r := &recorder{}
	d := newDispatcher(t, r.handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_record_outcome", map[string]any{
		"task_id":           "t1",
		"task_type":         "analysis",
		"agent_used":        "coder",
		"success":           "yes",
		"execution_time_ms": 12,
	})
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "success")
	assert.Nil(t, r.args())
}

func TestDispatch_FractionalInteger(t *testing.T) {
	d := newDispatcher(t, (&recorder{}).handlers(), Options{})

	env := d.Dispatch(context.Background(), "agi_get_improvement_history", map[string]any{"limit": 2.5})
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "limit")
}

func TestDispatch_HandlerErrorPassesThrough(t *testing.T) {
	h := (&recorder{}).handlers()
	h[catalog.Operations()[0]] = func(context.Context, tools.Args) (envelope.Envelope, error) {
		return envelope.Envelope{}, errors.New("database is locked")
	}
	d := newDispatcher(t, h, Options{})

	env := d.Dispatch(context.Background(), catalog.Operations()[0].String(), map[string]any{
		"task_id":           "t1",
		"task_type":         "analysis",
		"agent_used":        "coder",
		"success":           true,
		"execution_time_ms": 12,
	})
	require.True(t, env.IsError())
	assert.Equal(t, "database is locked", env.Message())
	assert.Equal(t, map[string]any{"status": "error", "message": "database is locked"}, decode(t, env))
}

func TestDispatch_PanicBecomesError(t *testing.T) {
	h := (&recorder{}).handlers()
	op := catalog.Operations()[3] // agi_get_learning_summary has no inputs
	h[op] = func(context.Context, tools.Args) (envelope.Envelope, error) {
		panic("boom")
	}
	core, logs := observer.New(zap.ErrorLevel)
	d := newDispatcher(t, h, Options{Logger: zap.New(core)})

	env := d.Dispatch(context.Background(), op.String(), nil)
	require.True(t, env.IsError())
	assert.Equal(t, "boom", env.Message())
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())
}

func TestDispatch_EmptyEnvelope(t *testing.T) {
	h := (&recorder{}).handlers()
	op := catalog.Operations()[3]
	h[op] = func(context.Context, tools.Args) (envelope.Envelope, error) {
		return envelope.Envelope{}, nil
	}
	d := newDispatcher(t, h, Options{})

	env := d.Dispatch(context.Background(), op.String(), nil)
	require.True(t, env.IsError())
	assert.Contains(t, env.Message(), "no result")
}

func TestDispatch_Observability(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := telemetry.NewMetrics(mp.Meter(telemetry.ScopeName))
	require.NoError(t, err)

	var mu sync.Mutex
	var published []events.CallEvent
	pub := events.NewCallbackPublisher(func(_ context.Context, ev events.CallEvent) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, ev)
		return nil
	})

	core, logs := observer.New(zap.DebugLevel)
	d := newDispatcher(t, (&recorder{}).handlers(), Options{
		Logger:  zap.New(core),
		Tracer:  tp.Tracer(telemetry.ScopeName),
		Metrics: metrics,
		Events:  pub,
	})

	ctx := context.Background()
	require.False(t, d.Dispatch(ctx, "agi_get_system_status", nil).IsError())
	require.True(t, d.Dispatch(ctx, "agi_get_goal_progress", nil).IsError())

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "gateway.dispatch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["agi.tool.duration"])
	assert.True(t, names["agi.tool.errors"])

	mu.Lock()
	got := make([]string, 0, len(published))
	for _, ev := range published {
		got = append(got, ev.Tool+":"+ev.Status)
	}
	mu.Unlock()
	want := []string{"agi_get_system_status:success", "agi_get_goal_progress:error"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, logs.FilterMessage("tool call failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("tool call").Len())
}

func TestDispatch_PublishFailureIsLogged(t *testing.T) {
	pub := events.NewCallbackPublisher(func(context.Context, events.CallEvent) error {
		return errors.New("broker down")
	})
	core, logs := observer.New(zap.WarnLevel)
	d := newDispatcher(t, (&recorder{}).handlers(), Options{Logger: zap.New(core), Events: pub})

	env := d.Dispatch(context.Background(), "agi_get_system_status", nil)
	assert.False(t, env.IsError())
	assert.Equal(t, 1, logs.FilterMessage("publishing call event failed").Len())
}

func TestDispatch_Concurrent(t *testing.T) {
	d := newDispatcher(t, (&recorder{}).handlers(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := d.Dispatch(context.Background(), "agi_execute_task", map[string]any{"description": "x"})
			assert.False(t, env.IsError())
		}()
	}
	wg.Wait()
}

func TestMCPHandler(t *testing.T) {
	d := newDispatcher(t, (&recorder{}).handlers(), Options{})
	op, err := catalog.Lookup("agi_get_goal_progress")
	require.NoError(t, err)
	h := d.MCPHandler(op)

	req := mcp.CallToolRequest{}
	req.Params.Name = op.String()
	req.Params.Arguments = map[string]any{"goal_id": "g-1"}
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	assert.Equal(t, "success", body["status"])

	req.Params.Arguments = map[string]any{}
	res, err = h(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
