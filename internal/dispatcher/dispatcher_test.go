package dispatcher_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/dispatcher/handlers"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/control"
	"github.com/dshills/emuctl/internal/dispatcher/handlers/state"
	"github.com/dshills/emuctl/internal/host"
	"github.com/dshills/emuctl/internal/host/sim"
	"github.com/dshills/emuctl/internal/logging"
)

var errBoom = errors.New("boom")

func failing(op handler.Operation) (any, error) {
	return nil, errBoom
}

func bufferLogger(level logging.Level) (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.New(logging.Config{Level: level, Output: &buf}), &buf
}

type recorder struct {
	mu     sync.Mutex
	events []dispatcher.Event
}

func (r *recorder) observe(ev dispatcher.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []dispatcher.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatcher.Event(nil), r.events...)
}

func TestExecDefaultCommand(t *testing.T) {
	s := sim.New(nil)
	d := dispatcher.New(s, dispatcher.Options{})

	result, err := d.Exec(control.MethodPause, nil)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
	if !s.Paused() {
		t.Error("host should be paused")
	}
}

func TestDefaultTableComplete(t *testing.T) {
	d := dispatcher.New(sim.New(nil), dispatcher.Options{})

	for _, method := range handlers.Methods() {
		if !d.Has(method) {
			t.Errorf("default method %s missing", method)
		}
	}
	if !d.Table().Sealed() {
		t.Error("table should be sealed after construction")
	}
}

func TestOverrideReplacesDefault(t *testing.T) {
	s := sim.New(nil)
	d := dispatcher.New(s, dispatcher.Options{
		Commands: map[string]any{
			control.MethodPause: handler.Func(func(op handler.Operation) (any, error) {
				return "custom", nil
			}),
		},
	})

	result, err := d.Exec(control.MethodPause, nil)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if result != "custom" {
		t.Errorf("result = %v, want custom", result)
	}
	if s.Paused() {
		t.Error("default handler should not have run")
	}
}

func TestOverrideAddsMethod(t *testing.T) {
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		Commands: map[string]any{
			"custom.echo": func(op handler.Operation) (any, error) {
				s, _ := op.String("text", "")
				return s, nil
			},
		},
	})

	result, err := d.Exec("custom.echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if result != "hello" {
		t.Errorf("result = %v, want hello", result)
	}
}

func TestOverrideRemovesMethod(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"false", false},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sim.New(nil)
			d := dispatcher.New(s, dispatcher.Options{
				Commands: map[string]any{control.MethodMute: tt.value},
			})

			if d.Has(control.MethodMute) {
				t.Fatal("method should be removed")
			}
			result, err := d.Exec(control.MethodMute, nil)
			if result != nil || err != nil {
				t.Errorf("Exec = (%v, %v), want (nil, nil)", result, err)
			}
			if s.Muted() {
				t.Error("removed handler must not run")
			}
		})
	}
}

func TestOverrideInvalidValueKeepsDefault(t *testing.T) {
	logger, buf := bufferLogger(logging.LevelWarn)
	s := sim.New(nil)
	d := dispatcher.New(s, dispatcher.Options{
		Commands: map[string]any{control.MethodPause: "nope"},
		Logger:   logger,
	})

	if _, err := d.Exec(control.MethodPause, nil); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !s.Paused() {
		t.Error("default handler should still run")
	}
	if !strings.Contains(buf.String(), control.MethodPause) {
		t.Errorf("expected a warning naming %s, got %q", control.MethodPause, buf.String())
	}
}

func TestUnknownMethodPermissive(t *testing.T) {
	logger, buf := bufferLogger(logging.LevelWarn)
	rec := &recorder{}
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		OnCommand: rec.observe,
		Logger:    logger,
	})

	result, err := d.Exec("nonexistent.method", nil)
	if result != nil || err != nil {
		t.Fatalf("Exec = (%v, %v), want (nil, nil)", result, err)
	}
	if len(rec.all()) != 0 {
		t.Errorf("unknown method should not notify, got %d events", len(rec.all()))
	}
	if !strings.Contains(buf.String(), "[WARN]") || !strings.Contains(buf.String(), "nonexistent.method") {
		t.Errorf("expected unknown-method warning, got %q", buf.String())
	}
}

func TestUnknownMethodNotifyOptIn(t *testing.T) {
	rec := &recorder{}
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		OnCommand:     rec.observe,
		NotifyUnknown: true,
	})

	d.Exec("nonexistent.method", map[string]any{"a": 1})

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !errors.Is(events[0].Cause, dispatcher.ErrUnknownMethod) {
		t.Errorf("Cause = %v, want unknown method", events[0].Cause)
	}
	if events[0].Error == "" {
		t.Error("Error should be set")
	}
}

func TestUnknownMethodRaises(t *testing.T) {
	tests := []struct {
		name string
		new  func(host.Host, dispatcher.Options) *dispatcher.Dispatcher
		cfg  map[string]any
	}{
		{"no fallback", dispatcher.New, map[string]any{"fallbackOnError": false}},
		{"strict mode", dispatcher.New, map[string]any{"strictMode": true}},
		{"strict mode wins over fallback", dispatcher.New, map[string]any{"strictMode": true, "fallbackOnError": true}},
		{"strict variant", dispatcher.NewStrict, nil},
		{"strict variant ignores config", dispatcher.NewStrict, map[string]any{"fallbackOnError": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.new(sim.New(nil), dispatcher.Options{HandlerConfig: tt.cfg})

			_, err := d.Exec("nonexistent.method", nil)
			var ue *dispatcher.UnknownMethodError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UnknownMethodError, got %v", err)
			}
			if ue.Method != "nonexistent.method" {
				t.Errorf("Method = %q", ue.Method)
			}
			if !errors.Is(err, dispatcher.ErrUnknownMethod) {
				t.Error("error should match ErrUnknownMethod")
			}
		})
	}
}

func TestOperationFailedPermissive(t *testing.T) {
	logger, buf := bufferLogger(logging.LevelError)
	rec := &recorder{}
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		Commands:  map[string]any{"x.fail": failing},
		OnCommand: rec.observe,
		Logger:    logger,
	})

	result, err := d.Exec("x.fail", map[string]any{"k": "v"})
	if result != nil || err != nil {
		t.Fatalf("Exec = (%v, %v), want (nil, nil)", result, err)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Method != "x.fail" || ev.Error != "boom" || !errors.Is(ev.Cause, errBoom) {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Params["k"] != "v" {
		t.Errorf("event params = %v", ev.Params)
	}
	if ev.OperationID == "" || ev.Timestamp.IsZero() {
		t.Error("event should carry an operation ID and timestamp")
	}
	if !strings.Contains(buf.String(), "[ERROR]") {
		t.Errorf("expected an error log, got %q", buf.String())
	}
}

func TestOperationFailedStrict(t *testing.T) {
	var notified bool
	d := dispatcher.NewStrict(sim.New(nil), dispatcher.Options{
		Commands:  map[string]any{"x.fail": failing},
		OnCommand: func(ev dispatcher.Event) { notified = true },
	})

	_, err := d.Exec("x.fail", nil)
	if !notified {
		t.Error("observer must be notified before Exec returns")
	}

	var oe *dispatcher.OperationFailedError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
	if oe.Method != "x.fail" || oe.OperationID == "" {
		t.Errorf("unexpected error fields %+v", oe)
	}
	if !errors.Is(err, errBoom) {
		t.Error("error should unwrap to the handler's error")
	}
	if !errors.Is(err, dispatcher.ErrOperationFailed) {
		t.Error("error should match ErrOperationFailed")
	}
}

func TestOperationFailedCarriesHostError(t *testing.T) {
	d := dispatcher.NewStrict(sim.New(nil), dispatcher.Options{})

	_, err := d.Exec(state.MethodQuickLoad, map[string]any{"slot": 7})
	if !errors.Is(err, sim.ErrEmptySlot) {
		t.Errorf("expected ErrEmptySlot cause, got %v", err)
	}
}

func TestSuccessNotification(t *testing.T) {
	rec := &recorder{}
	d := dispatcher.New(sim.New(nil), dispatcher.Options{OnCommand: rec.observe})

	result, err := d.Exec(control.MethodScreenshot, nil)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Failed() || ev.Error != "" {
		t.Errorf("success event should carry no error: %+v", ev)
	}
	if !bytes.Equal(ev.Result.([]byte), result.([]byte)) {
		t.Error("event result should match the returned result")
	}
}

func TestExactlyOneNotificationPerDispatch(t *testing.T) {
	rec := &recorder{}
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		Commands:  map[string]any{"x.fail": failing},
		OnCommand: rec.observe,
	})

	d.Exec(control.MethodPause, nil)
	d.Exec("x.fail", nil)
	d.Exec(control.MethodPlay, nil)
	d.Exec("nonexistent.method", nil)

	if got := len(rec.all()); got != 3 {
		t.Errorf("expected 3 events, got %d", got)
	}
}

func TestObserverPanicIgnored(t *testing.T) {
	logger, buf := bufferLogger(logging.LevelError)
	calls := 0
	d := dispatcher.NewStrict(sim.New(nil), dispatcher.Options{
		Commands: map[string]any{
			"x.answer": func(op handler.Operation) (any, error) {
				calls++
				return 42, nil
			},
		},
		OnCommand: func(ev dispatcher.Event) { panic("observer down") },
		Logger:    logger,
	})

	result, err := d.Exec("x.answer", nil)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if result != 42 {
		t.Errorf("Exec = %v, want the handler result 42", result)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if !strings.Contains(buf.String(), "observer down") {
		t.Errorf("observer failure should be logged, got %q", buf.String())
	}
}

func TestHandlerPanicIsFailure(t *testing.T) {
	rec := &recorder{}
	d := dispatcher.NewStrict(sim.New(nil), dispatcher.Options{
		Commands: map[string]any{
			"x.panic": func(op handler.Operation) (any, error) {
				panic("handler down")
			},
		},
		OnCommand:     rec.observe,
		EnableMetrics: true,
	})

	_, err := d.Exec("x.panic", nil)
	if !errors.Is(err, dispatcher.ErrHandlerPanic) {
		t.Fatalf("expected handler panic, got %v", err)
	}
	var pe *dispatcher.PanicError
	if !errors.As(err, &pe) || pe.Value != "handler down" || len(pe.Stack) == 0 {
		t.Errorf("unexpected panic error %+v", pe)
	}
	if events := rec.all(); len(events) != 1 || !events[0].Failed() {
		t.Errorf("panic should notify a failure, got %+v", events)
	}
	sum := d.Metrics().Summary()
	if sum.Panics != 1 || sum.Failures != 1 {
		t.Errorf("Panics = %d, Failures = %d, want 1 and 1", sum.Panics, sum.Failures)
	}
}

func TestParamsNeverNil(t *testing.T) {
	var got map[string]any
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		Commands: map[string]any{
			"x.params": func(op handler.Operation) (any, error) {
				got = op.Params
				return nil, nil
			},
		},
	})

	d.Exec("x.params", nil)
	if got == nil {
		t.Error("handler params should never be nil")
	}
}

func TestHandlerSeesHost(t *testing.T) {
	s := sim.New(nil)
	var seen host.Host
	d := dispatcher.New(s, dispatcher.Options{
		Commands: map[string]any{
			"x.host": handler.Action(func(op handler.Operation, ctx *execctx.ExecutionContext) error {
				seen = ctx.Host
				return nil
			}),
		},
	})

	d.Exec("x.host", nil)
	if seen != s {
		t.Error("handler should receive the dispatcher's host")
	}
	if d.Host() != s {
		t.Error("Host() should return the injected host")
	}
}

func TestMissingCapabilityReturnsAbsent(t *testing.T) {
	d := dispatcher.NewStrict(struct{}{}, dispatcher.Options{})

	result, err := d.Exec(control.MethodPause, nil)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	absent, ok := result.(host.Absent)
	if !ok {
		t.Fatalf("expected host.Absent, got %T", result)
	}
	if absent.Method != control.MethodPause {
		t.Errorf("Absent.Method = %q", absent.Method)
	}
}

func TestIntentLogging(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]any
		wantLog bool
	}{
		{"disabled by default", nil, false},
		{"enabled", map[string]any{"enableLogging": true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger(logging.LevelDebug)
			d := dispatcher.New(sim.New(nil), dispatcher.Options{
				HandlerConfig: tt.cfg,
				Logger:        logger,
			})

			d.Exec(control.MethodPlay, map[string]any{"why": "test"})

			got := strings.Contains(buf.String(), "exec control.play")
			if got != tt.wantLog {
				t.Errorf("intent logged = %v, want %v (log %q)", got, tt.wantLog, buf.String())
			}
		})
	}
}

func TestCustomDefaults(t *testing.T) {
	defaults := handler.NewTable()
	defaults.MustRegister("only.one", handler.Func(func(op handler.Operation) (any, error) {
		return 1, nil
	}))

	d := dispatcher.New(sim.New(nil), dispatcher.Options{Defaults: defaults})

	if got := d.Methods(); len(got) != 1 || got[0] != "only.one" {
		t.Errorf("Methods = %v", got)
	}
	if defaults.Sealed() {
		t.Error("caller's defaults must not be sealed")
	}
}

func TestMetricsRecorded(t *testing.T) {
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		Commands:      map[string]any{"x.fail": failing},
		EnableMetrics: true,
	})

	d.Exec(control.MethodPause, nil)
	d.Exec(control.MethodPause, nil)
	d.Exec("x.fail", nil)
	d.Exec("x.fail", nil)
	d.Exec(control.MethodPlay, nil)
	d.Exec("nonexistent.method", nil)

	sum := d.Metrics().Summary()
	if sum.Dispatches != 5 {
		t.Errorf("Dispatches = %d, want 5", sum.Dispatches)
	}
	if sum.Failures != 2 {
		t.Errorf("Failures = %d, want 2", sum.Failures)
	}
	if diff := cmp.Diff(map[string]uint64{"nonexistent.method": 1}, sum.Unknown); diff != "" {
		t.Errorf("unknown mismatch (-want +got):\n%s", diff)
	}
	if sum.UnknownCalls() != 1 {
		t.Errorf("UnknownCalls = %d, want 1", sum.UnknownCalls())
	}

	var order []string
	for _, ms := range sum.Methods {
		order = append(order, ms.Name)
	}
	if diff := cmp.Diff([]string{control.MethodPause, "x.fail", control.MethodPlay}, order); diff != "" {
		t.Errorf("method order mismatch (-want +got):\n%s", diff)
	}

	fail, ok := d.Metrics().Method("x.fail")
	if !ok {
		t.Fatal("x.fail should have stats")
	}
	if fail.LastError != "boom" || fail.FailureRate() != 1 {
		t.Errorf("x.fail stats = %+v, rate %v", fail, fail.FailureRate())
	}
	pause, _ := d.Metrics().Method(control.MethodPause)
	if pause.Calls != 2 || pause.FailureRate() != 0 || pause.LastError != "" {
		t.Errorf("pause stats = %+v", pause)
	}
	if pause.Max < pause.Mean() {
		t.Errorf("Max %v below Mean %v", pause.Max, pause.Mean())
	}
	if _, ok := d.Metrics().Method("nonexistent.method"); ok {
		t.Error("unknown methods should not get per-method stats")
	}
}

func TestMetricsDisabled(t *testing.T) {
	d := dispatcher.New(sim.New(nil), dispatcher.Options{})
	if d.Metrics() != nil {
		t.Error("metrics should be nil unless enabled")
	}
}

func TestSerialExcludesConcurrentExec(t *testing.T) {
	var active, overlaps int32
	d := dispatcher.New(sim.New(nil), dispatcher.Options{
		Commands: map[string]any{
			"x.slow": func(op handler.Operation) (any, error) {
				if atomic.AddInt32(&active, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				for i := 0; i < 1000; i++ {
					_ = i * i
				}
				atomic.AddInt32(&active, -1)
				return nil, nil
			},
		},
	})
	serial := dispatcher.NewSerial(d)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				serial.Exec("x.slow", nil)
			}
		}()
	}
	wg.Wait()

	if overlaps != 0 {
		t.Errorf("detected %d overlapping executions", overlaps)
	}
	if len(serial.Methods()) != len(d.Methods()) {
		t.Error("Serial.Methods should forward to the dispatcher")
	}
}

func TestFanout(t *testing.T) {
	var first, last int
	obs := dispatcher.Fanout(
		func(ev dispatcher.Event) { first++ },
		nil,
		func(ev dispatcher.Event) { panic("middle") },
		func(ev dispatcher.Event) { last++ },
	)

	func() {
		defer func() {
			if r := recover(); r != "middle" {
				t.Errorf("recover = %v, want middle", r)
			}
		}()
		obs(dispatcher.Event{Method: "m"})
	}()

	if first != 1 || last != 1 {
		t.Errorf("every observer should run: first=%d last=%d", first, last)
	}
}
