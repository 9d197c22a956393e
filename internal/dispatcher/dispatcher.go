package dispatcher

import (
	"runtime"
	"time"

	"github.com/dshills/emuctl/internal/dispatcher/execctx"
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/dispatcher/handlers"
	"github.com/dshills/emuctl/internal/host"
	"github.com/dshills/emuctl/internal/logging"
)

// Dispatcher executes named methods against a host.
//
// The command table and configuration are fixed at construction. Exec is
// synchronous and not internally locked; wrap the dispatcher in a Serial
// when calling it from several goroutines.
type Dispatcher struct {
	host   host.Host
	table  *handler.Table
	config HandlerConfig
	strict bool

	notifier      *Notifier
	notifyUnknown bool

	logger  *logging.Logger
	metrics *Metrics
}

// New creates a permissive dispatcher whose policy is resolved from
// opts.HandlerConfig.
func New(h host.Host, opts Options) *Dispatcher {
	logger := dispatcherLogger(opts.Logger)
	return build(h, opts, ResolveHandlerConfig(opts.HandlerConfig, logger), false)
}

// NewStrict creates a dispatcher that always returns failures to the caller.
// opts.HandlerConfig is ignored.
func NewStrict(h host.Host, opts Options) *Dispatcher {
	return build(h, opts, HandlerConfig{}, true)
}

func build(h host.Host, opts Options, cfg HandlerConfig, strict bool) *Dispatcher {
	logger := dispatcherLogger(opts.Logger)

	defaults := opts.Defaults
	if defaults == nil {
		defaults = handlers.Defaults()
	}

	d := &Dispatcher{
		host:          h,
		table:         handler.Merge(defaults, opts.Commands, logger),
		config:        cfg,
		strict:        strict,
		notifier:      NewNotifier(opts.OnCommand, logger),
		notifyUnknown: opts.NotifyUnknown,
		logger:        logger,
	}
	if opts.EnableMetrics {
		d.metrics = NewMetrics()
	}
	return d
}

func dispatcherLogger(l *logging.Logger) *logging.Logger {
	if l == nil {
		return logging.Discard()
	}
	return l.WithComponent("dispatcher")
}

// Exec runs method with params.
//
// On success it returns the handler's result. Unknown methods and handler
// failures return *UnknownMethodError and *OperationFailedError when the
// dispatcher is strict or fallback is disabled; otherwise they are logged and
// Exec returns (nil, nil). Each dispatch that reaches a handler notifies the
// observer exactly once, before Exec returns.
func (d *Dispatcher) Exec(method string, params map[string]any) (any, error) {
	start := time.Now()

	if d.config.EnableLogging {
		d.logger.Debug("exec %s %v", method, params)
	}

	h, ok := d.table.Get(method)
	if !ok {
		return d.unknown(method, params)
	}

	op := handler.NewOperation(method, params)
	ctx := execctx.New(d.host, d.logger.WithField("op", op.ID), method, op.ID)

	result, err := d.invoke(h, op, ctx)

	d.notifier.Notify(op.ID, method, op.Params, result, err)

	if d.metrics != nil {
		d.metrics.RecordDispatch(method, time.Since(start), err)
	}

	if err == nil {
		return result, nil
	}
	if d.raises() {
		return nil, &OperationFailedError{Method: method, OperationID: op.ID, Err: err}
	}
	d.logger.Error("%s failed: %v", method, err)
	return nil, nil
}

func (d *Dispatcher) unknown(method string, params map[string]any) (any, error) {
	err := &UnknownMethodError{Method: method}

	if d.notifyUnknown {
		d.notifier.Notify("", method, params, nil, err)
	}
	if d.metrics != nil {
		d.metrics.RecordUnknown(method)
	}

	if d.raises() {
		return nil, err
	}
	d.logger.Warn("unknown method %q ignored", method)
	return nil, nil
}

// invoke calls the handler, converting a panic into a *PanicError.
func (d *Dispatcher) invoke(h handler.Handler, op handler.Operation, ctx *execctx.ExecutionContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)

			result = nil
			err = &PanicError{Value: r, Stack: stack[:n]}

			if d.metrics != nil {
				d.metrics.RecordPanic()
			}
		}
	}()

	return h(op, ctx)
}

func (d *Dispatcher) raises() bool {
	return d.strict || d.config.Raises()
}

// Has reports whether method is in the command table.
func (d *Dispatcher) Has(method string) bool {
	return d.table.Has(method)
}

// Methods returns the sorted method names of the command table.
func (d *Dispatcher) Methods() []string {
	return d.table.List()
}

// Table returns the sealed command table.
func (d *Dispatcher) Table() *handler.Table {
	return d.table
}

// Config returns the resolved handler configuration. Zero for strict
// dispatchers.
func (d *Dispatcher) Config() HandlerConfig {
	return d.config
}

// Strict reports whether the dispatcher was created with NewStrict.
func (d *Dispatcher) Strict() bool {
	return d.strict
}

// Metrics returns the metrics collector, or nil if metrics are disabled.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Host returns the host the dispatcher drives.
func (d *Dispatcher) Host() host.Host {
	return d.host
}
