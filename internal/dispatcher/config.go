package dispatcher

import (
	"github.com/dshills/emuctl/internal/dispatcher/handler"
	"github.com/dshills/emuctl/internal/logging"
)

// Handler configuration keys recognized by ResolveHandlerConfig.
const (
	KeyFallbackOnError = "fallbackOnError"
	KeyEnableLogging   = "enableLogging"
	KeyStrictMode      = "strictMode"
)

// HandlerConfig holds the error-handling policy of a permissive dispatcher.
type HandlerConfig struct {
	// FallbackOnError turns unknown methods and handler failures into a
	// logged nil result instead of an error.
	FallbackOnError bool

	// EnableLogging logs every dispatch intent at debug level.
	EnableLogging bool

	// StrictMode always surfaces failures, regardless of FallbackOnError.
	StrictMode bool
}

// DefaultHandlerConfig returns the default policy: fall back, no logging,
// not strict.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		FallbackOnError: true,
		EnableLogging:   false,
		StrictMode:      false,
	}
}

// Raises reports whether failures are returned to the caller.
func (c HandlerConfig) Raises() bool {
	return c.StrictMode || !c.FallbackOnError
}

// ResolveHandlerConfig builds a complete HandlerConfig from a partial map.
//
// Recognized keys holding a non-boolean value are replaced by their default,
// with a warning when logging resolves enabled. Unrecognized keys are
// ignored. It never fails.
func ResolveHandlerConfig(raw map[string]any, logger *logging.Logger) HandlerConfig {
	cfg := DefaultHandlerConfig()

	// enableLogging first: it gates the warnings for the other keys.
	var invalid []string
	cfg.EnableLogging = resolveBool(raw, KeyEnableLogging, cfg.EnableLogging, &invalid)
	cfg.FallbackOnError = resolveBool(raw, KeyFallbackOnError, cfg.FallbackOnError, &invalid)
	cfg.StrictMode = resolveBool(raw, KeyStrictMode, cfg.StrictMode, &invalid)

	if cfg.EnableLogging {
		for _, key := range invalid {
			logger.Warn("invalid handler config %s=%v (%T), using default", key, raw[key], raw[key])
		}
	}
	return cfg
}

func resolveBool(raw map[string]any, key string, def bool, invalid *[]string) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		*invalid = append(*invalid, key)
		return def
	}
	return b
}

// Observer receives a notification for every resolved dispatch.
type Observer func(Event)

// Options configures a Dispatcher. Everything is injected explicitly; the
// dispatcher reads no process-wide state.
type Options struct {
	// Commands overrides the default command set. Values may be a handler
	// (see handler.AsHandler) to replace or add a method, false or nil to
	// remove it. Other values are rejected with a warning.
	Commands map[string]any

	// OnCommand observes dispatch outcomes. May be nil.
	OnCommand Observer

	// HandlerConfig is the raw policy map resolved by ResolveHandlerConfig.
	// Ignored by strict dispatchers.
	HandlerConfig map[string]any

	// Logger receives dispatcher logs. Nil discards.
	Logger *logging.Logger

	// Defaults replaces the built-in default command set. Nil uses
	// handlers.Defaults().
	Defaults *handler.Table

	// EnableMetrics enables dispatch statistics collection.
	EnableMetrics bool

	// NotifyUnknown also notifies the observer of unknown methods.
	NotifyUnknown bool
}

// WithCommands returns a copy of the options with the override map set.
func (o Options) WithCommands(commands map[string]any) Options {
	o.Commands = commands
	return o
}

// WithObserver returns a copy of the options with the observer set.
func (o Options) WithObserver(observer Observer) Options {
	o.OnCommand = observer
	return o
}

// WithLogger returns a copy of the options with the logger set.
func (o Options) WithLogger(logger *logging.Logger) Options {
	o.Logger = logger
	return o
}

// WithMetrics returns a copy of the options with metrics enabled.
func (o Options) WithMetrics() Options {
	o.EnableMetrics = true
	return o
}
