package dispatcher_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/logging"
)

func TestResolveHandlerConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want dispatcher.HandlerConfig
	}{
		{
			name: "nil map",
			raw:  nil,
			want: dispatcher.DefaultHandlerConfig(),
		},
		{
			name: "all set",
			raw:  map[string]any{"fallbackOnError": false, "enableLogging": true, "strictMode": true},
			want: dispatcher.HandlerConfig{FallbackOnError: false, EnableLogging: true, StrictMode: true},
		},
		{
			name: "partial",
			raw:  map[string]any{"strictMode": true},
			want: dispatcher.HandlerConfig{FallbackOnError: true, StrictMode: true},
		},
		{
			name: "non-bool discarded",
			raw:  map[string]any{"fallbackOnError": "no", "strictMode": 1},
			want: dispatcher.DefaultHandlerConfig(),
		},
		{
			name: "unknown keys ignored",
			raw:  map[string]any{"verbose": true},
			want: dispatcher.DefaultHandlerConfig(),
		},
		{
			name: "nil value uses default",
			raw:  map[string]any{"fallbackOnError": nil},
			want: dispatcher.DefaultHandlerConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dispatcher.ResolveHandlerConfig(tt.raw, nil)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveHandlerConfig mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveHandlerConfigWarnings(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		wantWarn bool
	}{
		{"logging enabled", map[string]any{"enableLogging": true, "strictMode": "yes"}, true},
		{"logging disabled", map[string]any{"strictMode": "yes"}, false},
		{"logging itself invalid", map[string]any{"enableLogging": "yes"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger(logging.LevelDebug)
			dispatcher.ResolveHandlerConfig(tt.raw, logger)

			got := strings.Contains(buf.String(), "[WARN]")
			if got != tt.wantWarn {
				t.Errorf("warned = %v, want %v (log %q)", got, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestHandlerConfigRaises(t *testing.T) {
	tests := []struct {
		cfg  dispatcher.HandlerConfig
		want bool
	}{
		{dispatcher.HandlerConfig{FallbackOnError: true}, false},
		{dispatcher.HandlerConfig{FallbackOnError: false}, true},
		{dispatcher.HandlerConfig{FallbackOnError: true, StrictMode: true}, true},
	}

	for _, tt := range tests {
		if got := tt.cfg.Raises(); got != tt.want {
			t.Errorf("%+v.Raises() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestOptionsBuilders(t *testing.T) {
	logger := logging.Discard()
	observed := 0
	opts := dispatcher.Options{}.
		WithCommands(map[string]any{"a.b": false}).
		WithObserver(func(dispatcher.Event) { observed++ }).
		WithLogger(logger).
		WithMetrics()

	if opts.Commands["a.b"] != false || opts.Logger != logger || !opts.EnableMetrics {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.OnCommand == nil {
		t.Fatal("observer not set")
	}
	opts.OnCommand(dispatcher.Event{})
	if observed != 1 {
		t.Errorf("observer called %d times, want 1", observed)
	}
}
