// Package dispatcher routes emulator control methods to handlers.
//
// A Dispatcher owns a sealed command table built from a set of defaults and
// an override map, and executes named methods against a host:
//
//	d := dispatcher.New(emu, dispatcher.Options{
//	    Commands: map[string]any{
//	        "control.mute": false,
//	        "custom.hello": handler.Func(func(op handler.Operation) (any, error) {
//	            return "hi", nil
//	        }),
//	    },
//	    HandlerConfig: map[string]any{"enableLogging": true},
//	})
//
//	result, err := d.Exec("state.quickSave", map[string]any{"slot": 2})
//
// # Error Policy
//
// A permissive dispatcher (New) resolves its policy from a partial map:
//
//   - fallbackOnError (default true): failures are logged and Exec returns
//     (nil, nil)
//   - enableLogging (default false): every dispatch intent is logged
//   - strictMode (default false): failures are always returned
//
// A strict dispatcher (NewStrict) always returns failures. Unknown methods
// surface as *UnknownMethodError and handler failures as
// *OperationFailedError, which unwraps to the handler's error.
//
// # Notification
//
// Options.OnCommand observes every dispatch that reaches a handler, success
// or failure, before Exec returns. Observer panics are logged and never
// change the dispatch outcome. Unknown methods are only observed when
// Options.NotifyUnknown is set.
//
// # Concurrency
//
// Exec is synchronous and not locked. Callers on several goroutines share a
// Serial.
package dispatcher
