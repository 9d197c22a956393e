package dispatcher

import (
	"time"

	"github.com/dshills/emuctl/internal/logging"
)

// Event describes the outcome of one dispatch.
type Event struct {
	// OperationID identifies the operation. Empty for unknown methods.
	OperationID string

	// Method is the dispatched method.
	Method string

	// Params are the parameters the caller passed.
	Params map[string]any

	// Result is what the handler returned.
	Result any

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Error is the failure message; empty on success.
	Error string

	// Cause is the failure; nil on success.
	Cause error
}

// Failed reports whether the dispatch failed.
func (e Event) Failed() bool {
	return e.Cause != nil
}

// Notifier delivers events to an optional observer. A failing observer is
// logged and otherwise ignored: it never affects the dispatch outcome and is
// never retried.
type Notifier struct {
	observer Observer
	logger   *logging.Logger
}

// NewNotifier creates a notifier. A nil observer makes Notify a no-op.
func NewNotifier(observer Observer, logger *logging.Logger) *Notifier {
	return &Notifier{observer: observer, logger: logger}
}

// Enabled reports whether an observer is attached.
func (n *Notifier) Enabled() bool {
	return n != nil && n.observer != nil
}

// Notify builds an event and hands it to the observer.
func (n *Notifier) Notify(operationID, method string, params map[string]any, result any, err error) {
	if !n.Enabled() {
		return
	}
	ev := Event{
		OperationID: operationID,
		Method:      method,
		Params:      params,
		Result:      result,
		Timestamp:   time.Now(),
		Cause:       err,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	n.deliver(ev)
}

func (n *Notifier) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer failed for %s: %v", ev.Method, r)
		}
	}()
	n.observer(ev)
}

// Fanout combines observers into one. Every observer sees every event even
// when an earlier one panics; the first panic is re-raised afterwards so the
// notifier can log it.
func Fanout(observers ...Observer) Observer {
	return func(ev Event) {
		var first any
		for _, obs := range observers {
			if obs == nil {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil && first == nil {
						first = r
					}
				}()
				obs(ev)
			}()
		}
		if first != nil {
			panic(first)
		}
	}
}
