package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/emuctl/internal/dispatcher"
)

// Built-in protocol methods. They never reach the executor.
const (
	MethodList        = "rpc.methods"
	MethodSubscribe   = "rpc.subscribe"
	MethodUnsubscribe = "rpc.unsubscribe"
)

// Error codes carried in error responses.
const (
	CodeUnknownMethod   = "unknown_method"
	CodeOperationFailed = "operation_failed"
	CodeBadRequest      = "bad_request"
)

// Request is a decoded request line.
type Request struct {
	// ID is the raw JSON id, echoed verbatim. Empty when absent.
	ID     string
	Method string
	Params map[string]any
}

// RequestError is a malformed request.
type RequestError struct {
	ID      string
	Message string
}

func (e *RequestError) Error() string {
	return "bad request: " + e.Message
}

// ParseRequest decodes one request line.
func ParseRequest(line []byte) (Request, error) {
	if !gjson.ValidBytes(line) {
		return Request{}, &RequestError{Message: "invalid JSON"}
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return Request{}, &RequestError{Message: "request must be an object"}
	}

	req := Request{}
	if id := root.Get("id"); id.Exists() {
		req.ID = id.Raw
	}

	method := root.Get("method")
	if method.Type != gjson.String || method.String() == "" {
		return Request{}, &RequestError{ID: req.ID, Message: "method must be a non-empty string"}
	}
	req.Method = method.String()

	params := root.Get("params")
	switch {
	case !params.Exists() || params.Type == gjson.Null:
	case params.IsObject():
		m, ok := params.Value().(map[string]any)
		if !ok {
			return Request{}, &RequestError{ID: req.ID, Message: "params must be an object"}
		}
		req.Params = m
	default:
		return Request{}, &RequestError{ID: req.ID, Message: "params must be an object"}
	}

	return req, nil
}

// EncodeResult builds a success response. []byte results encode as base64
// strings.
func EncodeResult(id string, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	out := []byte(`{}`)
	if out, err = withID(out, id); err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(out, "result", raw)
}

// EncodeError builds an error response.
func EncodeError(id, code, message string) ([]byte, error) {
	out, err := withID([]byte(`{}`), id)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "error.code", code); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "error.message", message)
}

// ErrorCode classifies an executor error.
func ErrorCode(err error) string {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return CodeBadRequest
	case errors.Is(err, dispatcher.ErrUnknownMethod):
		return CodeUnknownMethod
	default:
		return CodeOperationFailed
	}
}

// EncodeEvent builds an event line.
func EncodeEvent(ev dispatcher.Event) ([]byte, error) {
	out := []byte(`{"event":{}}`)

	var err error
	set := func(path string, value any) {
		if err == nil {
			out, err = sjson.SetBytes(out, path, value)
		}
	}
	setRaw := func(path string, value any) {
		if err != nil {
			return
		}
		var raw []byte
		if raw, err = json.Marshal(value); err == nil {
			out, err = sjson.SetRawBytes(out, path, raw)
		}
	}

	set("event.id", ev.OperationID)
	set("event.method", ev.Method)
	setRaw("event.params", ev.Params)
	setRaw("event.result", ev.Result)
	set("event.timestamp", ev.Timestamp.UTC().Format(time.RFC3339Nano))
	if ev.Error != "" {
		set("event.error", ev.Error)
	}

	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return out, nil
}

func withID(out []byte, id string) ([]byte, error) {
	if id == "" {
		return out, nil
	}
	return sjson.SetRawBytes(out, "id", []byte(id))
}
