package handler

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParamError reports a missing or mistyped operation parameter.
type ParamError struct {
	Method string
	Param  string
	Reason string
}

// Error implements error.
func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: parameter %q %s", e.Method, e.Param, e.Reason)
}

func (op Operation) paramError(name, reason string) error {
	return &ParamError{Method: op.Method, Param: name, Reason: reason}
}

// Has reports whether the parameter is present and not nil.
func (op Operation) Has(name string) bool {
	v, ok := op.Params[name]
	return ok && v != nil
}

// Int returns an integer parameter. Absent parameters yield def; values that
// cannot be represented as an int yield a *ParamError.
func (op Operation) Int(name string, def int) (int, error) {
	v, ok := op.Params[name]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, op.paramError(name, fmt.Sprintf("must be an integer, got %T", v))
	}
	return n, nil
}

// RequireInt returns an integer parameter that must be present.
func (op Operation) RequireInt(name string) (int, error) {
	if !op.Has(name) {
		return 0, op.paramError(name, "is required")
	}
	return op.Int(name, 0)
}

// IntInRange returns an integer parameter constrained to [lo, hi].
func (op Operation) IntInRange(name string, def, lo, hi int) (int, error) {
	n, err := op.Int(name, def)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, op.paramError(name, fmt.Sprintf("must be between %d and %d, got %d", lo, hi, n))
	}
	return n, nil
}

// Bool returns a boolean parameter, accepting "true"/"false" strings.
func (op Operation) Bool(name string, def bool) (bool, error) {
	v, ok := op.Params[name]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err == nil {
			return parsed, nil
		}
	}
	return false, op.paramError(name, fmt.Sprintf("must be a boolean, got %T", v))
}

// OptionalBool returns nil when the parameter is absent.
func (op Operation) OptionalBool(name string) (*bool, error) {
	if !op.Has(name) {
		return nil, nil
	}
	b, err := op.Bool(name, false)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// String returns a string parameter. Numbers and booleans are formatted.
func (op Operation) String(name, def string) (string, error) {
	v, ok := op.Params[name]
	if !ok || v == nil {
		return def, nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(s), nil
	}
	return "", op.paramError(name, fmt.Sprintf("must be a string, got %T", v))
}

// RequireString returns a non-empty string parameter.
func (op Operation) RequireString(name string) (string, error) {
	s, err := op.String(name, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", op.paramError(name, "is required")
	}
	return s, nil
}

// Bytes returns a binary parameter given either as []byte or as a base64
// encoded string.
func (op Operation) Bytes(name string) ([]byte, error) {
	v, ok := op.Params[name]
	if !ok || v == nil {
		return nil, op.paramError(name, "is required")
	}
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		data, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil, op.paramError(name, "is not valid base64")
		}
		return data, nil
	}
	return nil, op.paramError(name, fmt.Sprintf("must be bytes or base64 string, got %T", v))
}

// Value returns a raw parameter.
func (op Operation) Value(name string) (any, bool) {
	v, ok := op.Params[name]
	return v, ok
}

// toInt converts numeric and numeric-string values to int, rejecting values
// that int cannot hold exactly.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		if uint64(n) > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// floatToInt accepts integral floats in [math.MinInt, math.MaxInt].
func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// -math.MinInt is 2^63 (2^31 on 32-bit), exact in float64; MaxInt is not.
	if f < math.MinInt || f >= -math.MinInt {
		return 0, false
	}
	return int(f), true
}
