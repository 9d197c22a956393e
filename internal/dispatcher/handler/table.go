package handler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/emuctl/internal/logging"
)

// Table errors.
var (
	// ErrTableSealed indicates a registration after the table was sealed.
	ErrTableSealed = errors.New("handler: command table is sealed")

	// ErrNilHandler indicates an attempt to register a nil handler.
	ErrNilHandler = errors.New("handler: nil handler")
)

// Table maps method names to handlers. Registering an existing name
// replaces the prior entry. A sealed table rejects further changes.
//
// Table is not safe for concurrent mutation; it is built once and then only
// read.
type Table struct {
	handlers map[string]Handler
	sealed   bool
}

// NewTable creates an empty, unsealed table.
func NewTable() *Table {
	return &Table{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for method.
func (t *Table) Register(method string, h Handler) error {
	if t.sealed {
		return ErrTableSealed
	}
	if h == nil {
		return fmt.Errorf("%w for %s", ErrNilHandler, method)
	}
	t.handlers[method] = h
	return nil
}

// MustRegister is Register for static default sets; it panics on error.
func (t *Table) MustRegister(method string, h Handler) {
	if err := t.Register(method, h); err != nil {
		panic(err)
	}
}

// Remove deletes method from the table.
func (t *Table) Remove(method string) error {
	if t.sealed {
		return ErrTableSealed
	}
	delete(t.handlers, method)
	return nil
}

// Get returns the handler for method.
func (t *Table) Get(method string) (Handler, bool) {
	if t == nil {
		return nil, false
	}
	h, ok := t.handlers[method]
	return h, ok
}

// Has returns true if method is registered.
func (t *Table) Has(method string) bool {
	_, ok := t.Get(method)
	return ok
}

// List returns all registered method names, sorted.
func (t *Table) List() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered methods.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.handlers)
}

// Seal prevents further changes.
func (t *Table) Seal() {
	t.sealed = true
}

// Sealed reports whether the table rejects changes.
func (t *Table) Sealed() bool {
	return t.sealed
}

// Clone returns an unsealed copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	if t == nil {
		return c
	}
	for name, h := range t.handlers {
		c.handlers[name] = h
	}
	return c
}

// Merge builds the sealed command table from defaults and an override map.
//
// For each override:
//   - a handler (see AsHandler) replaces or adds the method;
//   - false or nil removes the method;
//   - any other value is rejected with a warning and the default kept.
//
// A nil override map yields a sealed copy of defaults. defaults itself is
// never modified.
func Merge(defaults *Table, overrides map[string]any, logger *logging.Logger) *Table {
	table := defaults.Clone()

	// Sorted so warnings come out in a stable order.
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := overrides[name]

		if value == nil {
			delete(table.handlers, name)
			continue
		}
		if b, ok := value.(bool); ok && !b {
			delete(table.handlers, name)
			continue
		}
		if h, ok := AsHandler(value); ok {
			table.handlers[name] = h
			continue
		}

		logger.Warn("ignoring override for %s: expected handler, false or nil, got %T", name, value)
	}

	table.Seal()
	return table
}
