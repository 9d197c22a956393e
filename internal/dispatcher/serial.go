package dispatcher

import "sync"

// Executor runs named methods.
type Executor interface {
	Exec(method string, params map[string]any) (any, error)
}

// MethodLister lists the methods an Executor knows.
type MethodLister interface {
	Methods() []string
}

// Serial serializes calls to an Executor.
type Serial struct {
	mu   sync.Mutex
	next Executor
}

// NewSerial wraps next so that at most one Exec runs at a time.
func NewSerial(next Executor) *Serial {
	return &Serial{next: next}
}

// Exec implements Executor.
func (s *Serial) Exec(method string, params map[string]any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Exec(method, params)
}

// Methods forwards to the wrapped executor when it is a MethodLister.
func (s *Serial) Methods() []string {
	if l, ok := s.next.(MethodLister); ok {
		return l.Methods()
	}
	return nil
}
