// Package remote exposes an Executor over newline-delimited JSON.
//
// Each line a client sends is a request:
//
//	{"id": 1, "method": "state.quickSave", "params": {"slot": 1}}
//
// and gets exactly one response line:
//
//	{"id": 1, "result": null}
//	{"id": 1, "error": {"code": "unknown_method", "message": "..."}}
//
// Sessions that call rpc.subscribe also receive {"event": {...}} lines for
// every dispatch the server observes. A session that stops reading loses
// events once its queue is full; responses are never dropped.
package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/logging"
)

// MaxLineSize bounds a single request line.
const MaxLineSize = 16 << 20

// SessionQueueSize is the number of outbound lines a session buffers before
// events for it are dropped.
const SessionQueueSize = 64

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("remote: server closed")

// Executor runs named methods.
type Executor interface {
	Exec(method string, params map[string]any) (any, error)
}

// Server serves remote-control sessions.
type Server struct {
	ex     Executor
	logger *logging.Logger

	mu        sync.Mutex
	sessions  map[string]*Session
	listeners map[net.Listener]struct{}
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// NewServer creates a server. Calls to ex are not serialized by the server;
// pass a dispatcher.Serial when ex is shared.
func NewServer(ex Executor, logger *logging.Logger) *Server {
	return &Server{
		ex:        ex,
		logger:    logger.WithComponent("remote"),
		sessions:  make(map[string]*Session),
		listeners: make(map[net.Listener]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is done or Close.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("remote listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Close. It always
// returns a non-nil error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.closed.Load() {
		ln.Close()
		return ErrServerClosed
	}

	s.mu.Lock()
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			delete(s.listeners, ln)
			s.mu.Unlock()

			if s.closed.Load() {
				return ErrServerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("remote accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()

			connStop := context.AfterFunc(ctx, func() { conn.Close() })
			defer connStop()

			if err := s.serve(conn, conn, conn); err != nil {
				s.logger.Debug("session from %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// ServeStream runs one session over r and w until r is exhausted.
func (s *Server) ServeStream(r io.Reader, w io.Writer) error {
	return s.serve(r, w, nil)
}

func (s *Server) serve(r io.Reader, w io.Writer, c io.Closer) (err error) {
	sess := newSession(w, c)
	go sess.drain()
	defer func() {
		sess.stop()
		if werr := sess.err(); werr != nil && err == nil {
			err = fmt.Errorf("write: %w", werr)
		}
	}()

	s.addSession(sess)
	defer s.removeSession(sess)

	logger := s.logger.WithField("session", sess.id)
	logger.Debug("session opened")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		sess.send(s.handle(sess, line, logger))
		if sess.err() != nil {
			return nil
		}
	}

	if n := sess.dropped.Load(); n > 0 {
		logger.Warn("session dropped %d events", n)
	}
	logger.Debug("session closed")
	return scanner.Err()
}

// handle turns a request line into a response line.
func (s *Server) handle(sess *Session, line []byte, logger *logging.Logger) []byte {
	req, err := ParseRequest(line)
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			return s.encodeError("", CodeBadRequest, err.Error())
		}
		return s.encodeError(reqErr.ID, CodeBadRequest, reqErr.Message)
	}

	var result any
	switch req.Method {
	case MethodList:
		result = s.methods()
	case MethodSubscribe:
		sess.subscribed.Store(true)
		result = true
	case MethodUnsubscribe:
		sess.subscribed.Store(false)
		result = true
	default:
		result, err = s.ex.Exec(req.Method, req.Params)
		if err != nil {
			logger.Debug("%s failed: %v", req.Method, err)
			return s.encodeError(req.ID, ErrorCode(err), err.Error())
		}
	}

	out, err := EncodeResult(req.ID, result)
	if err != nil {
		return s.encodeError(req.ID, CodeOperationFailed, err.Error())
	}
	return out
}

func (s *Server) encodeError(id, code, message string) []byte {
	out, err := EncodeError(id, code, message)
	if err != nil {
		// Only reachable with a corrupt id; answer without it.
		out, _ = EncodeError("", code, message)
	}
	return out
}

func (s *Server) methods() []string {
	methods := []string{MethodList, MethodSubscribe, MethodUnsubscribe}
	if l, ok := s.ex.(dispatcher.MethodLister); ok {
		methods = append(methods, l.Methods()...)
	}
	sort.Strings(methods)
	return methods
}

// Observe broadcasts ev to subscribed sessions. It is a dispatcher.Observer.
func (s *Server) Observe(ev dispatcher.Event) {
	line, err := EncodeEvent(ev)
	if err != nil {
		s.logger.Warn("dropping event for %s: %v", ev.Method, err)
		return
	}

	for _, sess := range s.snapshot() {
		if !sess.subscribed.Load() {
			continue
		}
		if !sess.offer(line) {
			s.logger.Debug("session %s queue full, dropped %s event", sess.id, ev.Method)
		}
	}
}

// Close stops every listener and waits for network sessions to end.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	for ln := range s.listeners {
		ln.Close()
	}
	for _, sess := range s.sessions {
		sess.close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) addSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
}

func (s *Server) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Session is one connected client. Lines for it are queued and written by
// a single goroutine.
type Session struct {
	id     string
	w      io.Writer
	closer io.Closer

	out      chan []byte
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	writeErr   atomic.Pointer[error]
	dropped    atomic.Uint64
	subscribed atomic.Bool
}

func newSession(w io.Writer, c io.Closer) *Session {
	return &Session{
		id:     uuid.NewString(),
		w:      w,
		closer: c,
		out:    make(chan []byte, SessionQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// send queues a response, waiting for room.
func (s *Session) send(line []byte) {
	select {
	case s.out <- line:
	case <-s.quit:
	}
}

// offer queues an event without waiting. It reports false if the event
// was dropped.
func (s *Session) offer(line []byte) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.out <- line:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// drain writes queued lines until stop, then flushes what is left.
func (s *Session) drain() {
	defer close(s.done)
	for {
		select {
		case line := <-s.out:
			s.write(line)
		case <-s.quit:
			for {
				select {
				case line := <-s.out:
					s.write(line)
				default:
					return
				}
			}
		}
	}
}

// write sends one line. After the first failure the connection is closed
// and later lines are discarded.
func (s *Session) write(line []byte) {
	if s.err() != nil {
		return
	}
	_, err := s.w.Write(line)
	if err == nil {
		_, err = s.w.Write([]byte{'\n'})
	}
	if err != nil {
		s.writeErr.Store(&err)
		s.close()
	}
}

func (s *Session) err() error {
	if p := s.writeErr.Load(); p != nil {
		return *p
	}
	return nil
}

// stop ends the writer after it flushes the queue.
func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) close() {
	if s.closer != nil {
		s.closer.Close()
	}
}
