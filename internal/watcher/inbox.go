// Package watcher runs automation scripts dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/emuctl/internal/logging"
)

// Errors for inbox operations.
var (
	ErrInboxClosed  = errors.New("inbox is closed")
	ErrPathNotExist = errors.New("inbox directory does not exist")
	ErrNotDirectory = errors.New("inbox path is not a directory")
)

// Runner executes a script file. *script.Runner satisfies it.
type Runner interface {
	RunFile(path string) error
}

// Config configures an Inbox.
type Config struct {
	// Debounce coalesces rapid writes to the same file.
	Debounce time.Duration

	// Pattern selects files by base name (filepath.Match syntax).
	Pattern string

	// RemoveAfterRun deletes a script once it has run.
	RemoveAfterRun bool
}

// DefaultConfig returns the default inbox configuration.
func DefaultConfig() Config {
	return Config{
		Debounce: 100 * time.Millisecond,
		Pattern:  "*.lua",
	}
}

// Option configures an Inbox.
type Option func(*Config)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Config) {
		c.Debounce = d
	}
}

// WithPattern sets the file name pattern.
func WithPattern(pattern string) Option {
	return func(c *Config) {
		c.Pattern = pattern
	}
}

// WithRemoveAfterRun deletes scripts after they run.
func WithRemoveAfterRun(remove bool) Option {
	return func(c *Config) {
		c.RemoveAfterRun = remove
	}
}

// Inbox watches a directory and runs matching files after they settle.
// Runs happen one at a time on the goroutine calling Run.
type Inbox struct {
	dir     string
	runner  Runner
	config  Config
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	closed  bool
	closeCh chan struct{}

	runs     atomic.Int64
	failures atomic.Int64
}

// New watches dir for scripts to hand to runner.
func New(dir string, runner Runner, logger *logging.Logger, opts ...Option) (*Inbox, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.Pattern == "" {
		config.Pattern = DefaultConfig().Pattern
	}
	if _, err := filepath.Match(config.Pattern, ""); err != nil {
		return nil, fmt.Errorf("inbox pattern %q: %w", config.Pattern, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotExist
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(absDir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Inbox{
		dir:     absDir,
		runner:  runner,
		config:  config,
		logger:  logger.WithComponent("inbox"),
		watcher: fsw,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 16),
		closeCh: make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (i *Inbox) Dir() string {
	return i.dir
}

// Run processes events until ctx is done or the inbox is closed.
func (i *Inbox) Run(ctx context.Context) error {
	i.logger.Info("watching %s for %s", i.dir, i.config.Pattern)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-i.closeCh:
			return ErrInboxClosed

		case ev, ok := <-i.watcher.Events:
			if !ok {
				return ErrInboxClosed
			}
			i.handleEvent(ev)

		case err, ok := <-i.watcher.Errors:
			if !ok {
				return ErrInboxClosed
			}
			i.failures.Add(1)
			i.logger.Warn("watch error: %v", err)

		case path := <-i.ready:
			i.run(path)
		}
	}
}

func (i *Inbox) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ok, _ := filepath.Match(i.config.Pattern, filepath.Base(ev.Name)); !ok {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}

	// Coalesce: reset the timer for a path that is still settling.
	if t, exists := i.pending[ev.Name]; exists {
		t.Reset(i.config.Debounce)
		return
	}

	path := ev.Name
	i.pending[path] = time.AfterFunc(i.config.Debounce, func() {
		i.fire(path)
	})
}

func (i *Inbox) fire(path string) {
	i.mu.Lock()
	if _, exists := i.pending[path]; !exists {
		i.mu.Unlock()
		return
	}
	delete(i.pending, path)
	i.mu.Unlock()

	select {
	case i.ready <- path:
	case <-i.closeCh:
	}
}

func (i *Inbox) run(path string) {
	if _, err := os.Stat(path); err != nil {
		// Removed before it settled.
		return
	}

	i.logger.Info("running %s", filepath.Base(path))
	err := i.runner.RunFile(path)
	i.runs.Add(1)
	if err != nil {
		i.failures.Add(1)
		i.logger.Error("%s: %v", filepath.Base(path), err)
	}

	if i.config.RemoveAfterRun {
		if rmErr := os.Remove(path); rmErr != nil {
			i.logger.Warn("removing %s: %v", filepath.Base(path), rmErr)
		}
	}
}

// Runs returns the number of scripts run.
func (i *Inbox) Runs() int64 {
	return i.runs.Load()
}

// Failures returns the number of failed runs and watch errors.
func (i *Inbox) Failures() int64 {
	return i.failures.Load()
}

// Close stops watching. Pending scripts are dropped.
func (i *Inbox) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	close(i.closeCh)

	for path, t := range i.pending {
		t.Stop()
		delete(i.pending, path)
	}
	i.mu.Unlock()

	return i.watcher.Close()
}
