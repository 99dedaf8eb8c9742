package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/conductor/config"
	"github.com/liuxd6825/conductor/log"
)

// Persister stores diagnostic files such as failure screenshots.
type Persister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// Session is one test's exclusive use of a browser. It is not safe for
// concurrent use; concurrent tests each own a session.
type Session struct {
	id     string
	driver Driver
	config config.EffectiveConfig

	logger        *log.Logger
	clock         Clock
	metrics       *Metrics
	tracer        trace.Tracer
	persister     Persister
	screenshotDir string

	// inFrame is false while the driver is on the top-level document.
	inFrame bool

	storeMu sync.Mutex
	store   map[string]interface{}

	closeOnce sync.Once
	closeErr  error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithClock sets the time source of the waits.
func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithMetrics records the waits of the session in m.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithTracerProvider traces the waits of the session with tp.
func WithTracerProvider(tp trace.TracerProvider) SessionOption {
	return func(s *Session) { s.tracer = tp.Tracer(tracerName) }
}

// WithPersister stores failure screenshots through p under dir.
func WithPersister(p Persister, dir string) SessionOption {
	return func(s *Session) {
		s.persister = p
		s.screenshotDir = dir
	}
}

// NewSession takes ownership of driver for a test configured by cfg.
func NewSession(driver Driver, cfg config.EffectiveConfig, opts ...SessionOption) *Session {
	s := &Session{
		id:            uuid.NewString(),
		driver:        driver,
		config:        cfg,
		logger:        log.NewNullLogger(),
		clock:         RealClock(),
		tracer:        noop.NewTracerProvider().Tracer(tracerName),
		screenshotDir: DefaultScreenshotDir,
		store:         make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logrus.Fields{"session": s.id})
	s.logger.Debugf("Session:NewSession", "sid:%s browser:%s url:%q retries:%d timeout:%s",
		s.id, cfg.Browser(), cfg.URL(), cfg.Retries(), cfg.Timeout())
	return s
}

// ID returns the unique ID of the session.
func (s *Session) ID() string { return s.id }

// Config returns the effective configuration of the session.
func (s *Session) Config() config.EffectiveConfig { return s.config }

// Driver returns the underlying driver.
func (s *Session) Driver() Driver { return s.driver }

// Store saves value under key for later steps of the same test.
func (s *Session) Store(key string, value interface{}) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.store[key] = value
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (interface{}, bool) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	v, ok := s.store[key]
	return v, ok
}

// Close releases the browser. Only the first call reaches the driver;
// later calls return the same result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Debugf("Session:Close", "sid:%s", s.id)
		if err := s.driver.Quit(ctx); err != nil {
			s.closeErr = fmt.Errorf("quitting browser session: %w", err)
		}
	})
	return s.closeErr
}

// Finish ends the test named name. When failure is non-nil and the
// configuration asks for it, a screenshot is stored before the browser is
// released. The returned error is failure, or the release error when the
// test passed.
func (s *Session) Finish(ctx context.Context, name string, failure error) error {
	if failure != nil && s.config.ScreenshotOnFail() {
		s.captureFailure(ctx, name)
	}
	closeErr := s.Close(ctx)
	if failure != nil {
		if closeErr != nil {
			s.logger.Warnf("Session:Finish", "sid:%s %v", s.id, closeErr)
		}
		return failure
	}
	return closeErr
}

// Run calls fn and finishes the session with its outcome. A panic in fn
// is turned into an error after the browser is released.
func (s *Session) Run(ctx context.Context, name string, fn func(context.Context, *Session) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.Finish(ctx, name, fmt.Errorf("test %s panicked: %v", name, r))
		}
	}()
	return s.Finish(ctx, name, fn(ctx, s))
}

// ScreenshotPath returns where the failure screenshot of the test named
// name is stored.
func (s *Session) ScreenshotPath(name string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", " ", "-", ":", "-")
	return path.Join(s.screenshotDir, r.Replace(name)+".png")
}

func (s *Session) captureFailure(ctx context.Context, name string) {
	if s.persister == nil {
		return
	}
	err := func() error {
		buf, err := s.driver.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("capturing screenshot: %w", err)
		}
		if len(buf) == 0 {
			return errors.New("capturing screenshot: empty image")
		}
		p := s.ScreenshotPath(name)
		if err := s.persister.Persist(ctx, p, bytes.NewReader(buf)); err != nil {
			return fmt.Errorf("persisting screenshot: %w", err)
		}
		s.logger.Infof("Session:captureFailure", "sid:%s saved screenshot %s", s.id, p)
		return nil
	}()
	if err != nil {
		s.metrics.screenshot("failed")
		s.logger.Warnf("Session:captureFailure", "sid:%s %v", s.id, err)
		return
	}
	s.metrics.screenshot("saved")
}
