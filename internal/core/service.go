package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/explorer/internal/logging"
	"github.com/JonMunkholm/explorer/internal/metrics"
	"github.com/JonMunkholm/explorer/internal/query"
	"github.com/JonMunkholm/explorer/internal/sample"
)

// Options configures a Service. Zero fields take the defaults below.
type Options struct {
	MaxFileSize        int64
	LoadTimeout        time.Duration
	SessionTTL         time.Duration
	CleanupInterval    time.Duration
	HistoryLimit       int
	QueryLatency       time.Duration
	SampleRows         int
	SampleStepDelay    time.Duration
	MaxConcurrentLoads int
	MaxLoadWait        time.Duration
}

const (
	DefaultMaxFileSize     = 100 << 20
	DefaultLoadTimeout     = 10 * time.Minute
	DefaultSessionTTL      = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
	DefaultHistoryLimit    = 50
	DefaultQueryLatency    = 1500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.QueryLatency < 0 {
		o.QueryLatency = 0
	}
	if o.MaxConcurrentLoads <= 0 {
		o.MaxConcurrentLoads = DefaultMaxConcurrentLoads
	}
	if o.MaxLoadWait <= 0 {
		o.MaxLoadWait = DefaultMaxLoadWait
	}
	return o
}

// Service owns every live session. Sessions expire after SessionTTL without
// access.
type Service struct {
	opts        Options
	interpreter query.Interpreter
	limiter     *LoadLimiter
	metrics     *metrics.Metrics

	mu       sync.Mutex // serializes lookups that refresh expiry
	sessions *cache.Cache
}

// NewService creates a Service. m may be nil.
func NewService(opts Options, m *metrics.Metrics) *Service {
	opts = opts.withDefaults()

	s := &Service{
		opts:        opts,
		interpreter: query.NewRuleInterpreter(),
		limiter:     NewLoadLimiter(opts.MaxConcurrentLoads, opts.MaxLoadWait),
		metrics:     m,
		sessions:    cache.New(opts.SessionTTL, opts.CleanupInterval),
	}
	s.limiter.OnChange = m.SetActiveLoads

	s.sessions.OnEvicted(func(id string, v any) {
		var age time.Duration
		if sess, ok := v.(*Session); ok {
			sess.close()
			age = time.Since(sess.CreatedAt())
		}
		s.metrics.SetActiveSessions(s.sessions.ItemCount())
		slog.Debug("session closed", "session_id", id, "age", age.Round(time.Second))
	})

	return s
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Limiter returns the shared load limiter.
func (s *Service) Limiter() *LoadLimiter { return s.limiter }

// CreateSession starts a new empty session.
func (s *Service) CreateSession(ctx context.Context) *Session {
	sess := NewSession(uuid.NewString(), SessionConfig{
		Interpreter:  s.interpreter,
		Limiter:      s.limiter,
		Metrics:      s.metrics,
		MaxFileSize:  s.opts.MaxFileSize,
		LoadTimeout:  s.opts.LoadTimeout,
		QueryLatency: s.opts.QueryLatency,
		HistoryLimit: s.opts.HistoryLimit,
		Sample: sample.Options{
			Rows:      s.opts.SampleRows,
			StepDelay: s.opts.SampleStepDelay,
		},
	})

	s.mu.Lock()
	s.sessions.SetDefault(sess.ID(), sess)
	count := s.sessions.ItemCount()
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)
	logging.WithFields(ctx, ClientFromContext(ctx).logFields()...).Info("session created", "session_id", sess.ID())
	return sess
}

// Session returns the session with id and extends its lifetime.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.sessions.SetDefault(id, v)
	return v.(*Session), nil
}

// DeleteSession ends a session. Deleting an unknown id is a no-op.
func (s *Service) DeleteSession(id string) {
	s.mu.Lock()
	s.sessions.Delete(id)
	s.mu.Unlock()
}

// SessionCount returns the number of live sessions, including expired ones
// not yet cleaned up.
func (s *Service) SessionCount() int { return s.sessions.ItemCount() }

// WaitForLoads blocks until no loads are in flight or ctx is done.
func (s *Service) WaitForLoads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Close ends every session.
func (s *Service) Close() {
	s.mu.Lock()
	ids := make([]string, 0, s.sessions.ItemCount())
	for id := range s.sessions.Items() {
		ids = append(ids, id)
	}
	for _, id := range ids {
		s.sessions.Delete(id)
	}
	s.mu.Unlock()
}
