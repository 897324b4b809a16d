package generator

import (
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/circuitbreaker"
	pkghttp "FactVerse/backend/go/pkg/http"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CuratedThreshold is the roll above which the selector serves curated facts
// without touching a remote backend.
const CuratedThreshold = 0.3

// Attempt records one backend invocation.
type Attempt struct {
	Backend  string
	Err      error
	Duration time.Duration
}

// Result is the outcome of a generation.
type Result struct {
	Fact     models.Fact
	Backend  string
	Cached   bool
	Attempts []Attempt
}

// Observer receives generation outcomes. Metrics implement it.
type Observer interface {
	ObserveGeneration(backend string, cached bool)
	ObserveFailure(backend, reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveGeneration(string, bool) {}
func (nopObserver) ObserveFailure(string, string)  {}

// Options configures a Selector. Primary and Secondary may be nil when the
// corresponding provider is not configured.
type Options struct {
	Primary   Remote
	Secondary Remote
	Curated   *CuratedBackend
	Cache     *FactCache
	Roller    Roller
	Observer  Observer
	Logger    *logger.Logger
}

// Selector chooses the backends to try for each request and never fails.
type Selector struct {
	primary   Remote
	secondary Remote
	curated   *CuratedBackend
	cache     *FactCache
	roller    Roller
	observer  Observer
	log       *logger.Logger
}

// NewSelector creates a Selector. The curated backend is required.
func NewSelector(opts Options) (*Selector, error) {
	if opts.Curated == nil {
		return nil, errors.New("generator: curated backend is required")
	}
	s := &Selector{
		primary:   opts.Primary,
		secondary: opts.Secondary,
		curated:   opts.Curated,
		cache:     opts.Cache,
		roller:    opts.Roller,
		observer:  opts.Observer,
		log:       opts.Logger,
	}
	if s.cache == nil {
		s.cache = NewFactCache(0, 0, nil)
	}
	if s.roller == nil {
		s.roller = NewRandRoller(0)
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	return s, nil
}

// Generate returns a cached fact for the request key when one is fresh, and
// otherwise runs the selection policy and caches the produced fact.
func (s *Selector) Generate(ctx context.Context, req Request) Result {
	key := KeyFor(req)
	if fact, ok := s.cache.Get(key); ok {
		s.observer.ObserveGeneration(backendOf(fact), true)
		return Result{Fact: fact, Backend: backendOf(fact), Cached: true}
	}

	res := s.GenerateFresh(ctx, req)
	s.cache.Put(key, res.Fact)
	return res
}

// GenerateFresh runs the selection policy without reading or writing the cache.
func (s *Selector) GenerateFresh(ctx context.Context, req Request) Result {
	res := s.tryInOrder(ctx, req, s.safePlan(ctx))
	s.observer.ObserveGeneration(res.Backend, false)
	return res
}

// Fallback returns a curated fact without consulting any remote backend.
func (s *Selector) Fallback(req Request) models.Fact {
	return s.curated.Pick(req)
}

// plan decides which backends to try, in order. The curated backend is always last.
func (s *Selector) plan(ctx context.Context) []Backend {
	if s.roller.Roll() > CuratedThreshold {
		return []Backend{s.curated}
	}
	if s.secondary != nil && s.secondary.Available(ctx) {
		return []Backend{s.secondary, s.curated}
	}
	if s.primary != nil && s.primary.Available(ctx) {
		return []Backend{s.primary, s.curated}
	}
	return []Backend{s.curated}
}

// safePlan serves curated facts when the roll or a quota check panics.
func (s *Selector) safePlan(ctx context.Context) (plan []Backend) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: plan: %v", ErrBackendPanic, r)
			s.observer.ObserveFailure("selector", "panic")
			s.log.WithError(models.ErrorInfoFrom(err, "panic")).Error("selection policy panicked, serving curated fact")
			plan = []Backend{s.curated}
		}
	}()
	return s.plan(ctx)
}

// tryInOrder runs the plan until a backend produces a fact. If every backend
// fails, the curated backend is consulted directly.
func (s *Selector) tryInOrder(ctx context.Context, req Request, plan []Backend) Result {
	var attempts []Attempt
	for _, b := range plan {
		start := time.Now()
		fact, err := s.safeGenerate(ctx, b, req)
		attempts = append(attempts, Attempt{Backend: b.Name(), Err: err, Duration: time.Since(start)})
		if err == nil {
			return Result{Fact: fact, Backend: b.Name(), Attempts: attempts}
		}

		reason := failureReason(err)
		s.observer.ObserveFailure(b.Name(), reason)
		s.log.WithError(models.ErrorInfoFrom(err, reason)).
			WithPayload(map[string]interface{}{"backend": b.Name(), "category": req.Category}).
			Warn("backend failed, falling through")
	}

	return Result{Fact: s.curated.Pick(req), Backend: s.curated.Name(), Attempts: attempts}
}

// safeGenerate converts a panic inside a backend into ErrBackendPanic.
func (s *Selector) safeGenerate(ctx context.Context, b Backend, req Request) (fact models.Fact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrBackendPanic, b.Name(), r)
		}
	}()
	return b.Generate(ctx, req)
}

// failureReason classifies a backend error for logs and metrics.
func failureReason(err error) string {
	var se *pkghttp.StatusError
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrBackendPanic):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &se) && se.RateLimited():
		return "rate_limited"
	default:
		return "error"
	}
}

// backendOf derives the producing backend from a fact id prefix.
func backendOf(f models.Fact) string {
	for provider, labels := range providerLabels {
		if strings.HasPrefix(f.ID, labels.prefix) {
			return provider
		}
	}
	return "curated"
}
