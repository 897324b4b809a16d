// Package service orchestrates fact generation, persistence and notification.
package service

import (
	"FactVerse/backend/go/internal/fact_service/analyzer"
	"FactVerse/backend/go/internal/fact_service/generator"
	"FactVerse/backend/go/internal/fact_service/publisher"
	"FactVerse/backend/go/internal/fact_service/store"
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultBatchWidth     = 5
	DefaultBatchDelay     = time.Second
	DefaultMaxBatch       = 50
	DefaultPersistTimeout = 5 * time.Second
	DefaultPageLimit      = 10
	MaxPageLimit          = 100
)

// ValidationError is returned for requests the caller must correct.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Generator is the fact producer consumed by the service. *generator.Selector implements it.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) generator.Result
	GenerateFresh(ctx context.Context, req generator.Request) generator.Result
	Fallback(req generator.Request) models.Fact
}

// Notifier pushes new facts to connected clients.
type Notifier interface {
	BroadcastNewFact(fact models.Fact)
}

// Recorder receives service-level measurements.
type Recorder interface {
	ObserveBatch(size int)
	ObservePersistFailure()
}

type nopNotifier struct{}

func (nopNotifier) BroadcastNewFact(models.Fact) {}

type nopRecorder struct{}

func (nopRecorder) ObserveBatch(int)       {}
func (nopRecorder) ObservePersistFailure() {}

// Options tunes batch generation and persistence.
type Options struct {
	BatchWidth     int
	BatchDelay     time.Duration
	MaxBatch       int
	PersistTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchWidth <= 0 {
		o.BatchWidth = DefaultBatchWidth
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.MaxBatch <= 0 {
		o.MaxBatch = DefaultMaxBatch
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = DefaultPersistTimeout
	}
	return o
}

// FactService provides the business logic behind the HTTP API.
type FactService struct {
	generator Generator
	store     store.FactStore
	publisher publisher.EventPublisher
	notifier  Notifier
	recorder  Recorder
	logger    *logger.Logger
	opts      Options
	now       func() time.Time

	// pending tracks background persistence started by Generate.
	pending sync.WaitGroup
}

// NewFactService creates a FactService. publisher, notifier and recorder may be nil.
func NewFactService(gen Generator, st store.FactStore, pub publisher.EventPublisher, notifier Notifier, recorder Recorder, opts Options, log *logger.Logger) *FactService {
	s := &FactService{
		generator: gen,
		store:     st,
		publisher: pub,
		notifier:  notifier,
		recorder:  recorder,
		logger:    log,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
	if s.publisher == nil {
		s.publisher = publisher.NopPublisher{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	return s
}

// MaxBatch returns the largest accepted batch size.
func (s *FactService) MaxBatch() int { return s.opts.MaxBatch }

// Wait blocks until background persistence has finished.
func (s *FactService) Wait() {
	s.pending.Wait()
}

// Generate produces one fact. It never fails: a fresh AI-generated fact is
// persisted in the background and announced; storage failures are only logged.
func (s *FactService) Generate(ctx context.Context, category, difficulty string, count int) generator.Result {
	req := generator.NewRequest(category, difficulty, count)
	s.logger.WithPayload(map[string]interface{}{
		"category":   req.Category,
		"difficulty": req.Difficulty,
	}).Info("Generating fact")

	res := s.generator.Generate(ctx, req)
	if res.Cached {
		return res
	}

	fact := res.Fact.Clone()
	background := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if shouldPersist(fact) {
			_ = s.persist(background, fact)
		}
		s.announce(background, fact, res.Backend)
	}()
	return res
}

// BatchResult is the outcome of GenerateBatch.
type BatchResult struct {
	Facts     []models.Fact
	Requested int
	Generated int
	Errors    []string
}

// GenerateBatch produces count facts, width at a time, pausing between rounds.
// Sub-requests bypass the fact cache. Failures are collected, never fatal.
func (s *FactService) GenerateBatch(ctx context.Context, category, difficulty string, count int) (*BatchResult, error) {
	if count > s.opts.MaxBatch {
		return nil, invalid("Maximum %d facts can be generated at once", s.opts.MaxBatch)
	}
	if count < 1 {
		return nil, invalid("Count must be between 1 and %d", s.opts.MaxBatch)
	}
	req := generator.NewRequest(category, difficulty, 1)
	s.recorder.ObserveBatch(count)
	s.logger.WithPayload(map[string]interface{}{
		"count":      count,
		"category":   req.Category,
		"difficulty": req.Difficulty,
	}).Info("Generating fact batch")

	out := &BatchResult{Requested: count}
	var mu sync.Mutex
	addError := func(msg string) {
		mu.Lock()
		out.Errors = append(out.Errors, msg)
		mu.Unlock()
	}

	results := make([]generator.Result, count)
	for start := 0; start < count; start += s.opts.BatchWidth {
		if start > 0 {
			if err := sleep(ctx, s.opts.BatchDelay); err != nil {
				addError(fmt.Sprintf("batch stopped after %d facts: %v", start, err))
				results = results[:start]
				break
			}
		}
		end := min(start+s.opts.BatchWidth, count)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.BatchWidth)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = s.generateOne(gctx, req, addError)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			results = produced(results[:end])
			addError(fmt.Sprintf("batch stopped after %d facts: %v", len(results), err))
			break
		}
	}

	out.Facts = make([]models.Fact, 0, len(results))
	for _, res := range results {
		fact := res.Fact
		if shouldPersist(fact) {
			if err := s.persist(ctx, fact); err != nil {
				addError(fmt.Sprintf("failed to save fact %s: %v", fact.ID, err))
			}
		}
		s.announce(ctx, fact, res.Backend)
		out.Facts = append(out.Facts, fact)
	}
	out.Generated = len(out.Facts)
	return out, nil
}

// produced drops the slots that never ran.
func produced(results []generator.Result) []generator.Result {
	out := results[:0]
	for _, res := range results {
		if res.Fact.ID != "" {
			out = append(out, res)
		}
	}
	return out
}

// generateOne isolates one batch slot; a panic yields a curated fact.
func (s *FactService) generateOne(ctx context.Context, req generator.Request, addError func(string)) (res generator.Result) {
	defer func() {
		if r := recover(); r != nil {
			addError(fmt.Sprintf("generation panicked: %v", r))
			res = generator.Result{Fact: s.generator.Fallback(req), Backend: "curated"}
		}
	}()
	return s.generator.GenerateFresh(ctx, req)
}

func shouldPersist(f models.Fact) bool {
	return f.Metadata.AIGenerated
}

// persist stores a copy of fact enriched with analyzer keywords and topics.
func (s *FactService) persist(ctx context.Context, fact models.Fact) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()

	analysis := analyzer.Analyze(fact.Text)
	fact.Metadata.Keywords = analysis.Keywords
	fact.Metadata.RelatedTopics = analysis.RelatedTopics

	if err := s.store.Create(ctx, &fact); err != nil {
		s.recorder.ObservePersistFailure()
		s.logger.WithError(models.ErrorInfoFrom(err, "database_error")).
			WithPayload(map[string]interface{}{"fact_id": fact.ID}).
			Error("Database save failed")
		return err
	}
	return nil
}

// announce publishes fact.generated and pushes the fact to WebSocket clients.
func (s *FactService) announce(ctx context.Context, fact models.Fact, backend string) {
	s.publish(ctx, models.FactEvent{
		Type:    models.EventFactGenerated,
		Fact:    &fact,
		FactID:  fact.ID,
		Backend: backend,
	})
	s.notifier.BroadcastNewFact(fact)
}

func (s *FactService) publish(ctx context.Context, event models.FactEvent) {
	event.OccurredAt = s.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(models.ErrorInfoFrom(err, "publish_error")).
			WithPayload(map[string]interface{}{"fact_id": event.FactID, "type": event.Type}).
			Warn("Failed to publish fact event")
	}
}

// Random returns a stored fact, optionally in category. When nothing is stored
// a new fact is generated instead.
func (s *FactService) Random(ctx context.Context, category string) (models.Fact, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	filter := models.Category("")
	if category != "" && category != "all" {
		filter = models.Category(category)
	}

	fact, err := s.store.GetRandomFact(ctx, filter)
	if err == nil {
		return *fact, nil
	}
	if !errors.Is(err, store.ErrFactNotFound) {
		s.logger.WithError(models.ErrorInfoFrom(err, "database_error")).Warn("Random fact lookup failed, generating instead")
	}
	if filter == "" {
		filter = models.CategoryGeneral
	}
	return s.Generate(ctx, string(filter), string(models.DifficultyMedium), 1).Fact, nil
}

// Get returns a stored fact by id.
func (s *FactService) Get(ctx context.Context, id string) (models.Fact, error) {
	fact, err := s.store.FindByID(ctx, id)
	if err != nil {
		return models.Fact{}, err
	}
	return *fact, nil
}

// Like increments the like counter of a stored fact and returns the new count.
func (s *FactService) Like(ctx context.Context, id string) (int, error) {
	likes, err := s.store.IncrementLikes(ctx, id)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, models.FactEvent{Type: models.EventFactLiked, FactID: id, Likes: likes})
	return likes, nil
}

// FactPage is one page of a fact listing.
type FactPage struct {
	Facts      []models.Fact
	Pagination models.Pagination
}

// ByCategory lists a category newest first.
func (s *FactService) ByCategory(ctx context.Context, category string, page, limit int) (*FactPage, error) {
	page, limit = normalizePage(page, limit)
	cat := models.Category(strings.ToLower(strings.TrimSpace(category)))

	facts, err := s.store.FindByCategory(ctx, cat, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountByCategory(ctx, cat)
	if err != nil {
		return nil, err
	}
	return &FactPage{Facts: facts, Pagination: models.NewPagination(page, limit, len(facts), total)}, nil
}

// Search finds facts containing any term of query.
func (s *FactService) Search(ctx context.Context, query, category, difficulty string, page, limit int) (*FactPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("Search query is required")
	}
	page, limit = normalizePage(page, limit)

	var filter store.SearchFilter
	if c := strings.ToLower(strings.TrimSpace(category)); c != "" && c != "all" {
		filter.Category = models.Category(c)
	}
	if d, ok := models.ParseDifficulty(difficulty); ok {
		filter.Difficulty = d
	}

	facts, err := s.store.Search(ctx, query, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountSearch(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	return &FactPage{Facts: facts, Pagination: models.NewPagination(page, limit, len(facts), total)}, nil
}

// Trending returns the most liked facts.
func (s *FactService) Trending(ctx context.Context, limit int) ([]models.Fact, error) {
	_, limit = normalizePage(1, limit)
	return s.store.FindTrending(ctx, limit)
}

// Stats summarizes the stored facts. generatedToday counts facts created since
// local midnight.
func (s *FactService) Stats(ctx context.Context) (*models.FactStats, error) {
	s.logger.Info("Getting fact statistics")
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	perCategory, err := s.store.GetCategoryStats(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(perCategory))
	for _, st := range perCategory {
		counts[st.Category] = st.Count
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.store.CountSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	return &models.FactStats{
		TotalFacts:     total,
		CategoryCounts: counts,
		GeneratedToday: today,
		Categories:     models.Categories,
	}, nil
}

// CategoryStats returns per-category aggregates.
func (s *FactService) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	return s.store.GetCategoryStats(ctx)
}

// Report records a complaint about a fact.
func (s *FactService) Report(ctx context.Context, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalid("Report reason is required")
	}
	err := s.store.AddReport(ctx, models.Report{FactID: id, Reason: reason, ReportedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	s.logger.WithPayload(map[string]interface{}{"fact_id": id, "reason": reason}).Info("Fact reported")
	s.publish(ctx, models.FactEvent{Type: models.EventFactReported, FactID: id})
	return nil
}

// Save marks a fact as saved.
func (s *FactService) Save(ctx context.Context, id string) error {
	return s.store.SaveFact(ctx, id, s.now().UTC())
}

// Unsave removes a fact from the saved list.
func (s *FactService) Unsave(ctx context.Context, id string) error {
	return s.store.UnsaveFact(ctx, id)
}

// Saved lists saved facts.
func (s *FactService) Saved(ctx context.Context) ([]models.Fact, error) {
	return s.store.ListSaved(ctx)
}

// Analyze runs the heuristic analyzer. Blank text yields the neutral defaults.
func (s *FactService) Analyze(text string) models.Analysis {
	return analyzer.Analyze(text)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
