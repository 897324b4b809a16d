package service

import (
	"FactVerse/backend/go/internal/fact_service/generator"
	"FactVerse/backend/go/internal/fact_service/store"
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeGenerator returns numbered AI facts, or curated ones when curated is set.
type fakeGenerator struct {
	curated  bool
	cached   bool
	panicAt  int32
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (g *fakeGenerator) make(req generator.Request) generator.Result {
	n := g.calls.Add(1)
	f := models.Fact{
		ID:        fmt.Sprintf("hf_%d", n),
		Text:      "The ocean covers most of the amazing planet Earth.",
		Category:  req.Category,
		Source:    "Hugging Face AI",
		CreatedAt: time.Now(),
		Metadata: models.FactMetadata{
			Confidence:  0.7,
			ReadingTime: 3,
			Complexity:  req.Difficulty,
			AIGenerated: !g.curated,
		},
	}
	backend := "huggingface"
	if g.curated {
		f.ID = fmt.Sprintf("fallback_%d", n)
		f.Verified = true
		backend = "curated"
	}
	return generator.Result{Fact: f, Backend: backend, Cached: g.cached}
}

func (g *fakeGenerator) Generate(_ context.Context, req generator.Request) generator.Result {
	return g.make(req)
}

func (g *fakeGenerator) GenerateFresh(_ context.Context, req generator.Request) generator.Result {
	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxSeen.Load()
		if cur <= seen || g.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	res := g.make(req)
	if g.panicAt != 0 && g.calls.Load() == g.panicAt {
		panic("boom")
	}
	return res
}

func (g *fakeGenerator) Fallback(req generator.Request) models.Fact {
	return models.Fact{ID: "fallback_panic", Category: req.Category, Verified: true}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FactEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.FactEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []models.FactEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.FactEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) BroadcastNewFact(models.Fact) { c.n.Add(1) }

// failingStore fails every Create and delegates nothing else.
type failingStore struct {
	store.FactStore
	creates atomic.Int32
}

func (f *failingStore) Create(context.Context, *models.Fact) error {
	f.creates.Add(1)
	return errors.New("disk full")
}

func newSQLiteStore(t *testing.T) *store.GormFactStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	st, err := store.NewGormFactStore(db)
	require.NoError(t, err)
	return st
}

type fixture struct {
	svc      *FactService
	gen      *fakeGenerator
	store    *store.GormFactStore
	pub      *recordingPublisher
	notifier *countingNotifier
}

func newFixture(t *testing.T, gen *fakeGenerator) *fixture {
	t.Helper()
	f := &fixture{gen: gen, store: newSQLiteStore(t), pub: &recordingPublisher{}, notifier: &countingNotifier{}}
	f.svc = NewFactService(gen, f.store, f.pub, f.notifier, nil, Options{BatchWidth: 5, BatchDelay: time.Millisecond}, logger.Discard())
	return f
}

func TestGeneratePersistsAIFactsWithKeywords(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()

	res := f.svc.Generate(ctx, "nature", "easy", 1)
	f.svc.Wait()

	stored, err := f.store.FindByID(ctx, res.Fact.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ocean", "covers", "most", "amazing", "planet"}, stored.Metadata.Keywords)
	assert.Contains(t, stored.Metadata.RelatedTopics, "marine biology")
	assert.Equal(t, []models.FactEventType{models.EventFactGenerated}, f.pub.types())
	assert.EqualValues(t, 1, f.notifier.n.Load())
}

func TestGenerateDoesNotPersistCuratedOrCached(t *testing.T) {
	ctx := context.Background()

	curated := newFixture(t, &fakeGenerator{curated: true})
	res := curated.svc.Generate(ctx, "space", "hard", 1)
	curated.svc.Wait()
	_, err := curated.store.FindByID(ctx, res.Fact.ID)
	assert.ErrorIs(t, err, store.ErrFactNotFound)
	assert.EqualValues(t, 1, curated.notifier.n.Load(), "curated facts are still announced")

	cached := newFixture(t, &fakeGenerator{cached: true})
	res = cached.svc.Generate(ctx, "space", "hard", 1)
	cached.svc.Wait()
	_, err = cached.store.FindByID(ctx, res.Fact.ID)
	assert.ErrorIs(t, err, store.ErrFactNotFound)
	assert.Empty(t, cached.pub.types())
}

func TestGenerateSwallowsPersistenceFailure(t *testing.T) {
	fs := &failingStore{}
	svc := NewFactService(&fakeGenerator{}, fs, nil, nil, nil, Options{}, logger.Discard())

	res := svc.Generate(context.Background(), "science", "medium", 1)
	svc.Wait()
	assert.NotEmpty(t, res.Fact.ID)
	assert.EqualValues(t, 1, fs.creates.Load())
}

func TestGenerateBatch(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()

	out, err := f.svc.GenerateBatch(ctx, "history", "hard", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, out.Requested)
	assert.Equal(t, 12, out.Generated)
	assert.Len(t, out.Facts, 12)
	assert.Empty(t, out.Errors)
	assert.LessOrEqual(t, f.gen.maxSeen.Load(), int32(5), "at most five sub-requests run at once")

	ids := map[string]bool{}
	for _, fact := range out.Facts {
		ids[fact.ID] = true
		assert.Equal(t, models.CategoryHistory, fact.Category)
	}
	assert.Len(t, ids, 12, "batch facts are distinct")

	total, err := f.store.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
}

func TestGenerateBatchValidation(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})

	_, err := f.svc.GenerateBatch(context.Background(), "general", "medium", 51)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Maximum 50 facts can be generated at once", err.Error())

	_, err = f.svc.GenerateBatch(context.Background(), "general", "medium", 0)
	assert.True(t, IsValidation(err))
	assert.Zero(t, f.gen.calls.Load())
}

func TestGenerateBatchReportsFailuresWithoutAborting(t *testing.T) {
	fs := &failingStore{}
	gen := &fakeGenerator{panicAt: 2}
	svc := NewFactService(gen, fs, nil, nil, nil, Options{BatchWidth: 1}, logger.Discard())

	out, err := svc.GenerateBatch(context.Background(), "food", "easy", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Generated)
	assert.Equal(t, "fallback_panic", out.Facts[1].ID)
	// one panic plus two failed saves; the curated replacement is not stored
	assert.Len(t, out.Errors, 3)
	assert.EqualValues(t, 2, fs.creates.Load())
}

func TestGenerateBatchStopsWhenContextCancelled(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewFactService(gen, newSQLiteStore(t), nil, nil, nil, Options{BatchWidth: 2, BatchDelay: time.Hour}, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out, err := svc.GenerateBatch(ctx, "general", "medium", 6)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Generated)
	require.Len(t, out.Errors, 1)
}

func TestGenerateBatchSkipsSlotsOnceCancelled(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewFactService(gen, newSQLiteStore(t), nil, nil, nil, Options{BatchWidth: 5}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := svc.GenerateBatch(ctx, "general", "medium", 5)
	require.NoError(t, err)
	assert.Zero(t, out.Generated)
	assert.Empty(t, out.Facts)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "batch stopped after 0 facts")
	assert.Zero(t, gen.calls.Load())
}

func TestRandomFallsBackToGeneration(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()

	fact, err := f.svc.Random(ctx, "space")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySpace, fact.Category)
	f.svc.Wait()

	again, err := f.svc.Random(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, fact.ID, again.ID, "the stored fact is served once one exists")
}

func TestLikeAndGet(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()
	res := f.svc.Generate(ctx, "animals", "easy", 1)
	f.svc.Wait()

	likes, err := f.svc.Like(ctx, res.Fact.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
	likes, err = f.svc.Like(ctx, res.Fact.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, likes)

	got, err := f.svc.Get(ctx, res.Fact.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Likes)

	_, err = f.svc.Like(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrFactNotFound)
	assert.Contains(t, f.pub.types(), models.EventFactLiked)
}

func TestSearchAndPagination(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.svc.Generate(ctx, "nature", "easy", i+1)
	}
	f.svc.Wait()

	_, err := f.svc.Search(ctx, "  ", "", "", 1, 10)
	assert.True(t, IsValidation(err))

	page, err := f.svc.Search(ctx, "ocean", "all", "easy", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Facts, 1)
	assert.Equal(t, models.Pagination{Current: 2, Total: 2, Count: 1, TotalFacts: 3}, page.Pagination)

	byCat, err := f.svc.ByCategory(ctx, "Nature", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, byCat.Pagination.Current)
	assert.EqualValues(t, 3, byCat.Pagination.TotalFacts)
}

func TestStats(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()
	f.svc.Generate(ctx, "space", "easy", 1)
	f.svc.Generate(ctx, "space", "easy", 2)
	f.svc.Generate(ctx, "food", "easy", 1)
	f.svc.Wait()

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalFacts)
	assert.Equal(t, map[string]int64{"space": 2, "food": 1}, stats.CategoryCounts)
	assert.EqualValues(t, 3, stats.GeneratedToday)
	assert.Equal(t, models.Categories, stats.Categories)

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.GeneratedToday)
}

func TestReportAndSaved(t *testing.T) {
	f := newFixture(t, &fakeGenerator{})
	ctx := context.Background()
	res := f.svc.Generate(ctx, "culture", "medium", 1)
	f.svc.Wait()

	assert.True(t, IsValidation(f.svc.Report(ctx, res.Fact.ID, " ")))
	require.NoError(t, f.svc.Report(ctx, res.Fact.ID, "wrong date"))
	assert.ErrorIs(t, f.svc.Report(ctx, "missing", "spam"), store.ErrFactNotFound)

	require.NoError(t, f.svc.Save(ctx, res.Fact.ID))
	saved, err := f.svc.Saved(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NoError(t, f.svc.Unsave(ctx, res.Fact.ID))
	saved, err = f.svc.Saved(ctx)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestAnalyzeBlankTextUsesDefaults(t *testing.T) {
	svc := NewFactService(&fakeGenerator{}, nil, nil, nil, nil, Options{}, nil)
	assert.Equal(t, "neutral", svc.Analyze("").Sentiment)
	assert.Equal(t, "positive", svc.Analyze("The incredible octopus has three hearts.").Sentiment)
}
