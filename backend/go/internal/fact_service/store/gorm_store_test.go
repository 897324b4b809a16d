package store

import (
	"FactVerse/backend/go/internal/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormFactStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 每个连接都有独立的内存数据库，只保留一个连接。
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	s, err := NewGormFactStore(db)
	require.NoError(t, err)
	return s
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fact(id string, cat models.Category, text string, age time.Duration) *models.Fact {
	return &models.Fact{
		ID:        id,
		Text:      text,
		Category:  cat,
		Source:    "Hugging Face AI",
		CreatedAt: base.Add(-age),
		Metadata: models.FactMetadata{
			Confidence:  0.7,
			ReadingTime: models.ReadingTime(text),
			Complexity:  models.DifficultyMedium,
			AIGenerated: true,
		},
	}
}

func seed(t *testing.T, s *GormFactStore, facts ...*models.Fact) {
	t.Helper()
	for _, f := range facts {
		require.NoError(t, s.Create(context.Background(), f))
	}
}

func TestCreateAndFindByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := fact("hf_1", models.CategorySpace, "Venus spins backwards compared to most planets.", 0)
	f.Metadata.Keywords = []string{"venus", "spins"}
	f.Metadata.RelatedTopics = []string{"astronomy"}
	require.NoError(t, s.Create(ctx, f))
	assert.NotNil(t, f.UpdatedAt)

	got, err := s.FindByID(ctx, "hf_1")
	require.NoError(t, err)
	assert.Equal(t, f.Text, got.Text)
	assert.Equal(t, models.CategorySpace, got.Category)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.Equal(t, []string{"venus", "spins"}, got.Metadata.Keywords)
	assert.Equal(t, []string{"astronomy"}, got.Metadata.RelatedTopics)
	assert.True(t, got.Metadata.AIGenerated)
	assert.Equal(t, models.DifficultyMedium, got.Metadata.Complexity)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrFactNotFound)
}

func TestFindByCategoryPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		fact("a", models.CategoryScience, "Oldest science fact here.", 3*time.Hour),
		fact("b", models.CategoryScience, "Middle science fact here.", 2*time.Hour),
		fact("c", models.CategoryScience, "Newest science fact here.", time.Hour),
		fact("d", models.CategoryHistory, "A history fact here.", 0),
	)

	page1, err := s.FindByCategory(ctx, models.CategoryScience, 2, 0)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "c", page1[0].ID)
	assert.Equal(t, "b", page1[1].ID)

	page2, err := s.FindByCategory(ctx, models.CategoryScience, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "a", page2[0].ID)

	n, err := s.CountByCategory(ctx, models.CategoryScience)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	all, err := s.FindAll(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "d", all[0].ID)
}

func TestIncrementLikes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, fact("x", models.CategoryNature, "Trees talk through fungal networks.", 0))

	for want := 1; want <= 3; want++ {
		likes, err := s.IncrementLikes(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, want, likes)
	}

	_, err := s.IncrementLikes(ctx, "nope")
	assert.ErrorIs(t, err, ErrFactNotFound)
}

func TestFindTrending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		fact("old", models.CategoryFood, "Honey never spoils in sealed jars.", 2*time.Hour),
		fact("new", models.CategoryFood, "Carrots were once purple in color.", time.Hour),
		fact("top", models.CategoryFood, "Bananas are botanically berries.", 3*time.Hour),
	)
	for i := 0; i < 2; i++ {
		_, err := s.IncrementLikes(ctx, "top")
		require.NoError(t, err)
	}

	got, err := s.FindTrending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"top", "new", "old"}, []string{got[0].ID, got[1].ID, got[2].ID})

	got, err = s.FindTrending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetRandomFact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetRandomFact(ctx, "")
	assert.ErrorIs(t, err, ErrFactNotFound)

	seed(t, s,
		fact("s1", models.CategorySpace, "Space fact number one.", 0),
		fact("s2", models.CategorySpace, "Space fact number two.", 0),
		fact("h1", models.CategoryHistory, "History fact number one.", 0),
	)

	s.intN = func(n int) int { return n - 1 }
	got, err := s.GetRandomFact(ctx, models.CategorySpace)
	require.NoError(t, err)
	assert.Equal(t, "s2", got.ID)

	s.intN = func(int) int { return 0 }
	got, err = s.GetRandomFact(ctx, models.CategoryHistory)
	require.NoError(t, err)
	assert.Equal(t, "h1", got.ID)

	_, err = s.GetRandomFact(ctx, models.CategoryFood)
	assert.ErrorIs(t, err, ErrFactNotFound)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	hard := fact("o2", models.CategoryNature, "The ocean produces most of the oxygen.", 0)
	hard.Metadata.Complexity = models.DifficultyHard
	seed(t, s,
		fact("o1", models.CategoryNature, "Ocean waves can travel thousands of miles.", 0),
		hard,
		fact("m1", models.CategorySpace, "Mars has the tallest volcano known.", 0),
	)

	got, err := s.Search(ctx, "OCEAN", SearchFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	n, err := s.CountSearch(ctx, "ocean volcano", SearchFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err = s.Search(ctx, "ocean", SearchFilter{Difficulty: models.DifficultyHard}, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o2", got[0].ID)

	got, err = s.Search(ctx, "ocean", SearchFilter{Category: models.CategorySpace}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search(ctx, "   ", SearchFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCategoryStatsAndCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	curated := fact("fallback_1", models.CategoryAnimals, "Octopuses have three hearts.", 48*time.Hour)
	curated.Verified = true
	seed(t, s,
		curated,
		fact("a2", models.CategoryAnimals, "Cows have best friends.", time.Hour),
		fact("g1", models.CategoryGeography, "Russia spans eleven time zones.", time.Hour),
	)
	_, err := s.IncrementLikes(ctx, "a2")
	require.NoError(t, err)

	stats, err := s.GetCategoryStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "animals", stats[0].Category)
	assert.EqualValues(t, 2, stats[0].Count)
	assert.EqualValues(t, 1, stats[0].Verified)
	assert.InDelta(t, 0.5, stats[0].AvgLikes, 1e-9)
	assert.Equal(t, "geography", stats[1].Category)

	total, err := s.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	recent, err := s.CountSince(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, recent)
}

func TestReportsAndSavedFacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		fact("f1", models.CategoryCulture, "Japan has more than six thousand islands.", 0),
		fact("f2", models.CategoryCulture, "Chess originated in India long ago.", 0),
	)

	require.NoError(t, s.AddReport(ctx, models.Report{FactID: "f1", Reason: "inaccurate", ReportedAt: base}))
	var n int64
	require.NoError(t, s.DB.Model(&reportRecord{}).Where("fact_id = ?", "f1").Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.ErrorIs(t, s.AddReport(ctx, models.Report{FactID: "zz", Reason: "spam"}), ErrFactNotFound)

	require.NoError(t, s.SaveFact(ctx, "f1", base))
	require.NoError(t, s.SaveFact(ctx, "f2", base.Add(time.Minute)))
	require.NoError(t, s.SaveFact(ctx, "f1", base.Add(time.Hour)), "saving twice is not an error")

	saved, err := s.ListSaved(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "f2", saved[0].ID)
	assert.Equal(t, "f1", saved[1].ID)

	require.NoError(t, s.UnsaveFact(ctx, "f2"))
	saved, err = s.ListSaved(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "f1", saved[0].ID)

	assert.ErrorIs(t, s.SaveFact(ctx, "zz", base), ErrFactNotFound)
	assert.ErrorIs(t, s.UnsaveFact(ctx, "zz"), ErrFactNotFound)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		fact("p1", models.CategoryScience, "Nearly 100% of the sun's mass is hydrogen and helium.", 0),
		fact("u1", models.CategoryTechnology, "The snake_case style joins words with underscores.", 0),
		fact("x1", models.CategoryNature, "Bees communicate by dancing!", 0),
	)

	for query, want := range map[string][]string{
		"%":     nil,
		"_":     {"u1"},
		"100%":  {"p1"},
		"e_c":   {"u1"},
		"!":     {"x1"},
		"a%b_c": nil,
	} {
		got, err := s.Search(ctx, query, SearchFilter{}, 10, 0)
		require.NoError(t, err, query)
		ids := make([]string, 0, len(got))
		for _, f := range got {
			ids = append(ids, f.ID)
		}
		assert.ElementsMatch(t, want, ids, "query %q", query)

		n, err := s.CountSearch(ctx, query, SearchFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, len(want), n, "query %q", query)
	}
}
