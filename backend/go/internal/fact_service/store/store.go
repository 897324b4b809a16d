// Package store persists facts, reports and saved facts.
package store

import (
	"FactVerse/backend/go/internal/models"
	"context"
	"errors"
	"strings"
	"time"
)

// ErrFactNotFound is returned when no fact has the requested id.
var ErrFactNotFound = errors.New("store: fact not found")

// SearchFilter narrows a text search. Zero values match everything.
type SearchFilter struct {
	Category   models.Category
	Difficulty models.Difficulty
}

// FactStore defines the interface for fact persistence.
type FactStore interface {
	Create(ctx context.Context, fact *models.Fact) error
	FindByID(ctx context.Context, id string) (*models.Fact, error)
	FindAll(ctx context.Context, limit, offset int) ([]models.Fact, error)
	FindByCategory(ctx context.Context, category models.Category, limit, offset int) ([]models.Fact, error)
	CountByCategory(ctx context.Context, category models.Category) (int64, error)
	// FindTrending orders by likes, then by recency.
	FindTrending(ctx context.Context, limit int) ([]models.Fact, error)
	// GetRandomFact draws one fact, restricted to category when it is not empty.
	// An empty selection returns ErrFactNotFound.
	GetRandomFact(ctx context.Context, category models.Category) (*models.Fact, error)
	// IncrementLikes adds one like and returns the new count.
	IncrementLikes(ctx context.Context, id string) (int, error)
	Search(ctx context.Context, query string, filter SearchFilter, limit, offset int) ([]models.Fact, error)
	CountSearch(ctx context.Context, query string, filter SearchFilter) (int64, error)
	GetCategoryStats(ctx context.Context) ([]models.CategoryStat, error)
	CountAll(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	AddReport(ctx context.Context, report models.Report) error
	SaveFact(ctx context.Context, id string, at time.Time) error
	UnsaveFact(ctx context.Context, id string) error
	// ListSaved returns saved facts, most recently saved first.
	ListSaved(ctx context.Context) ([]models.Fact, error)
}

// searchTerms splits a query into lowercase terms. A fact matches when it
// contains any of them.
func searchTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}
