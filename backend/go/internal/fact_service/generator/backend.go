// Package generator produces facts from remote text-generation services with a
// curated fallback. The Selector decides which backends to try for each request
// and always returns a fact.
package generator

import (
	"FactVerse/backend/go/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQuotaExceeded is returned by a remote backend whose daily ceiling is reached.
	ErrQuotaExceeded = errors.New("generator: daily quota exceeded")
	// ErrNotConfigured is returned when a backend has no usable credentials.
	ErrNotConfigured = errors.New("generator: backend not configured")
	// ErrEmptyResponse is returned when a remote backend answers with blank text.
	ErrEmptyResponse = errors.New("generator: empty response")
	// ErrBackendPanic wraps a panic recovered while a backend was running.
	ErrBackendPanic = errors.New("generator: backend panicked")
	// ErrNoFacts is returned when a curated dataset has nothing to draw from.
	ErrNoFacts = errors.New("generator: curated dataset has no facts")
)

// Request is a normalized generation request.
type Request struct {
	Category   models.Category
	Difficulty models.Difficulty
	Count      int
}

// NewRequest normalizes raw request values. Unknown categories become general,
// unknown difficulties become medium, and a count below 1 becomes 1.
func NewRequest(category, difficulty string, count int) Request {
	if count < 1 {
		count = 1
	}
	return Request{
		Category:   models.NormalizeCategory(category),
		Difficulty: models.NormalizeDifficulty(difficulty),
		Count:      count,
	}
}

// Backend produces one fact for a request.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (models.Fact, error)
}

// Remote is a backend that can run out of quota.
type Remote interface {
	Backend
	// Available reports whether the backend is under its quota. Errors from the
	// quota store count as unavailable.
	Available(ctx context.Context) bool
}

// factTemplate holds the per-backend constants stamped onto every produced fact.
type factTemplate struct {
	idPrefix    string
	source      string
	verified    bool
	aiGenerated bool
	confidence  float64
}

func (t factTemplate) build(text string, req Request, now time.Time) models.Fact {
	return models.Fact{
		ID:        t.idPrefix + uuid.NewString(),
		Text:      text,
		Category:  req.Category,
		Source:    t.source,
		Verified:  t.verified,
		Likes:     0,
		CreatedAt: now,
		Metadata: models.FactMetadata{
			Confidence:  t.confidence,
			ReadingTime: models.ReadingTime(text),
			Complexity:  req.Difficulty,
			AIGenerated: t.aiGenerated,
		},
	}
}
