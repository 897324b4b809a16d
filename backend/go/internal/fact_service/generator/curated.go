package generator

import (
	"FactVerse/backend/go/internal/models"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"
)

//go:embed data/curated_facts.json
var embeddedCurated []byte

// lastResortFact is served when a dataset built without ParseDataset has
// neither the requested category nor general.
const lastResortFact = "Honey never spoils when it is stored properly. Archaeologists have found edible honey in ancient Egyptian tombs over 3,000 years old."

// CuratedEntry is one record of the curated dataset.
type CuratedEntry struct {
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"`
}

// Dataset maps a category to its curated facts.
type Dataset map[models.Category][]CuratedEntry

// ParseDataset decodes the JSON dataset format {category: [{text, difficulty}]}.
// Entries with blank text are skipped. The general category must have at least one fact.
func ParseDataset(raw []byte) (Dataset, error) {
	var decoded map[string][]CuratedEntry
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode curated dataset: %w", err)
	}
	ds := make(Dataset, len(decoded))
	for key, entries := range decoded {
		cat := models.Category(strings.ToLower(strings.TrimSpace(key)))
		for _, e := range entries {
			if strings.TrimSpace(e.Text) == "" {
				continue
			}
			ds[cat] = append(ds[cat], e)
		}
	}
	if len(ds[models.CategoryGeneral]) == 0 {
		return nil, fmt.Errorf("%w: general category is empty", ErrNoFacts)
	}
	return ds, nil
}

// LoadDataset reads a dataset file, or the embedded dataset when path is empty.
func LoadDataset(path string) (Dataset, error) {
	if path == "" {
		return ParseDataset(embeddedCurated)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curated dataset %s: %w", path, err)
	}
	return ParseDataset(raw)
}

// CuratedBackend draws facts from a static dataset. It never fails.
type CuratedBackend struct {
	data Dataset
	tmpl factTemplate
	now  func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCuratedBackend creates the curated backend. rnd may be nil.
func NewCuratedBackend(data Dataset, rnd *rand.Rand, now func() time.Time) *CuratedBackend {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &CuratedBackend{
		data: data,
		tmpl: factTemplate{
			idPrefix:    "fallback_",
			source:      "FactVerse AI Curated Collection",
			verified:    true,
			aiGenerated: false,
			confidence:  0.9,
		},
		now: now,
		rnd: rnd,
	}
}

// Name implements Backend.
func (c *CuratedBackend) Name() string { return "curated" }

// Generate implements Backend. The error is always nil.
func (c *CuratedBackend) Generate(_ context.Context, req Request) (models.Fact, error) {
	return c.Pick(req), nil
}

// Pick draws uniformly from the requested category, or from general when the
// category has no facts.
func (c *CuratedBackend) Pick(req Request) models.Fact {
	entries := c.data[req.Category]
	if len(entries) == 0 {
		entries = c.data[models.CategoryGeneral]
	}
	if len(entries) == 0 {
		return c.tmpl.build(lastResortFact, req, c.now())
	}
	c.mu.Lock()
	entry := entries[c.rnd.IntN(len(entries))]
	c.mu.Unlock()

	return c.tmpl.build(strings.TrimSpace(entry.Text), req, c.now())
}
