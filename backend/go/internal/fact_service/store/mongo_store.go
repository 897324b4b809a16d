package store

import (
	"FactVerse/backend/go/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by MongoFactStore.
const (
	FactsCollection = "facts"
	SavedCollection = "saved_facts"
)

type metadataDocument struct {
	Confidence    float64  `bson:"confidence"`
	ReadingTime   int      `bson:"readingTime"`
	Complexity    string   `bson:"complexity"`
	AIGenerated   bool     `bson:"aiGenerated"`
	Keywords      []string `bson:"keywords,omitempty"`
	RelatedTopics []string `bson:"relatedTopics,omitempty"`
}

type reportDocument struct {
	Reason     string    `bson:"reason"`
	ReportedAt time.Time `bson:"reportedAt"`
	Resolved   bool      `bson:"resolved"`
}

type factDocument struct {
	ID        string           `bson:"_id"`
	Text      string           `bson:"text"`
	Category  string           `bson:"category"`
	Source    string           `bson:"source"`
	Verified  bool             `bson:"verified"`
	Likes     int              `bson:"likes"`
	Metadata  metadataDocument `bson:"metadata"`
	Reports   []reportDocument `bson:"reports,omitempty"`
	CreatedAt time.Time        `bson:"createdAt"`
	UpdatedAt time.Time        `bson:"updatedAt"`
}

type savedDocument struct {
	FactID  string    `bson:"_id"`
	SavedAt time.Time `bson:"savedAt"`
}

// MongoFactStore is an implementation of FactStore using MongoDB.
type MongoFactStore struct {
	facts *mongo.Collection
	saved *mongo.Collection
	now   func() time.Time
}

var _ FactStore = (*MongoFactStore)(nil)

// NewMongoFactStore creates a new MongoFactStore.
func NewMongoFactStore(db *mongo.Database) *MongoFactStore {
	return &MongoFactStore{
		facts: db.Collection(FactsCollection),
		saved: db.Collection(SavedCollection),
		now:   time.Now,
	}
}

// EnsureIndexes creates the text index used by Search and the indexes backing
// category, trending and recency queries.
func (s *MongoFactStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.facts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "text", Value: "text"}, {Key: "metadata.keywords", Value: "text"}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "verified", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "likes", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "likes", Value: -1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create fact indexes: %w", err)
	}
	return nil
}

// Create inserts a new fact.
func (s *MongoFactStore) Create(ctx context.Context, fact *models.Fact) error {
	doc := toDocument(fact)
	doc.UpdatedAt = s.now().UTC()
	if _, err := s.facts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	updated := doc.UpdatedAt
	fact.UpdatedAt = &updated
	return nil
}

// FindByID retrieves a fact by its ID.
func (s *MongoFactStore) FindByID(ctx context.Context, id string) (*models.Fact, error) {
	var doc factDocument
	if err := s.facts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoNotFound(err)
	}
	f := doc.toModel()
	return &f, nil
}

// FindAll returns facts newest first.
func (s *MongoFactStore) FindAll(ctx context.Context, limit, offset int) ([]models.Fact, error) {
	return s.find(ctx, bson.M{}, pageOptions(bson.D{{Key: "createdAt", Value: -1}}, limit, offset))
}

// FindByCategory returns one page of a category, newest first.
func (s *MongoFactStore) FindByCategory(ctx context.Context, category models.Category, limit, offset int) ([]models.Fact, error) {
	return s.find(ctx, bson.M{"category": string(category)},
		pageOptions(bson.D{{Key: "createdAt", Value: -1}}, limit, offset))
}

// CountByCategory counts the facts of a category.
func (s *MongoFactStore) CountByCategory(ctx context.Context, category models.Category) (int64, error) {
	return s.facts.CountDocuments(ctx, bson.M{"category": string(category)})
}

// FindTrending returns the most liked facts.
func (s *MongoFactStore) FindTrending(ctx context.Context, limit int) ([]models.Fact, error) {
	return s.find(ctx, bson.M{},
		pageOptions(bson.D{{Key: "likes", Value: -1}, {Key: "createdAt", Value: -1}}, limit, 0))
}

// GetRandomFact samples one document with $sample.
func (s *MongoFactStore) GetRandomFact(ctx context.Context, category models.Category) (*models.Fact, error) {
	match := bson.M{}
	if category != "" {
		match["category"] = string(category)
	}
	cursor, err := s.facts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []factDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrFactNotFound
	}
	f := docs[0].toModel()
	return &f, nil
}

// IncrementLikes applies $inc and returns the updated count.
func (s *MongoFactStore) IncrementLikes(ctx context.Context, id string) (int, error) {
	var doc factDocument
	err := s.facts.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"likes": 1}, "$set": bson.M{"updatedAt": s.now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, mongoNotFound(err)
	}
	return doc.Likes, nil
}

// Search runs a $text query ordered by text score.
func (s *MongoFactStore) Search(ctx context.Context, query string, filter SearchFilter, limit, offset int) ([]models.Fact, error) {
	if len(searchTerms(query)) == 0 {
		return []models.Fact{}, nil
	}
	score := bson.M{"score": bson.M{"$meta": "textScore"}}
	opts := options.Find().
		SetProjection(score).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return s.find(ctx, searchFilter(query, filter), opts)
}

// CountSearch counts the matches of Search.
func (s *MongoFactStore) CountSearch(ctx context.Context, query string, filter SearchFilter) (int64, error) {
	if len(searchTerms(query)) == 0 {
		return 0, nil
	}
	return s.facts.CountDocuments(ctx, searchFilter(query, filter))
}

func searchFilter(query string, filter SearchFilter) bson.M {
	m := bson.M{"$text": bson.M{"$search": query}}
	if filter.Category != "" {
		m["category"] = string(filter.Category)
	}
	if filter.Difficulty != "" {
		m["metadata.complexity"] = string(filter.Difficulty)
	}
	return m
}

// GetCategoryStats groups facts by category.
func (s *MongoFactStore) GetCategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	cursor, err := s.facts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      "$category",
			"count":    bson.M{"$sum": 1},
			"avgLikes": bson.M{"$avg": "$likes"},
			"verified": bson.M{"$sum": bson.M{"$cond": bson.A{"$verified", 1, 0}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Category string  `bson:"_id"`
		Count    int64   `bson:"count"`
		Verified int64   `bson:"verified"`
		AvgLikes float64 `bson:"avgLikes"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	stats := make([]models.CategoryStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, models.CategoryStat{Category: r.Category, Count: r.Count, Verified: r.Verified, AvgLikes: r.AvgLikes})
	}
	return stats, nil
}

// CountAll counts every fact.
func (s *MongoFactStore) CountAll(ctx context.Context) (int64, error) {
	return s.facts.CountDocuments(ctx, bson.M{})
}

// CountSince counts facts created at or after since.
func (s *MongoFactStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.facts.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since.UTC()}})
}

// AddReport pushes a report onto the fact document.
func (s *MongoFactStore) AddReport(ctx context.Context, report models.Report) error {
	res, err := s.facts.UpdateOne(ctx,
		bson.M{"_id": report.FactID},
		bson.M{"$push": bson.M{"reports": reportDocument{
			Reason:     report.Reason,
			ReportedAt: report.ReportedAt.UTC(),
			Resolved:   report.Resolved,
		}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrFactNotFound
	}
	return nil
}

// SaveFact upserts a saved marker; saving twice keeps the first timestamp.
func (s *MongoFactStore) SaveFact(ctx context.Context, id string, at time.Time) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	_, err := s.saved.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": bson.M{"savedAt": at.UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// UnsaveFact removes the saved marker.
func (s *MongoFactStore) UnsaveFact(ctx context.Context, id string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	_, err := s.saved.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListSaved returns saved facts, most recently saved first.
func (s *MongoFactStore) ListSaved(ctx context.Context) ([]models.Fact, error) {
	cursor, err := s.saved.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "savedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var marks []savedDocument
	if err := cursor.All(ctx, &marks); err != nil {
		return nil, err
	}
	if len(marks) == 0 {
		return []models.Fact{}, nil
	}
	ids := make([]string, len(marks))
	for i, m := range marks {
		ids[i] = m.FactID
	}

	facts, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Fact, len(facts))
	for _, f := range facts {
		byID[f.ID] = f
	}
	out := make([]models.Fact, 0, len(facts))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MongoFactStore) exists(ctx context.Context, id string) error {
	n, err := s.facts.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFactNotFound
	}
	return nil
}

func (s *MongoFactStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Fact, error) {
	cursor, err := s.facts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []factDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Fact, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func pageOptions(sort bson.D, limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func mongoNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrFactNotFound
	}
	return err
}

func toDocument(f *models.Fact) factDocument {
	return factDocument{
		ID:       f.ID,
		Text:     f.Text,
		Category: string(f.Category),
		Source:   f.Source,
		Verified: f.Verified,
		Likes:    f.Likes,
		Metadata: metadataDocument{
			Confidence:    f.Metadata.Confidence,
			ReadingTime:   f.Metadata.ReadingTime,
			Complexity:    string(f.Metadata.Complexity),
			AIGenerated:   f.Metadata.AIGenerated,
			Keywords:      f.Metadata.Keywords,
			RelatedTopics: f.Metadata.RelatedTopics,
		},
		CreatedAt: f.CreatedAt.UTC(),
	}
}

func (d factDocument) toModel() models.Fact {
	f := models.Fact{
		ID:        d.ID,
		Text:      d.Text,
		Category:  models.Category(d.Category),
		Source:    d.Source,
		Verified:  d.Verified,
		Likes:     d.Likes,
		CreatedAt: d.CreatedAt.UTC(),
		Metadata: models.FactMetadata{
			Confidence:    d.Metadata.Confidence,
			ReadingTime:   d.Metadata.ReadingTime,
			Complexity:    models.Difficulty(d.Metadata.Complexity),
			AIGenerated:   d.Metadata.AIGenerated,
			Keywords:      d.Metadata.Keywords,
			RelatedTopics: d.Metadata.RelatedTopics,
		},
	}
	if !d.UpdatedAt.IsZero() {
		u := d.UpdatedAt.UTC()
		f.UpdatedAt = &u
	}
	return f
}
