package store

import (
	"FactVerse/backend/go/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// factRecord 是 facts 表的行结构。
type factRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	Text          string `gorm:"type:text;not null"`
	Category      string `gorm:"size:32;not null;index;index:idx_facts_category_likes,priority:1"`
	Source        string `gorm:"size:128"`
	Verified      bool   `gorm:"not null;default:false;index"`
	Likes         int    `gorm:"not null;default:0;index;index:idx_facts_category_likes,priority:2"`
	Confidence    float64
	ReadingTime   int
	Complexity    string `gorm:"size:16"`
	AIGenerated   bool
	Keywords      datatypes.JSON
	RelatedTopics datatypes.JSON
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (factRecord) TableName() string { return "facts" }

// reportRecord 是 fact_reports 表的行结构。
type reportRecord struct {
	ID         uint   `gorm:"primaryKey"`
	FactID     string `gorm:"size:64;not null;index"`
	Reason     string `gorm:"size:500;not null"`
	ReportedAt time.Time
	Resolved   bool `gorm:"not null;default:false"`
}

func (reportRecord) TableName() string { return "fact_reports" }

// savedRecord 是 saved_facts 表的行结构。
type savedRecord struct {
	FactID  string    `gorm:"primaryKey;size:64"`
	SavedAt time.Time `gorm:"index"`
}

func (savedRecord) TableName() string { return "saved_facts" }

var _ FactStore = (*GormFactStore)(nil)

// GormFactStore 基于 GORM 实现 FactStore，生产环境使用 MySQL。
type GormFactStore struct {
	DB *gorm.DB
	// intN 返回 [0, n) 内的随机数，测试中可以替换。
	intN func(n int) int
}

// NewGormFactStore 创建存储并自动迁移表结构。
func NewGormFactStore(db *gorm.DB) (*GormFactStore, error) {
	if err := db.AutoMigrate(&factRecord{}, &reportRecord{}, &savedRecord{}); err != nil {
		return nil, fmt.Errorf("迁移事实表失败: %w", err)
	}
	return &GormFactStore{DB: db, intN: rand.IntN}, nil
}

// Create 插入一条事实。ID 由生成事实的后端分配。
func (s *GormFactStore) Create(ctx context.Context, fact *models.Fact) error {
	rec, err := toRecord(fact)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("保存事实失败: %w", err)
	}
	updated := rec.UpdatedAt
	fact.UpdatedAt = &updated
	return nil
}

// FindByID 通过 ID 查找事实。
func (s *GormFactStore) FindByID(ctx context.Context, id string) (*models.Fact, error) {
	var rec factRecord
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	f := rec.toModel()
	return &f, nil
}

// FindAll 按创建时间倒序分页返回事实。
func (s *GormFactStore) FindAll(ctx context.Context, limit, offset int) ([]models.Fact, error) {
	var recs []factRecord
	err := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&recs).Error
	return toModels(recs), err
}

// FindByCategory 按创建时间倒序分页返回某个分类的事实。
func (s *GormFactStore) FindByCategory(ctx context.Context, category models.Category, limit, offset int) ([]models.Fact, error) {
	var recs []factRecord
	err := s.DB.WithContext(ctx).
		Where("category = ?", string(category)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	return toModels(recs), err
}

// CountByCategory 统计某个分类的事实数量。
func (s *GormFactStore) CountByCategory(ctx context.Context, category models.Category) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&factRecord{}).Where("category = ?", string(category)).Count(&n).Error
	return n, err
}

// FindTrending 返回点赞最多的事实，点赞相同时较新的在前。
func (s *GormFactStore) FindTrending(ctx context.Context, limit int) ([]models.Fact, error) {
	var recs []factRecord
	err := s.DB.WithContext(ctx).Order("likes DESC").Order("created_at DESC").Limit(limit).Find(&recs).Error
	return toModels(recs), err
}

// GetRandomFact 先计数，再用随机偏移量取一条。
func (s *GormFactStore) GetRandomFact(ctx context.Context, category models.Category) (*models.Fact, error) {
	q := s.DB.WithContext(ctx).Model(&factRecord{})
	if category != "" {
		q = q.Where("category = ?", string(category))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrFactNotFound
	}

	var rec factRecord
	q = s.DB.WithContext(ctx).Model(&factRecord{})
	if category != "" {
		q = q.Where("category = ?", string(category))
	}
	if err := q.Order("id").Offset(s.intN(int(n))).Limit(1).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	f := rec.toModel()
	return &f, nil
}

// IncrementLikes 以 likes = likes + 1 原子地增加点赞数。
func (s *GormFactStore) IncrementLikes(ctx context.Context, id string) (int, error) {
	var likes int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&factRecord{}).Where("id = ?", id).
			Update("likes", gorm.Expr("likes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrFactNotFound
		}
		var rec factRecord
		if err := tx.Select("likes").Where("id = ?", id).First(&rec).Error; err != nil {
			return notFound(err)
		}
		likes = rec.Likes
		return nil
	})
	if err != nil {
		return 0, err
	}
	return likes, nil
}

// Search 在事实文本中查找任意一个查询词，按点赞数排序。
func (s *GormFactStore) Search(ctx context.Context, query string, filter SearchFilter, limit, offset int) ([]models.Fact, error) {
	q, ok := s.searchQuery(ctx, query, filter)
	if !ok {
		return []models.Fact{}, nil
	}
	var recs []factRecord
	err := q.Order("likes DESC").Order("created_at DESC").Limit(limit).Offset(offset).Find(&recs).Error
	return toModels(recs), err
}

// CountSearch 统计 Search 的匹配总数。
func (s *GormFactStore) CountSearch(ctx context.Context, query string, filter SearchFilter) (int64, error) {
	q, ok := s.searchQuery(ctx, query, filter)
	if !ok {
		return 0, nil
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '!' 使用。
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (s *GormFactStore) searchQuery(ctx context.Context, query string, filter SearchFilter) (*gorm.DB, bool) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, false
	}
	conds := make([]string, len(terms))
	args := make([]interface{}, len(terms))
	for i, term := range terms {
		conds[i] = "LOWER(text) LIKE ? ESCAPE '!'"
		args[i] = "%" + likeEscaper.Replace(term) + "%"
	}

	q := s.DB.WithContext(ctx).Model(&factRecord{}).
		Where("("+strings.Join(conds, " OR ")+")", args...)
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if filter.Difficulty != "" {
		q = q.Where("complexity = ?", string(filter.Difficulty))
	}
	return q, true
}

// GetCategoryStats 按分类聚合数量、已验证数量与平均点赞数。
func (s *GormFactStore) GetCategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	var rows []models.CategoryStat
	err := s.DB.WithContext(ctx).Model(&factRecord{}).
		Select("category, COUNT(*) AS count, " +
			"SUM(CASE WHEN verified THEN 1 ELSE 0 END) AS verified, " +
			"AVG(likes) AS avg_likes").
		Group("category").
		Order("count DESC").Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.CategoryStat{}
	}
	return rows, nil
}

// CountAll 统计事实总数。
func (s *GormFactStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&factRecord{}).Count(&n).Error
	return n, err
}

// CountSince 统计 since 之后创建的事实数量。
func (s *GormFactStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&factRecord{}).Where("created_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}

// AddReport 记录一次举报。被举报的事实必须存在。
func (s *GormFactStore) AddReport(ctx context.Context, report models.Report) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, report.FactID); err != nil {
			return err
		}
		return tx.Create(&reportRecord{
			FactID:     report.FactID,
			Reason:     report.Reason,
			ReportedAt: report.ReportedAt.UTC(),
			Resolved:   report.Resolved,
		}).Error
	})
}

// SaveFact 收藏一条事实，重复收藏不会报错。
func (s *GormFactStore) SaveFact(ctx context.Context, id string, at time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, id); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&savedRecord{FactID: id, SavedAt: at.UTC()}).Error
	})
}

// UnsaveFact 取消收藏。
func (s *GormFactStore) UnsaveFact(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, id); err != nil {
			return err
		}
		return tx.Where("fact_id = ?", id).Delete(&savedRecord{}).Error
	})
}

// ListSaved 返回所有已收藏的事实，最近收藏的在前。
func (s *GormFactStore) ListSaved(ctx context.Context) ([]models.Fact, error) {
	var recs []factRecord
	err := s.DB.WithContext(ctx).Model(&factRecord{}).
		Select("facts.*").
		Joins("JOIN saved_facts ON saved_facts.fact_id = facts.id").
		Order("saved_facts.saved_at DESC").
		Find(&recs).Error
	return toModels(recs), err
}

func ensureExists(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&factRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrFactNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFactNotFound
	}
	return err
}

func toRecord(f *models.Fact) (*factRecord, error) {
	keywords, err := jsonList(f.Metadata.Keywords)
	if err != nil {
		return nil, err
	}
	topics, err := jsonList(f.Metadata.RelatedTopics)
	if err != nil {
		return nil, err
	}
	rec := &factRecord{
		ID:            f.ID,
		Text:          f.Text,
		Category:      string(f.Category),
		Source:        f.Source,
		Verified:      f.Verified,
		Likes:         f.Likes,
		Confidence:    f.Metadata.Confidence,
		ReadingTime:   f.Metadata.ReadingTime,
		Complexity:    string(f.Metadata.Complexity),
		AIGenerated:   f.Metadata.AIGenerated,
		Keywords:      keywords,
		RelatedTopics: topics,
		CreatedAt:     f.CreatedAt.UTC(),
	}
	return rec, nil
}

func jsonList(items []string) (datatypes.JSON, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("编码列表失败: %w", err)
	}
	return datatypes.JSON(b), nil
}

func (r factRecord) toModel() models.Fact {
	f := models.Fact{
		ID:        r.ID,
		Text:      r.Text,
		Category:  models.Category(r.Category),
		Source:    r.Source,
		Verified:  r.Verified,
		Likes:     r.Likes,
		CreatedAt: r.CreatedAt.UTC(),
		Metadata: models.FactMetadata{
			Confidence:  r.Confidence,
			ReadingTime: r.ReadingTime,
			Complexity:  models.Difficulty(r.Complexity),
			AIGenerated: r.AIGenerated,
		},
	}
	if !r.UpdatedAt.IsZero() {
		u := r.UpdatedAt.UTC()
		f.UpdatedAt = &u
	}
	// 损坏的 JSON 只会丢失关键词，不影响事实本身。
	_ = json.Unmarshal(r.Keywords, &f.Metadata.Keywords)
	_ = json.Unmarshal(r.RelatedTopics, &f.Metadata.RelatedTopics)
	return f
}

func toModels(recs []factRecord) []models.Fact {
	out := make([]models.Fact, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out
}
