package models

import (
	"math"
	"strings"
	"time"
)

// Category 是事实所属的主题分类。
type Category string

const (
	CategoryScience     Category = "science"
	CategoryHistory     Category = "history"
	CategoryNature      Category = "nature"
	CategorySpace       Category = "space"
	CategoryTechnology  Category = "technology"
	CategoryAnimals     Category = "animals"
	CategoryGeography   Category = "geography"
	CategoryCulture     Category = "culture"
	CategoryMathematics Category = "mathematics"
	CategoryFood        Category = "food"
	CategoryGeneral     Category = "general"
)

// Categories 按固定顺序列出所有受支持的分类。
var Categories = []Category{
	CategoryScience,
	CategoryHistory,
	CategoryNature,
	CategorySpace,
	CategoryTechnology,
	CategoryAnimals,
	CategoryGeography,
	CategoryCulture,
	CategoryMathematics,
	CategoryFood,
	CategoryGeneral,
}

// ParseCategory 判断字符串是否为受支持的分类（大小写不敏感）。
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return CategoryGeneral, false
}

// NormalizeCategory 将未知分类归入 general。
func NormalizeCategory(s string) Category {
	c, _ := ParseCategory(s)
	return c
}

// Difficulty 是事实的难度等级。
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty 判断字符串是否为受支持的难度。
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	default:
		return DifficultyMedium, false
	}
}

// NormalizeDifficulty 将未知难度归为 medium。
func NormalizeDifficulty(s string) Difficulty {
	d, _ := ParseDifficulty(s)
	return d
}

// WordsPerMinute 是估算阅读时间使用的阅读速度。
const WordsPerMinute = 200

// ReadingTime 按每分钟 200 词估算阅读所需秒数：ceil(words / 200 * 60)。
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) / WordsPerMinute * 60))
}

// FactMetadata 描述事实的来源与阅读属性。
type FactMetadata struct {
	Confidence    float64    `json:"confidence"`
	ReadingTime   int        `json:"readingTime"`
	Complexity    Difficulty `json:"complexity"`
	AIGenerated   bool       `json:"aiGenerated"`
	Keywords      []string   `json:"keywords,omitempty"`
	RelatedTopics []string   `json:"relatedTopics,omitempty"`
}

// Fact 是系统中唯一的领域实体。
type Fact struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Category  Category     `json:"category"`
	Source    string       `json:"source"`
	Verified  bool         `json:"verified"`
	Likes     int          `json:"likes"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty"`
	Metadata  FactMetadata `json:"metadata"`
}

// Clone 返回一份深拷贝，缓存中的事实不会被调用方修改。
func (f Fact) Clone() Fact {
	out := f
	if f.UpdatedAt != nil {
		t := *f.UpdatedAt
		out.UpdatedAt = &t
	}
	if f.Metadata.Keywords != nil {
		out.Metadata.Keywords = append([]string(nil), f.Metadata.Keywords...)
	}
	if f.Metadata.RelatedTopics != nil {
		out.Metadata.RelatedTopics = append([]string(nil), f.Metadata.RelatedTopics...)
	}
	return out
}

// Analysis 是启发式文本分析的结果。
type Analysis struct {
	Sentiment        string   `json:"sentiment"`
	Complexity       float64  `json:"complexity"`
	ReadabilityScore float64  `json:"readabilityScore"`
	Keywords         []string `json:"keywords"`
	RelatedTopics    []string `json:"relatedTopics"`
}

// Report 是用户对某条事实的举报。
type Report struct {
	FactID     string    `json:"factId"`
	Reason     string    `json:"reason"`
	ReportedAt time.Time `json:"reportedAt"`
	Resolved   bool      `json:"resolved"`
}

// CategoryStat 是单个分类的聚合统计。
type CategoryStat struct {
	Category string  `json:"category"`
	Count    int64   `json:"count"`
	Verified int64   `json:"verified"`
	AvgLikes float64 `json:"avg_likes"`
}

// FactStats 是 /facts/stats 的响应。
type FactStats struct {
	TotalFacts     int64            `json:"totalFacts"`
	CategoryCounts map[string]int64 `json:"categoryCounts"`
	GeneratedToday int64            `json:"generatedToday"`
	Categories     []Category       `json:"categories"`
}

// Pagination 描述分页查询的位置。
type Pagination struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	Count      int   `json:"count"`
	TotalFacts int64 `json:"totalFacts"`
}

// NewPagination 根据页码、每页数量和总数计算分页信息。
func NewPagination(page, limit, count int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Current: page, Total: pages, Count: count, TotalFacts: total}
}

// FactEventType 是对外发布的事件类型。
type FactEventType string

const (
	EventFactGenerated FactEventType = "fact.generated"
	EventFactLiked     FactEventType = "fact.liked"
	EventFactReported  FactEventType = "fact.reported"
)

// FactEvent 是发布到消息队列的事件。
type FactEvent struct {
	Type       FactEventType `json:"type"`
	Fact       *Fact         `json:"fact,omitempty"`
	FactID     string        `json:"factId"`
	Backend    string        `json:"backend,omitempty"`
	Likes      int           `json:"likes,omitempty"`
	Instance   string        `json:"instance,omitempty"` // 发布事件的服务实例
	OccurredAt time.Time     `json:"occurredAt"`
}
