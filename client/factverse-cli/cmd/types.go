package cmd

import "time"

// fact mirrors the server's JSON representation of a fact.
type fact struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	Verified  bool      `json:"verified"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	Metadata  struct {
		Confidence  float64 `json:"confidence"`
		ReadingTime int     `json:"readingTime"`
		Complexity  string  `json:"complexity"`
		AIGenerated bool    `json:"aiGenerated"`
	} `json:"metadata"`
}

type pagination struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	Count      int   `json:"count"`
	TotalFacts int64 `json:"totalFacts"`
}

type factStats struct {
	TotalFacts     int64            `json:"totalFacts"`
	CategoryCounts map[string]int64 `json:"categoryCounts"`
	GeneratedToday int64            `json:"generatedToday"`
}

type analysis struct {
	Sentiment        string   `json:"sentiment"`
	Complexity       float64  `json:"complexity"`
	ReadabilityScore float64  `json:"readabilityScore"`
	Keywords         []string `json:"keywords"`
	RelatedTopics    []string `json:"relatedTopics"`
}
