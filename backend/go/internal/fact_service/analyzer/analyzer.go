// Package analyzer derives descriptive metadata from fact text using fixed word
// lists and word/sentence arithmetic. It performs no I/O.
package analyzer

import (
	"FactVerse/backend/go/internal/models"
	"math"
	"regexp"
	"strings"
	"unicode"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"

	maxKeywords = 5
	maxTopics   = 3
)

var (
	positiveWords = []string{"amazing", "incredible", "fascinating", "wonderful", "remarkable"}
	negativeWords = []string{"dangerous", "deadly", "harmful", "destructive", "terrible"}

	stopWords = map[string]struct{}{}

	// topicMap is ordered so that related topics are deterministic.
	topicMap = []struct {
		key    string
		topics []string
	}{
		{"space", []string{"astronomy", "planets", "stars", "galaxies"}},
		{"ocean", []string{"marine biology", "sea creatures", "water"}},
		{"animal", []string{"biology", "wildlife", "nature"}},
		{"plant", []string{"botany", "nature", "environment"}},
		{"human", []string{"anatomy", "biology", "health"}},
		{"earth", []string{"geology", "environment", "climate"}},
	}

	sentenceSplit = regexp.MustCompile(`[.!?]`)
)

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by is are was were be been
		have has had will would could should may might can this that these those`) {
		stopWords[w] = struct{}{}
	}
}

// Default is the analysis returned for empty input or on internal failure.
func Default() models.Analysis {
	return models.Analysis{
		Sentiment:        SentimentNeutral,
		Complexity:       0.5,
		ReadabilityScore: 0.7,
		Keywords:         []string{},
		RelatedTopics:    []string{},
	}
}

// Analyze returns sentiment, complexity, readability, keywords and related
// topics for text. It never fails.
func Analyze(text string) (out models.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			out = Default()
		}
	}()

	words := strings.Fields(text)
	if len(words) == 0 {
		return Default()
	}

	keywords := Keywords(text)
	return models.Analysis{
		Sentiment:        Sentiment(text),
		Complexity:       Complexity(text),
		ReadabilityScore: Readability(text),
		Keywords:         keywords,
		RelatedTopics:    relatedTopics(keywords),
	}
}

// Sentiment counts whole-word, case-insensitive matches against the positive and
// negative lists. Each listed word counts at most once.
func Sentiment(text string) string {
	tokens := make(map[string]struct{})
	for _, t := range tokenize(text) {
		tokens[t] = struct{}{}
	}
	count := func(list []string) int {
		n := 0
		for _, w := range list {
			if _, ok := tokens[w]; ok {
				n++
			}
		}
		return n
	}

	pos, neg := count(positiveWords), count(negativeWords)
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Complexity is min(1, (avgWordLength*0.1 + avgWordsPerSentence*0.05) / 2).
// Word length includes attached punctuation.
func Complexity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return Default().Complexity
	}
	letters := 0
	for _, w := range words {
		letters += len([]rune(w))
	}
	avgWordLen := float64(letters) / float64(len(words))
	avgWPS := float64(len(words)) / float64(sentenceCount(text))
	return clamp((avgWordLen*0.1+avgWPS*0.05)/2, 0, 1)
}

// Readability is clamp(1 - (avgWordsPerSentence - 10) / 20, 0, 1).
func Readability(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return Default().ReadabilityScore
	}
	avgWPS := float64(len(words)) / float64(sentenceCount(text))
	return clamp(1-(avgWPS-10)/20, 0, 1)
}

// Keywords lowercases text, strips everything but letters, digits, underscores
// and whitespace, and keeps the first five tokens longer than three characters
// that are not stop words.
func Keywords(text string) []string {
	out := []string{}
	for _, t := range tokenize(text) {
		if len([]rune(t)) <= 3 {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		out = append(out, t)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// RelatedTopics maps the keywords of text onto broader topics.
func RelatedTopics(text string) []string {
	return relatedTopics(Keywords(text))
}

func relatedTopics(keywords []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, kw := range keywords {
		for _, entry := range topicMap {
			if !strings.Contains(kw, entry.key) {
				continue
			}
			for _, topic := range entry.topics {
				if _, ok := seen[topic]; ok {
					continue
				}
				seen[topic] = struct{}{}
				out = append(out, topic)
				if len(out) == maxTopics {
					return out
				}
			}
		}
	}
	return out
}

// tokenize lowercases text, removes non-word characters and splits on whitespace.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	return strings.Fields(cleaned)
}

// sentenceCount counts non-blank segments between sentence terminators, with a minimum of one.
func sentenceCount(text string) int {
	n := 0
	for _, seg := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(seg) != "" {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
