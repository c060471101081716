// Package style learns the owner's writing style from their own messages.
package style

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	SampleSize    = 200
	MinMessages   = 10
	TopEmojis     = 5
	TopPhrases    = 10
	TopWords      = 20
	ExampleCount  = 5
	minWordCount  = 3
	minWordLength = 4
)

// ErrInsufficientData is returned when there are too few owner messages to analyse.
var ErrInsufficientData = errors.New("not enough own messages to analyse")

// emojiRegex covers pictographic blocks only. General Punctuation (smart
// quotes, dashes, ellipsis) stays out.
var emojiRegex = regexp.MustCompile(`[\x{00A9}\x{00AE}\x{203C}\x{2049}\x{2122}\x{2139}\x{2194}-\x{21AA}` +
	`\x{231A}-\x{23FF}\x{24C2}\x{25AA}-\x{25FE}\x{2600}-\x{27BF}\x{2934}\x{2935}\x{2B00}-\x{2BFF}` +
	`\x{3030}\x{303D}\x{3297}\x{3299}\x{1F000}-\x{1FAFF}]`)

var (
	wordRegex        = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	punctuationRegex = regexp.MustCompile(`[!?.;:-]`)
)

// Analyzer recomputes the style profile. Runs are serialised.
type Analyzer struct {
	source  OwnMessageSource
	profile storage.StyleStorage
	logger  *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// OwnMessageSource provides the owner's most recent messages, newest first.
type OwnMessageSource interface {
	GetOwnMessages(ctx context.Context, limit int) ([]string, error)
}

func NewAnalyzer(source OwnMessageSource, profile storage.StyleStorage, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		source:  source,
		profile: profile,
		logger:  logger,
		now:     time.Now,
	}
}

// Analyze computes and stores a new profile. With fewer than MinMessages own
// messages it returns ErrInsufficientData and leaves the stored profile alone.
func (a *Analyzer) Analyze(ctx context.Context) (*models.StyleProfile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	messages, err := a.source.GetOwnMessages(ctx, SampleSize)
	if err != nil {
		return nil, fmt.Errorf("load own messages: %w", err)
	}
	if len(messages) < MinMessages {
		a.logger.Info("Not enough data for style analysis",
			zap.Int("messages", len(messages)),
			zap.Int("required", MinMessages))
		return nil, ErrInsufficientData
	}

	profile := Compute(messages)
	profile.UpdatedAt = a.now()

	if err := a.profile.SaveStyleProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save style profile: %w", err)
	}

	a.logger.Info("Style profile updated",
		zap.String("tone", string(profile.Tone)),
		zap.Float64("formality", profile.Formality),
		zap.Int("analyzed", profile.TotalAnalyzed))
	return profile, nil
}

// Compute derives a profile from messages ordered newest first.
func Compute(messages []string) *models.StyleProfile {
	minLen, maxLen := lengthBounds(messages)
	return &models.StyleProfile{
		Tone:            DetectTone(messages),
		Formality:       AssessFormality(messages),
		AvgLength:       averageLength(messages),
		MinLength:       minLen,
		MaxLength:       maxLen,
		EmojiFrequency:  emojiFrequency(messages),
		FavoriteEmojis:  topEmojis(messages, TopEmojis),
		CommonPhrases:   commonPhrases(messages, TopPhrases),
		CommonWords:     commonWords(messages, TopWords),
		UseSlang:        usesSlang(messages),
		SlangPercentage: slangPercentage(messages),
		UsesPunctuation: usesPunctuation(messages),
		AvgPunctuation:  averagePunctuation(messages),
		ExampleMessages: examples(messages, ExampleCount),
		TotalAnalyzed:   len(messages),
	}
}

func averageLength(messages []string) int {
	if len(messages) == 0 {
		return 0
	}
	total := 0
	for _, m := range messages {
		total += utf8.RuneCountInString(m)
	}
	return int(math.Round(float64(total) / float64(len(messages))))
}

func lengthBounds(messages []string) (int, int) {
	if len(messages) == 0 {
		return 0, 0
	}
	minLen, maxLen := math.MaxInt, 0
	for _, m := range messages {
		n := utf8.RuneCountInString(m)
		minLen = min(minLen, n)
		maxLen = max(maxLen, n)
	}
	return minLen, maxLen
}

func emojiFrequency(messages []string) float64 {
	return ratio(messages, emojiRegex.MatchString)
}

func topEmojis(messages []string, limit int) []string {
	counts := make(map[string]int)
	for _, m := range messages {
		for _, e := range emojiRegex.FindAllString(m, -1) {
			counts[e]++
		}
	}
	return rank(counts, limit, 1)
}

func commonPhrases(messages []string, limit int) []string {
	counts := make(map[string]int)
	for _, m := range messages {
		words := strings.Fields(strings.ToLower(m))
		for i := 0; i+1 < len(words); i++ {
			phrase := words[i] + " " + words[i+1]
			if utf8.RuneCountInString(phrase) > 4 {
				counts[phrase]++
			}
		}
	}
	return rank(counts, limit, 1)
}

func commonWords(messages []string, limit int) []string {
	counts := make(map[string]int)
	for _, m := range messages {
		for _, w := range wordRegex.FindAllString(strings.ToLower(m), -1) {
			if utf8.RuneCountInString(w) < minWordLength || stopWords[w] {
				continue
			}
			counts[w]++
		}
	}
	return rank(counts, limit, minWordCount)
}

func usesSlang(messages []string) bool {
	for _, m := range messages {
		if containsSlang(m) {
			return true
		}
	}
	return false
}

func slangPercentage(messages []string) float64 {
	return ratio(messages, containsSlang)
}

func containsSlang(message string) bool {
	lower := strings.ToLower(message)
	for _, s := range slangLexicon {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func usesPunctuation(messages []string) bool {
	return ratio(messages, punctuationRegex.MatchString) > 0.5
}

func averagePunctuation(messages []string) float64 {
	if len(messages) == 0 {
		return 0
	}
	total := 0
	for _, m := range messages {
		total += len(punctuationRegex.FindAllStringIndex(m, -1))
	}
	return round2(float64(total) / float64(len(messages)))
}

func examples(messages []string, n int) []string {
	n = min(n, len(messages))
	out := make([]string, n)
	copy(out, messages[:n])
	return out
}

// ratio is the share of messages for which match holds, rounded to 2 places.
func ratio(messages []string, match func(string) bool) float64 {
	if len(messages) == 0 {
		return 0
	}
	hits := 0
	for _, m := range messages {
		if match(m) {
			hits++
		}
	}
	return round2(float64(hits) / float64(len(messages)))
}

// rank returns keys ordered by descending count, ties broken alphabetically.
func rank(counts map[string]int, limit, minCount int) []string {
	keys := make([]string, 0, len(counts))
	for k, c := range counts {
		if c >= minCount {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
