package style

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/storage"
	"go.uber.org/zap"
)

type staticSource struct {
	messages []string
	err      error
	limit    int
}

func (s *staticSource) GetOwnMessages(ctx context.Context, limit int) ([]string, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

func repeat(text string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = text
	}
	return out
}

func TestAnalyzeInsufficientDataKeepsProfile(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	existing := models.DefaultStyleProfile()
	existing.Tone = models.ToneReflective
	existing.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveStyleProfile(ctx, existing))

	a := NewAnalyzer(&staticSource{messages: repeat("oi", MinMessages-1)}, store, zap.NewNop())
	profile, err := a.Analyze(ctx)
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Nil(t, profile)

	got, err := store.GetStyleProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ToneReflective, got.Tone)
	assert.True(t, existing.UpdatedAt.Equal(got.UpdatedAt))
}

func TestAnalyzeSavesProfile(t *testing.T) {
	store := storage.NewMemoryStorage()
	source := &staticSource{messages: repeat("que dia incrível!! 😂", 12)}
	a := NewAnalyzer(source, store, zap.NewNop())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return at }

	profile, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SampleSize, source.limit)
	assert.Equal(t, models.ToneEnthusiastic, profile.Tone)
	assert.Equal(t, 12, profile.TotalAnalyzed)
	assert.Equal(t, []string{"😂"}, profile.FavoriteEmojis)
	assert.Equal(t, 1.0, profile.EmojiFrequency)

	stored, err := store.GetStyleProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ToneEnthusiastic, stored.Tone)
	assert.True(t, at.Equal(stored.UpdatedAt))
}

func TestAnalyzeSourceError(t *testing.T) {
	a := NewAnalyzer(&staticSource{err: errors.New("db gone")}, storage.NewMemoryStorage(), zap.NewNop())
	_, err := a.Analyze(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}

func TestDetectToneRuleOrder(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		want     models.Tone
	}{
		{"exclamation wins over question", []string{"sério?!", "nossa!", "que?!", "ok"}, models.ToneEnthusiastic},
		{"question", []string{"vamos?", "ok", "sim", "beleza"}, models.ToneCurious},
		{"ellipsis", []string{"sei lá...", "ok", "talvez", "pode ser"}, models.ToneReflective},
		{"casual fallback", []string{"ok", "sim", "beleza", "valeu"}, models.ToneCasual},
		{"empty", nil, models.ToneCasual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTone(tt.messages))
		})
	}
}

func TestAssessFormalityClamps(t *testing.T) {
	assert.Equal(t, 1.0, AssessFormality([]string{"Prezado Sr. Silva, atenciosamente"}))
	assert.Equal(t, 0.0, AssessFormality([]string{"opa blz tmj vlw flw"}))
	assert.Equal(t, 0.5, AssessFormality([]string{"hoje tem jogo"}))
	assert.Equal(t, 0.5, AssessFormality(nil))
}

func TestCommonWordsNeedsMinimumFrequency(t *testing.T) {
	messages := []string{
		"futebol hoje", "futebol amanhã", "futebol sempre",
		"praia hoje", "praia amanhã",
		"with with with",
	}
	words := commonWords(messages, TopWords)
	assert.Equal(t, []string{"futebol"}, words)
}

func TestComputeLengthsAndExamples(t *testing.T) {
	messages := make([]string, 0, 12)
	for i := range 12 {
		messages = append(messages, fmt.Sprintf("msg %02d", i))
	}
	messages = append(messages, "a")

	p := Compute(messages)
	assert.Equal(t, 1, p.MinLength)
	assert.Equal(t, 6, p.MaxLength)
	assert.Len(t, p.ExampleMessages, ExampleCount)
	assert.Equal(t, "msg 00", p.ExampleMessages[0])
}

func TestSlangDetection(t *testing.T) {
	p := Compute([]string{"blz então", "vamos amanhã", "tmj mano", "certo"})
	assert.True(t, p.UseSlang)
	assert.Equal(t, 0.5, p.SlangPercentage)

	p = Compute([]string{"certo", "combinado"})
	assert.False(t, p.UseSlang)
	assert.Equal(t, 0.0, p.SlangPercentage)
}

func TestTypographicPunctuationIsNotEmoji(t *testing.T) {
	p := Compute([]string{"don’t worry", "it’s fine", "“ok” then", "wait… what", "see you – bye"})
	assert.Equal(t, 0.0, p.EmojiFrequency)
	assert.Empty(t, p.FavoriteEmojis)

	p = Compute([]string{"don’t worry ❤️", "it’s fine 😂", "ok"})
	assert.ElementsMatch(t, []string{"❤", "😂"}, p.FavoriteEmojis)
}
