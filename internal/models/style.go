package models

import "time"

type Tone string

const (
	ToneEnthusiastic Tone = "enthusiastic"
	ToneCurious      Tone = "curious"
	ToneReflective   Tone = "reflective"
	ToneCasual       Tone = "casual"
)

// StyleProfile is the learned summary of how the owner writes.
type StyleProfile struct {
	Tone            Tone      `json:"tone"`
	Formality       float64   `json:"formality"`
	AvgLength       int       `json:"avg_length"`
	MinLength       int       `json:"min_length"`
	MaxLength       int       `json:"max_length"`
	EmojiFrequency  float64   `json:"emoji_frequency"`
	FavoriteEmojis  []string  `json:"favorite_emojis"`
	CommonPhrases   []string  `json:"common_phrases"`
	CommonWords     []string  `json:"common_words"`
	UseSlang        bool      `json:"use_slang"`
	SlangPercentage float64   `json:"slang_percentage"`
	UsesPunctuation bool      `json:"uses_punctuation"`
	AvgPunctuation  float64   `json:"avg_punctuation"`
	ExampleMessages []string  `json:"example_messages"`
	TotalAnalyzed   int       `json:"total_analyzed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultStyleProfile is used until the first successful analysis.
func DefaultStyleProfile() *StyleProfile {
	return &StyleProfile{
		Tone:            ToneCasual,
		Formality:       0.3,
		AvgLength:       100,
		EmojiFrequency:  0.5,
		FavoriteEmojis:  []string{},
		CommonPhrases:   []string{},
		CommonWords:     []string{},
		UseSlang:        true,
		ExampleMessages: []string{},
	}
}
