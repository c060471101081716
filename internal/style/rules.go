package style

import (
	"strings"

	"github.com/xaenox/mimic-bot/internal/models"
)

// punctuationRates are the per-message shares the tone rules look at.
type punctuationRates struct {
	exclamation float64
	question    float64
	ellipsis    float64
}

// ToneRule maps punctuation rates to a tone when Match holds.
type ToneRule struct {
	Tone  models.Tone
	Match func(r punctuationRates) bool
}

// ToneRules are evaluated top-down; the first match wins.
var ToneRules = []ToneRule{
	{models.ToneEnthusiastic, func(r punctuationRates) bool { return r.exclamation > 0.3 }},
	{models.ToneCurious, func(r punctuationRates) bool { return r.question > 0.2 }},
	{models.ToneReflective, func(r punctuationRates) bool { return r.ellipsis > 0.2 }},
}

// DetectTone classifies messages with ToneRules, falling back to casual.
func DetectTone(messages []string) models.Tone {
	if len(messages) == 0 {
		return models.ToneCasual
	}

	n := float64(len(messages))
	var r punctuationRates
	for _, m := range messages {
		if strings.Contains(m, "!") {
			r.exclamation++
		}
		if strings.Contains(m, "?") {
			r.question++
		}
		if strings.Contains(m, "...") {
			r.ellipsis++
		}
	}
	r.exclamation /= n
	r.question /= n
	r.ellipsis /= n

	for _, rule := range ToneRules {
		if rule.Match(r) {
			return rule.Tone
		}
	}
	return models.ToneCasual
}

const (
	neutralFormality = 0.5
	formalWeight     = 0.5
	informalWeight   = 0.3
)

var (
	formalMarkers   = []string{"prezado", "atenciosamente", "cordialmente", "sr.", "sra.", "dear", "regards", "sincerely"}
	informalMarkers = []string{"blz", "tmj", "opa", "vlw", "flw", "tá bom", "lol", "gonna", "wanna"}
)

// AssessFormality starts neutral, moves up per formal marker and down per
// informal marker (averaged over messages) and clamps to [0,1].
func AssessFormality(messages []string) float64 {
	if len(messages) == 0 {
		return neutralFormality
	}

	score := 0.0
	for _, m := range messages {
		lower := strings.ToLower(m)
		for _, p := range formalMarkers {
			if strings.Contains(lower, p) {
				score += formalWeight
			}
		}
		for _, p := range informalMarkers {
			if strings.Contains(lower, p) {
				score -= informalWeight
			}
		}
	}

	v := neutralFormality + score/float64(len(messages))
	return round2(min(1, max(0, v)))
}

var slangLexicon = []string{
	"tá", "opa", "blz", "tmj", "flw", "vlw", "tipo", "sabe",
	"lol", "lmao", "idk", "tbh", "btw", "gonna", "wanna", "bro",
}

var stopWords = map[string]bool{
	"para": true, "pra": true, "com": true, "sem": true, "que": true, "uma": true,
	"isso": true, "esse": true, "essa": true, "mais": true, "como": true, "mas": true,
	"the": true, "and": true, "that": true, "this": true, "with": true, "have": true,
	"from": true, "they": true, "what": true, "just": true, "your": true, "about": true,
}
