// Package prompt renders the instruction payload sent to the generative backend.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/xaenox/mimic-bot/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTemplates []byte

// Templates is the YAML-configurable text of the prompt.
type Templates struct {
	Persona             string              `yaml:"persona"`
	AffectionatePersona string              `yaml:"affectionate_persona"`
	Rules               []string            `yaml:"rules"`
	AffectionateRules   []string            `yaml:"affectionate_rules"`
	FewShotFallback     map[string][]string `yaml:"few_shot_fallback"`
	EmptyHistory        string              `yaml:"empty_history"`
	Deflection          string              `yaml:"deflection"`
}

// DefaultTemplates returns the embedded templates.
func DefaultTemplates() Templates {
	var t Templates
	if err := yaml.Unmarshal(defaultTemplates, &t); err != nil {
		panic(fmt.Sprintf("embedded prompt defaults: %v", err))
	}
	return t
}

// LoadTemplates overlays the YAML file at path on the defaults. An empty path
// or a missing file yields the defaults.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read prompts: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return t, nil
}

// Payload is the instruction handed to the generator.
type Payload struct {
	System string
	User   string
}

// Input is everything a prompt is built from.
type Input struct {
	Profile *models.StyleProfile
	Contact *models.SpecialContact
	History []*models.Message
	// Current is the merged block of messages to answer.
	Current string
}

type Builder struct {
	templates    Templates
	persona      *template.Template
	affectionate *template.Template
}

var funcs = template.FuncMap{"join": strings.Join}

func NewBuilder(t Templates) (*Builder, error) {
	persona, err := template.New("persona").Funcs(funcs).Parse(t.Persona)
	if err != nil {
		return nil, fmt.Errorf("parse persona template: %w", err)
	}
	affectionate, err := template.New("affectionate").Funcs(funcs).Parse(t.AffectionatePersona)
	if err != nil {
		return nil, fmt.Errorf("parse affectionate persona template: %w", err)
	}
	return &Builder{templates: t, persona: persona, affectionate: affectionate}, nil
}

// Deflection is the canned reply used when the backend refuses to answer.
func (b *Builder) Deflection() string {
	return b.templates.Deflection
}

type personaData struct {
	Tone        string
	Formality   string
	AvgLength   int
	Emoji       string
	Emojis      []string
	Phrases     []string
	Words       []string
	Slang       bool
	ContactName string
	Nicknames   []string
}

// Build renders the payload. It has no side effects.
func (b *Builder) Build(in Input) (Payload, error) {
	profile := in.Profile
	if profile == nil {
		profile = models.DefaultStyleProfile()
	}

	data := personaData{
		Tone:      string(profile.Tone),
		Formality: formalityLabel(profile.Formality),
		AvgLength: profile.AvgLength,
		Emoji:     emojiLabel(profile.EmojiFrequency),
		Emojis:    head(profile.FavoriteEmojis, 5),
		Phrases:   head(profile.CommonPhrases, 5),
		Words:     head(profile.CommonWords, 5),
		Slang:     profile.UseSlang,
	}

	tmpl := b.persona
	rules := b.templates.Rules
	if in.Contact != nil && in.Contact.Affectionate {
		tmpl = b.affectionate
		rules = append(append([]string{}, rules...), b.templates.AffectionateRules...)
		data.ContactName = in.Contact.Name
		data.Nicknames = in.Contact.Nicknames
	}

	var system strings.Builder
	if err := tmpl.Execute(&system, data); err != nil {
		return Payload{}, fmt.Errorf("render persona: %w", err)
	}

	system.WriteString("\nRules:\n")
	for _, r := range rules {
		system.WriteString("- ")
		system.WriteString(r)
		system.WriteString("\n")
	}

	system.WriteString("\nExamples of how they write:\n")
	for i, ex := range b.fewShot(profile) {
		fmt.Fprintf(&system, "Example %d: %q\n", i+1, ex)
	}

	var user strings.Builder
	user.WriteString("Recent conversation:\n")
	user.WriteString(b.transcript(in.History))
	user.WriteString("\nNew messages to answer:\n")
	user.WriteString(in.Current)
	user.WriteString("\n\nWrite the reply, and only the reply.")

	return Payload{
		System: strings.TrimSpace(system.String()),
		User:   user.String(),
	}, nil
}

func (b *Builder) fewShot(profile *models.StyleProfile) []string {
	if len(profile.ExampleMessages) > 0 {
		return head(profile.ExampleMessages, 3)
	}
	if ex, ok := b.templates.FewShotFallback[string(profile.Tone)]; ok && len(ex) > 0 {
		return ex
	}
	return b.templates.FewShotFallback[string(models.ToneCasual)]
}

func (b *Builder) transcript(history []*models.Message) string {
	if len(history) == 0 {
		return b.templates.EmptyHistory + "\n"
	}

	var sb strings.Builder
	for _, m := range history {
		who := "Them"
		if m.Origin.FromMe() {
			who = "Me"
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Time().Format("15:04"), who, m.Text)
	}
	return sb.String()
}

func formalityLabel(v float64) string {
	switch {
	case v >= 0.7:
		return "formal"
	case v >= 0.4:
		return "neutral"
	default:
		return "informal"
	}
}

func emojiLabel(v float64) string {
	switch {
	case v >= 0.5:
		return "frequent"
	case v >= 0.15:
		return "occasional"
	default:
		return "rare"
	}
}

func head(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
