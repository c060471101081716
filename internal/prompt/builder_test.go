package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mimic-bot/internal/models"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(DefaultTemplates())
	require.NoError(t, err)
	return b
}

func TestBuildDefaultPersona(t *testing.T) {
	b := newBuilder(t)
	profile := models.DefaultStyleProfile()
	profile.Tone = models.ToneCurious
	profile.FavoriteEmojis = []string{"😂", "🙏"}
	profile.ExampleMessages = []string{"bora?", "fechou", "kkkk", "ignored"}

	p, err := b.Build(Input{Profile: profile, Current: `Message 1: "oi"`})
	require.NoError(t, err)

	assert.Contains(t, p.System, "Tone: curious")
	assert.Contains(t, p.System, "favorites: 😂 🙏")
	assert.Contains(t, p.System, "They use slang")
	assert.Contains(t, p.System, "Never say or hint that you are an AI")
	assert.NotContains(t, p.System, "Never answer with a single word")
	assert.Contains(t, p.System, `Example 1: "bora?"`)
	assert.Contains(t, p.System, `Example 3: "kkkk"`)
	assert.NotContains(t, p.System, "ignored")

	assert.Contains(t, p.User, "(no recent messages)")
	assert.Contains(t, p.User, "New messages to answer:\nMessage 1: \"oi\"")
}

func TestBuildAffectionatePersona(t *testing.T) {
	b := newBuilder(t)
	contact := &models.SpecialContact{Name: "Ana", Affectionate: true, Nicknames: []string{"amor", "linda"}}

	p, err := b.Build(Input{Contact: contact, Current: `Message 1: "saudade"`})
	require.NoError(t, err)

	assert.Contains(t, p.System, "talking to Ana")
	assert.Contains(t, p.System, "only as: amor, linda")
	assert.Contains(t, p.System, "Never answer with a single word")
	assert.Contains(t, p.System, "Never say or hint that you are an AI")
}

func TestBuildNonAffectionateContactUsesDefaultPersona(t *testing.T) {
	b := newBuilder(t)
	p, err := b.Build(Input{Contact: &models.SpecialContact{Name: "Boss"}})
	require.NoError(t, err)
	assert.NotContains(t, p.System, "Boss")
	assert.Contains(t, p.System, "replying from their own phone")
}

func TestBuildFallbackExamplesByTone(t *testing.T) {
	b := newBuilder(t)
	profile := models.DefaultStyleProfile()
	profile.Tone = models.ToneReflective

	p, err := b.Build(Input{Profile: profile})
	require.NoError(t, err)
	assert.Contains(t, p.System, `Example 1: "hmm... faz sentido"`)

	profile.Tone = "unknown"
	p, err = b.Build(Input{Profile: profile})
	require.NoError(t, err)
	assert.Contains(t, p.System, `Example 1: "opa, tudo certo?"`)
}

func TestBuildTranscript(t *testing.T) {
	b := newBuilder(t)
	at := time.Date(2024, 3, 2, 14, 5, 0, 0, time.Local)
	history := []*models.Message{
		{Text: "e aí", Timestamp: at.UnixMilli(), Origin: models.OriginCounterpart},
		{Text: "de boa", Timestamp: at.Add(time.Minute).UnixMilli(), Origin: models.OriginOwner},
		{Text: "suave", Timestamp: at.Add(2 * time.Minute).UnixMilli(), Origin: models.OriginBot},
	}

	p, err := b.Build(Input{History: history, Current: "x"})
	require.NoError(t, err)

	assert.NotContains(t, p.User, "(no recent messages)")
	lines := strings.Split(p.User, "\n")
	assert.Equal(t, "[14:05] Them: e aí", lines[1])
	assert.Equal(t, "[14:06] Me: de boa", lines[2])
	assert.Equal(t, "[14:07] Me: suave", lines[3])
}

func TestBuildIsPure(t *testing.T) {
	b := newBuilder(t)
	in := Input{Profile: models.DefaultStyleProfile(), Current: "same"}

	first, err := b.Build(in)
	require.NoError(t, err)
	second, err := b.Build(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadTemplatesOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deflection: \"não posso agora\"\n"), 0o644))

	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, "não posso agora", tmpl.Deflection)
	assert.NotEmpty(t, tmpl.Persona)
	assert.NotEmpty(t, tmpl.Rules)

	missing, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplates().Deflection, missing.Deflection)
}

func TestNewBuilderRejectsBadTemplate(t *testing.T) {
	tmpl := DefaultTemplates()
	tmpl.Persona = "{{.Broken"
	_, err := NewBuilder(tmpl)
	require.Error(t, err)
}
