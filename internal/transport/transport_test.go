package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mimic-bot/internal/models"
	"go.uber.org/zap"
)

func TestConversationIDRoundTrip(t *testing.T) {
	assert.Equal(t, "123@c.us", ConversationID("123", false))
	assert.Equal(t, "-100@g.us", ConversationID("-100", true))
	assert.Equal(t, "123", NativeID("123@c.us"))
	assert.Equal(t, "-100", NativeID("-100@g.us"))
	assert.Equal(t, "plain", NativeID("plain"))
	assert.True(t, models.IsGroup(ConversationID("x", true)))
	assert.False(t, models.IsGroup(ConversationID("x", false)))
}

func TestTelegramPrivateMessage(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 555},
		Chat:      &tgbotapi.Chat{ID: 555, Type: "private"},
		Date:      1700000000,
		Text:      "oi",
	}

	ev, ok := telegramEvent(msg, 999)
	require.True(t, ok)
	assert.Equal(t, "555@c.us", ev.ConversationID)
	assert.Equal(t, "555:7", ev.MessageID)
	require.NotNil(t, ev.FromMe)
	assert.False(t, *ev.FromMe)
	assert.Empty(t, ev.ParticipantID)
	assert.Equal(t, "555@c.us", ev.Sender())
	assert.Equal(t, int64(1700000000000), ev.Timestamp)
	assert.Equal(t, "oi", ev.Content.PlainText())
	assert.Same(t, msg, ev.Raw)
}

func TestTelegramGroupOwnerMessage(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID:      8,
		From:           &tgbotapi.User{ID: 999},
		Chat:           &tgbotapi.Chat{ID: -100200, Type: "supergroup"},
		Text:           "respondendo",
		ReplyToMessage: &tgbotapi.Message{MessageID: 3},
	}

	ev, ok := telegramEvent(msg, 999)
	require.True(t, ok)
	assert.Equal(t, "-100200@g.us", ev.ConversationID)
	require.NotNil(t, ev.FromMe)
	assert.True(t, *ev.FromMe)
	assert.Equal(t, "999", ev.Sender())
	assert.Equal(t, "respondendo", ev.Content.ExtendedText)
	assert.Empty(t, ev.Content.Text)
}

func TestTelegramCaptionsAndUnclassifiable(t *testing.T) {
	photo := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 1},
		Chat:      &tgbotapi.Chat{ID: 1, Type: "private"},
		Photo:     []tgbotapi.PhotoSize{{FileID: "f"}},
		Caption:   "olha isso",
	}
	ev, ok := telegramEvent(photo, 2)
	require.True(t, ok)
	assert.Equal(t, "olha isso", ev.Content.ImageCaption)

	voice := &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: 1},
		Chat:      &tgbotapi.Chat{ID: 1, Type: "private"},
		Voice:     &tgbotapi.Voice{FileID: "v"},
	}
	ev, ok = telegramEvent(voice, 2)
	require.True(t, ok)
	assert.Empty(t, ev.Content.PlainText())

	channelPost := &tgbotapi.Message{
		MessageID: 3,
		Chat:      &tgbotapi.Chat{ID: -5, Type: "channel"},
		Text:      "news",
	}
	ev, ok = telegramEvent(channelPost, 2)
	require.True(t, ok)
	assert.Nil(t, ev.FromMe)

	_, ok = telegramEvent(nil, 2)
	assert.False(t, ok)
}

func TestDiscordEvents(t *testing.T) {
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	dm := &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "owner"},
		Content:   "e aí",
		Timestamp: at,
	}

	ev, ok := discordEvent(dm, "bot", "owner")
	require.True(t, ok)
	assert.Equal(t, "c1@c.us", ev.ConversationID)
	assert.Equal(t, "m1", ev.MessageID)
	require.NotNil(t, ev.FromMe)
	assert.True(t, *ev.FromMe)
	assert.Equal(t, at.UnixMilli(), ev.Timestamp)
	assert.Equal(t, "e aí", ev.Content.Text)

	guild := &discordgo.Message{
		ID:               "m2",
		ChannelID:        "c2",
		GuildID:          "g",
		Author:           &discordgo.User{ID: "friend"},
		Content:          "olha",
		Attachments:      []*discordgo.MessageAttachment{{ContentType: "image/png"}},
		MessageReference: &discordgo.MessageReference{MessageID: "m1"},
	}
	ev, ok = discordEvent(guild, "bot", "owner")
	require.True(t, ok)
	assert.Equal(t, "c2@g.us", ev.ConversationID)
	assert.Equal(t, "friend", ev.Sender())
	assert.False(t, *ev.FromMe)
	assert.Equal(t, "olha", ev.Content.ImageCaption)

	self := &discordgo.Message{ID: "m3", ChannelID: "c1", Author: &discordgo.User{ID: "bot"}, Content: "x"}
	_, ok = discordEvent(self, "bot", "owner")
	assert.False(t, ok)

	_, ok = discordEvent(&discordgo.Message{ID: "m4"}, "bot", "owner")
	assert.False(t, ok)
}

// fakeBotAPI serves getMe, a single update and sendMessage.
type fakeBotAPI struct {
	mu      sync.Mutex
	replyTo string
	sent    string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"mimic","username":"mimic_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		if r.FormValue("offset") == "" || r.FormValue("offset") == "0" {
			_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":1,"message":{"message_id":7,"date":1700000000,` +
				`"chat":{"id":42,"type":"private"},"from":{"id":99,"is_bot":false,"first_name":"me"},"text":"hi"}}]}`))
			return
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		f.sent = r.FormValue("text")
		f.replyTo = r.FormValue("reply_to_message_id")
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":8,"date":1700000001,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newFakeTelegram(t *testing.T) (*Telegram, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return newTelegram(api, 99, zap.NewNop()), fake
}

func TestTelegramStartCancelClose(t *testing.T) {
	tg, _ := newFakeTelegram(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := tg.Start(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "42@c.us", ev.ConversationID)
		assert.Equal(t, "42:7", ev.MessageID)
		require.NotNil(t, ev.FromMe)
		assert.True(t, *ev.FromMe)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}

	assert.NotPanics(t, func() { require.NoError(t, tg.Close()) })
	assert.NotPanics(t, func() { require.NoError(t, tg.Close()) })
}

func TestTelegramCloseWithoutStart(t *testing.T) {
	tg, _ := newFakeTelegram(t)
	assert.NotPanics(t, func() { require.NoError(t, tg.Close()) })
}

func TestTelegramSendQuotesOriginal(t *testing.T) {
	tg, fake := newFakeTelegram(t)
	original := &models.InboundEvent{Raw: &tgbotapi.Message{MessageID: 7}}

	require.NoError(t, tg.Send(context.Background(), "42@c.us", "hey", original))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "hey", fake.sent)
	assert.Equal(t, "7", fake.replyTo)
}
