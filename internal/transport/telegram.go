package transport

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/mimic-bot/internal/models"
	"go.uber.org/zap"
)

type Telegram struct {
	api     *tgbotapi.BotAPI
	ownerID int64
	logger  *zap.Logger

	// StopReceivingUpdates closes a channel, so it must run at most once.
	stopOnce sync.Once
}

// NewTelegram connects with a bot token. Messages sent by ownerID are
// treated as the owner's own messages.
func NewTelegram(token string, ownerID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return newTelegram(api, ownerID, logger), nil
}

func newTelegram(api *tgbotapi.BotAPI, ownerID int64, logger *zap.Logger) *Telegram {
	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Telegram{
		api:     api,
		ownerID: ownerID,
		logger:  logger,
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Start(ctx context.Context) (<-chan models.InboundEvent, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.api.GetUpdatesChan(u)
	events := make(chan models.InboundEvent)

	go func() {
		defer close(events)
		defer t.stop()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := telegramEvent(update.Message, t.ownerID)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// telegramEvent converts a Telegram message. Private chats get the
// individual suffix, everything else the group suffix.
func telegramEvent(message *tgbotapi.Message, ownerID int64) (models.InboundEvent, bool) {
	if message == nil || message.Chat == nil {
		return models.InboundEvent{}, false
	}

	nativeID := strconv.FormatInt(message.Chat.ID, 10)
	group := !message.Chat.IsPrivate()

	ev := models.InboundEvent{
		ConversationID: ConversationID(nativeID, group),
		MessageID:      fmt.Sprintf("%s:%d", nativeID, message.MessageID),
		Timestamp:      int64(message.Date) * 1000,
		Content:        &models.Content{},
		Raw:            message,
	}

	// Channel posts carry no sender, so ownership is unknown
	if message.From != nil {
		ev.FromMe = boolPtr(message.From.ID == ownerID)
		if group {
			ev.ParticipantID = strconv.FormatInt(message.From.ID, 10)
		}
	}

	switch {
	case message.Text != "" && message.ReplyToMessage != nil:
		ev.Content.ExtendedText = message.Text
	case message.Text != "":
		ev.Content.Text = message.Text
	case len(message.Photo) > 0:
		ev.Content.ImageCaption = message.Caption
	case message.Video != nil:
		ev.Content.VideoCaption = message.Caption
	case message.Document != nil:
		ev.Content.DocumentCaption = message.Caption
	case message.Audio != nil || message.Voice != nil:
		ev.Content.AudioCaption = message.Caption
	}

	return ev, true
}

func (t *Telegram) Send(ctx context.Context, conversationID, text string, replyTo *models.InboundEvent) error {
	chatID, err := strconv.ParseInt(NativeID(conversationID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", conversationID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != nil {
		if original, ok := replyTo.Raw.(*tgbotapi.Message); ok {
			msg.ReplyToMessageID = original.MessageID
		}
	}

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func (t *Telegram) Close() error {
	t.stop()
	return nil
}

func (t *Telegram) stop() {
	t.stopOnce.Do(t.api.StopReceivingUpdates)
}
