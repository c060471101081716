package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/xaenox/mimic-bot/internal/models"
	"go.uber.org/zap"
)

type Discord struct {
	session *discordgo.Session
	ownerID string
	logger  *zap.Logger

	mu     sync.Mutex
	events chan models.InboundEvent
	done   <-chan struct{}
}

// NewDiscord creates a session for a bot token. Messages authored by ownerID
// are treated as the owner's own messages.
func NewDiscord(token, ownerID string, logger *zap.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Discord{
		session: session,
		ownerID: ownerID,
		logger:  logger,
	}, nil
}

func (d *Discord) Name() string {
	return "discord"
}

func (d *Discord) Start(ctx context.Context) (<-chan models.InboundEvent, error) {
	events := make(chan models.InboundEvent, 16)

	d.mu.Lock()
	d.events = events
	d.done = ctx.Done()
	d.mu.Unlock()

	d.session.AddHandler(d.handleMessage)
	if err := d.session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open discord session: %w", err)
	}
	d.logger.Info("Discord session connected")

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.events != nil {
			close(d.events)
			d.events = nil
		}
	}()

	return events, nil
}

func (d *Discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}

	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	ev, ok := discordEvent(m.Message, selfID, d.ownerID)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.events == nil {
		return
	}
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

// discordEvent converts a Discord message. Guild channels get the group
// suffix, DMs the individual one. Messages from the bot itself are skipped.
func discordEvent(m *discordgo.Message, selfID, ownerID string) (models.InboundEvent, bool) {
	if m.Author == nil || (selfID != "" && m.Author.ID == selfID) {
		return models.InboundEvent{}, false
	}

	group := m.GuildID != ""
	ev := models.InboundEvent{
		ConversationID: ConversationID(m.ChannelID, group),
		MessageID:      m.ID,
		FromMe:         boolPtr(m.Author.ID == ownerID),
		Timestamp:      m.Timestamp.UnixMilli(),
		Content:        &models.Content{},
		Raw:            m,
	}
	if group {
		ev.ParticipantID = m.Author.ID
	}

	if len(m.Attachments) == 0 {
		if m.MessageReference != nil {
			ev.Content.ExtendedText = m.Content
		} else {
			ev.Content.Text = m.Content
		}
		return ev, true
	}

	// Attachments carry no caption of their own; the message body is the caption
	contentType := m.Attachments[0].ContentType
	switch {
	case strings.HasPrefix(contentType, "image/"):
		ev.Content.ImageCaption = m.Content
	case strings.HasPrefix(contentType, "video/"):
		ev.Content.VideoCaption = m.Content
	case strings.HasPrefix(contentType, "audio/"):
		ev.Content.AudioCaption = m.Content
	default:
		ev.Content.DocumentCaption = m.Content
	}
	return ev, true
}

func (d *Discord) Send(ctx context.Context, conversationID, text string, replyTo *models.InboundEvent) error {
	channelID := NativeID(conversationID)
	if channelID == "" {
		return fmt.Errorf("channel ID is empty")
	}

	var err error
	if original, ok := replyToMessage(replyTo); ok {
		_, err = d.session.ChannelMessageSendReply(channelID, text, original.Reference(), discordgo.WithContext(ctx))
	} else {
		_, err = d.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	}
	if err != nil {
		d.logger.Error("Failed to send message",
			zap.Error(err),
			zap.String("channel_id", channelID))
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

func replyToMessage(ev *models.InboundEvent) (*discordgo.Message, bool) {
	if ev == nil {
		return nil, false
	}
	m, ok := ev.Raw.(*discordgo.Message)
	return m, ok && m != nil
}

func (d *Discord) Close() error {
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}
