package models

// Content holds the text-bearing parts of an inbound message, by kind.
type Content struct {
	Text            string
	ExtendedText    string
	ImageCaption    string
	VideoCaption    string
	DocumentCaption string
	AudioCaption    string
}

// PlainText returns the first non-empty text in priority order.
func (c *Content) PlainText() string {
	if c == nil {
		return ""
	}
	for _, s := range []string{
		c.Text,
		c.ExtendedText,
		c.ImageCaption,
		c.VideoCaption,
		c.DocumentCaption,
		c.AudioCaption,
	} {
		if s != "" {
			return s
		}
	}
	return ""
}

// InboundEvent is what a transport emits for every message it sees.
type InboundEvent struct {
	ConversationID string
	MessageID      string
	// FromMe is nil when the transport could not tell who wrote the message.
	FromMe        *bool
	ParticipantID string
	Timestamp     int64 // epoch ms
	Content       *Content
	// Raw is the transport-native message, used for quote replies.
	Raw any
}

// Sender returns the participant inside a group, else the conversation id.
func (e *InboundEvent) Sender() string {
	if e.ParticipantID != "" {
		return e.ParticipantID
	}
	return e.ConversationID
}
