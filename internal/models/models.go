package models

import (
	"strings"
	"time"
)

// Origin tells who authored a stored message.
type Origin string

const (
	OriginOwner       Origin = "owner"
	OriginCounterpart Origin = "counterpart"
	OriginBot         Origin = "bot"
)

// FromMe reports whether the message was written from the operator account,
// either by the owner or by the bot speaking as the owner.
func (o Origin) FromMe() bool {
	return o == OriginOwner || o == OriginBot
}

const DefaultMessageKind = "text"

// GroupSuffix marks group conversation ids.
const GroupSuffix = "@g.us"

// IndividualSuffix marks one-to-one conversation ids produced by the transports.
const IndividualSuffix = "@c.us"

// IsGroup classifies a conversation id by its suffix.
func IsGroup(conversationID string) bool {
	return strings.HasSuffix(conversationID, GroupSuffix)
}

// Message is one turn of a conversation as stored in the log
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"` // epoch ms
	Origin         Origin `json:"origin"`
	Kind           string `json:"kind"`
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Statistics summarises the message log for the status command
type Statistics struct {
	TotalMessages int64 `json:"total_messages"`
	UniqueChats   int64 `json:"unique_chats"`
	OwnMessages   int64 `json:"own_messages"`
}
