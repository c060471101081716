// Package transport adapts chat networks to the inbound event stream the
// orchestrator consumes.
package transport

import (
	"context"
	"strings"

	"github.com/xaenox/mimic-bot/internal/models"
)

// Transport is a connected chat account.
type Transport interface {
	Name() string
	// Start connects and returns the inbound event stream. The channel is
	// closed when ctx is cancelled or the transport is closed.
	Start(ctx context.Context) (<-chan models.InboundEvent, error)
	// Send posts text to the conversation, as a quote reply to replyTo when
	// it is non-nil and the network supports it.
	Send(ctx context.Context, conversationID, text string, replyTo *models.InboundEvent) error
	Close() error
}

// ConversationID appends the structural suffix to a network-native chat id.
func ConversationID(nativeID string, group bool) string {
	if group {
		return nativeID + models.GroupSuffix
	}
	return nativeID + models.IndividualSuffix
}

// NativeID strips the structural suffix from a conversation id.
func NativeID(conversationID string) string {
	id := strings.TrimSuffix(conversationID, models.GroupSuffix)
	return strings.TrimSuffix(id, models.IndividualSuffix)
}

func boolPtr(b bool) *bool {
	return &b
}
