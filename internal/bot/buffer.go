package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/mimic-bot/internal/models"
	"go.uber.org/zap"
)

type pendingMessage struct {
	text   string
	sender string
	event  models.InboundEvent
}

// conversationState is the buffer of one conversation. seq identifies the
// timer that currently owns the buffer.
type conversationState struct {
	messages []pendingMessage
	timer    *time.Timer
	seq      uint64
}

// batch is a buffer detached from the state table for a single flush.
type batch struct {
	conversationID string
	messages       []pendingMessage
}

func (b batch) merged() string {
	parts := make([]string, len(b.messages))
	for i, m := range b.messages {
		parts[i] = fmt.Sprintf("Message %d: \"%s\"", i+1, m.text)
	}
	return strings.Join(parts, "\n\n")
}

func (b batch) sender() string {
	return b.messages[0].sender
}

func (b batch) replyTo() *models.InboundEvent {
	last := b.messages[len(b.messages)-1].event
	return &last
}

// enqueue appends to the conversation buffer and re-arms its timer.
func (o *Orchestrator) enqueue(ctx context.Context, ev models.InboundEvent, text string) {
	delay := o.debounceFor(ev.ConversationID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	st, ok := o.pending[ev.ConversationID]
	if !ok {
		st = &conversationState{}
		o.pending[ev.ConversationID] = st
	}
	st.messages = append(st.messages, pendingMessage{
		text:   text,
		sender: ev.Sender(),
		event:  ev,
	})

	if st.timer != nil {
		st.timer.Stop()
	}
	st.seq++
	seq := st.seq
	conversationID := ev.ConversationID
	st.timer = time.AfterFunc(delay, func() {
		o.flush(ctx, conversationID, seq)
	})

	o.logger.Debug("Message buffered",
		zap.String("chat_id", conversationID),
		zap.Int("buffered", len(st.messages)),
		zap.Duration("debounce", delay))
}

func (o *Orchestrator) debounceFor(conversationID string) time.Duration {
	contact, ok := o.auth.SpecialContact(conversationID)
	if !ok {
		return o.opts.DefaultDebounce
	}
	if contact.DebounceMS > 0 {
		return time.Duration(contact.DebounceMS) * time.Millisecond
	}
	return o.opts.SpecialDebounce
}

// detach removes the buffer from the table if the timer identified by seq
// still owns it.
func (o *Orchestrator) detach(conversationID string, seq uint64) (batch, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.pending[conversationID]
	if !ok || st.seq != seq {
		return batch{}, false
	}
	delete(o.pending, conversationID)
	return batch{conversationID: conversationID, messages: st.messages}, true
}

func (o *Orchestrator) flush(ctx context.Context, conversationID string, seq uint64) {
	b, ok := o.detach(conversationID, seq)
	if !ok || len(b.messages) == 0 {
		return
	}

	outcome, err := o.respond(ctx, b)
	fields := []zap.Field{
		zap.String("chat_id", conversationID),
		zap.String("sender", b.sender()),
		zap.Int("messages", len(b.messages)),
	}
	switch outcome {
	case outcomeSent:
		o.logger.Info("Reply sent", fields...)
	case outcomeDeflected:
		o.logger.Info("Reply deflected", append(fields, zap.Error(err))...)
	case outcomeSkipped:
		o.logger.Debug("No reply generated", fields...)
	case outcomeFailed:
		o.logger.Error("Failed to reply", append(fields, zap.Error(err))...)
	}
}

func (o *Orchestrator) pendingCount(conversationID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.pending[conversationID]
	if !ok {
		return 0
	}
	return len(st.messages)
}
