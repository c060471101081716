package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/xaenox/mimic-bot/internal/generator"
	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/prompt"
	"go.uber.org/zap"
)

type replyOutcome int

const (
	outcomeSent replyOutcome = iota
	// outcomeSkipped means the backend produced no usable text.
	outcomeSkipped
	// outcomeDeflected means the canned deflection was sent instead.
	outcomeDeflected
	outcomeFailed
)

func (r replyOutcome) String() string {
	switch r {
	case outcomeSent:
		return "sent"
	case outcomeSkipped:
		return "skipped"
	case outcomeDeflected:
		return "deflected"
	default:
		return "failed"
	}
}

// respond generates and sends one reply for a flushed batch. Nothing but the
// reply itself is ever sent to the conversation.
func (o *Orchestrator) respond(ctx context.Context, b batch) (replyOutcome, error) {
	history, err := o.memory.GetRecentMessages(ctx, b.conversationID, o.opts.HistoryLimit, o.opts.HistoryMaxAge)
	if err != nil {
		return outcomeFailed, fmt.Errorf("load history: %w", err)
	}
	profile, err := o.memory.GetStyleProfile(ctx)
	if err != nil {
		return outcomeFailed, fmt.Errorf("load style profile: %w", err)
	}
	contact, _ := o.auth.SpecialContact(b.conversationID)

	payload, err := o.prompts.Build(prompt.Input{
		Profile: profile,
		Contact: contact,
		History: withoutBatch(history, b),
		Current: b.merged(),
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("build prompt: %w", err)
	}

	outcome := outcomeSent
	text, genErr := o.generator.Generate(ctx, payload)
	switch {
	case errors.Is(genErr, generator.ErrContentFiltered):
		outcome = outcomeDeflected
		text = o.prompts.Deflection()
	case genErr != nil:
		return outcomeFailed, fmt.Errorf("generate reply: %w", genErr)
	}
	if text == "" {
		return outcomeSkipped, genErr
	}

	settings := o.auth.Settings()
	if err := o.sleep(ctx, o.typingDelay(settings, text)); err != nil {
		return outcomeFailed, fmt.Errorf("wait before reply: %w", err)
	}

	if err := o.sender.Send(ctx, b.conversationID, text, b.replyTo()); err != nil {
		return outcomeFailed, fmt.Errorf("send reply: %w", err)
	}

	err = o.memory.SaveMessage(ctx, &models.Message{
		ConversationID: b.conversationID,
		SenderID:       string(models.OriginBot),
		Text:           text,
		Timestamp:      o.now().UnixMilli(),
		Origin:         models.OriginBot,
	})
	if err != nil {
		o.logger.Warn("Failed to record reply",
			zap.Error(err),
			zap.String("chat_id", b.conversationID))
	}
	return outcome, genErr
}

// typingDelay is the base delay plus a length-proportional typing time
// (capped) plus jitter.
func (o *Orchestrator) typingDelay(settings models.ChatSettings, text string) time.Duration {
	p := o.opts.Pacing
	delay := time.Duration(settings.ResponseDelay) * time.Millisecond

	typing := time.Duration(utf8.RuneCountInString(text)) * p.PerChar
	delay += min(typing, p.MaxTyping)

	if p.MaxJitter > 0 {
		delay += rand.N(p.MaxJitter)
	}
	return delay
}

// withoutBatch drops the batch's own messages from history; they are
// rendered separately as the messages to answer.
func withoutBatch(history []*models.Message, b batch) []*models.Message {
	ids := make(map[string]struct{}, len(b.messages))
	for _, m := range b.messages {
		if m.event.MessageID != "" {
			ids[m.event.MessageID] = struct{}{}
		}
	}

	out := make([]*models.Message, 0, len(history))
	for _, m := range history {
		if _, ok := ids[m.ID]; ok {
			continue
		}
		out = append(out, m)
	}
	return out
}
