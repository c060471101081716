package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/mimic-bot/internal/command"
	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/style"
	"go.uber.org/zap"
)

const commandFailedText = "❌ Command failed. Please try again later."

func (o *Orchestrator) handleCommand(ctx context.Context, ev models.InboundEvent, text string) {
	cmd := o.parser.Parse(text)

	o.logger.Info("Handling command",
		zap.String("command", cmd.Name),
		zap.String("chat_id", ev.ConversationID),
		zap.Bool("from_me", *ev.FromMe))

	switch cmd.Type {
	case command.TypeAuthorize:
		o.handleAuthorize(ctx, ev, cmd)
	case command.TypeDeauthorize:
		o.handleDeauthorize(ctx, ev, cmd)
	case command.TypeStatus:
		o.handleStatus(ctx, ev)
	case command.TypeRelearn:
		o.handleRelearn(ctx, ev)
	default:
		o.reply(ctx, ev.ConversationID, o.helpText())
	}
}

func (o *Orchestrator) handleAuthorize(ctx context.Context, ev models.InboundEvent, cmd command.Command) {
	target := cmd.Target(ev.ConversationID)

	changed, err := o.auth.Authorize(target, models.IsGroup(target))
	if err != nil {
		o.logger.Error("Failed to authorize chat",
			zap.Error(err),
			zap.String("chat_id", target))
		o.reply(ctx, ev.ConversationID, commandFailedText)
		return
	}

	if !changed {
		o.reply(ctx, ev.ConversationID, fmt.Sprintf("ℹ️ %s is already authorized.", target))
		return
	}
	o.reply(ctx, ev.ConversationID, fmt.Sprintf("✅ %s authorized. I will answer there from now on.", target))
}

func (o *Orchestrator) handleDeauthorize(ctx context.Context, ev models.InboundEvent, cmd command.Command) {
	target := cmd.Target(ev.ConversationID)

	changed, err := o.auth.Deauthorize(target)
	if err != nil {
		o.logger.Error("Failed to deauthorize chat",
			zap.Error(err),
			zap.String("chat_id", target))
		o.reply(ctx, ev.ConversationID, commandFailedText)
		return
	}

	if !changed {
		o.reply(ctx, ev.ConversationID, fmt.Sprintf("ℹ️ %s was not authorized.", target))
		return
	}
	o.reply(ctx, ev.ConversationID, fmt.Sprintf("🚫 %s deauthorized.", target))
}

func (o *Orchestrator) handleStatus(ctx context.Context, ev models.InboundEvent) {
	stats, err := o.memory.GetStatistics(ctx)
	if err != nil {
		o.logger.Error("Failed to get statistics", zap.Error(err))
		o.reply(ctx, ev.ConversationID, commandFailedText)
		return
	}
	profile, err := o.memory.GetStyleProfile(ctx)
	if err != nil {
		o.logger.Error("Failed to get style profile", zap.Error(err))
		o.reply(ctx, ev.ConversationID, commandFailedText)
		return
	}

	authorized := "no"
	if o.auth.IsAuthorized(ev.ConversationID) {
		authorized = "yes"
	}

	var sb strings.Builder
	sb.WriteString("📊 Status\n\n")
	fmt.Fprintf(&sb, "Messages stored: %d\n", stats.TotalMessages)
	fmt.Fprintf(&sb, "Conversations: %d\n", stats.UniqueChats)
	fmt.Fprintf(&sb, "My messages: %d\n", stats.OwnMessages)
	fmt.Fprintf(&sb, "This chat authorized: %s\n\n", authorized)
	fmt.Fprintf(&sb, "Tone: %s\n", profile.Tone)
	fmt.Fprintf(&sb, "Formality: %.2f\n", profile.Formality)
	fmt.Fprintf(&sb, "Emoji frequency: %.2f\n", profile.EmojiFrequency)
	if len(profile.FavoriteEmojis) > 0 {
		fmt.Fprintf(&sb, "Favorite emojis: %s\n", strings.Join(profile.FavoriteEmojis, " "))
	}
	if !profile.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "Last learned: %s\n", profile.UpdatedAt.Format("2006-01-02 15:04"))
	}

	o.reply(ctx, ev.ConversationID, sb.String())
}

func (o *Orchestrator) handleRelearn(ctx context.Context, ev models.InboundEvent) {
	o.reply(ctx, ev.ConversationID, "🔄 Relearning your style...")

	profile, err := o.learner.Analyze(ctx)
	if errors.Is(err, style.ErrInsufficientData) {
		o.reply(ctx, ev.ConversationID,
			fmt.Sprintf("⚠️ Not enough messages yet. I need at least %d of yours.", style.MinMessages))
		return
	}
	if err != nil {
		o.logger.Error("Failed to relearn style", zap.Error(err))
		o.reply(ctx, ev.ConversationID, commandFailedText)
		return
	}

	o.reply(ctx, ev.ConversationID, fmt.Sprintf(
		"✅ Style updated from %d messages. Tone: %s, formality: %.2f.",
		profile.TotalAnalyzed, profile.Tone, profile.Formality))
}

func (o *Orchestrator) helpText() string {
	p := o.opts.CommandPrefix
	return fmt.Sprintf(`Available commands:
%[1]sauthorize [chat] - Answer in this chat (or the given one)
%[1]sdeauthorize [chat] - Stop answering in this chat (or the given one)
%[1]sstatus - Show statistics and the learned style
%[1]srelearn - Re-analyse your writing style now
%[1]shelp - Show this help message`, p)
}
