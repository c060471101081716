// Package bot is the message orchestrator: it deduplicates inbound events,
// routes commands, feeds the style learner and answers authorized
// conversations in the owner's voice.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xaenox/mimic-bot/internal/command"
	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/prompt"
	"go.uber.org/zap"
)

// Memory is the conversation log.
type Memory interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetRecentMessages(ctx context.Context, conversationID string, limit int, maxAge time.Duration) ([]*models.Message, error)
	CountOwnMessages(ctx context.Context) (int64, error)
	GetStatistics(ctx context.Context) (*models.Statistics, error)
	GetStyleProfile(ctx context.Context) (*models.StyleProfile, error)
}

// Authorizer decides which conversations get replies.
type Authorizer interface {
	IsAuthorized(chatID string) bool
	Authorize(chatID string, isGroup bool) (bool, error)
	Deauthorize(chatID string) (bool, error)
	SpecialContact(chatID string) (*models.SpecialContact, bool)
	Settings() models.ChatSettings
}

type Generator interface {
	Generate(ctx context.Context, payload prompt.Payload) (string, error)
}

type Sender interface {
	Send(ctx context.Context, conversationID, text string, replyTo *models.InboundEvent) error
}

// StyleLearner refreshes the style profile from the owner's messages.
type StyleLearner interface {
	Analyze(ctx context.Context) (*models.StyleProfile, error)
}

// Deps are the collaborators of an Orchestrator. All are required.
type Deps struct {
	Memory     Memory
	Authorizer Authorizer
	Generator  Generator
	Sender     Sender
	Learner    StyleLearner
	Prompts    *prompt.Builder
}

type Options struct {
	CommandPrefix   string
	DefaultDebounce time.Duration
	SpecialDebounce time.Duration
	DedupWindow     time.Duration
	DedupCapacity   int
	HistoryLimit    int
	HistoryMaxAge   time.Duration
	// LearnBatch triggers a style refresh every LearnBatch own messages.
	LearnBatch int64
	Pacing     Pacing
}

// Pacing shapes the artificial typing delay added on top of the configured
// base delay.
type Pacing struct {
	PerChar   time.Duration
	MaxTyping time.Duration
	MaxJitter time.Duration
}

const defaultLearningInterval = 6 * time.Hour

func DefaultOptions() Options {
	return Options{
		CommandPrefix:   command.DefaultPrefix,
		DefaultDebounce: 30 * time.Second,
		SpecialDebounce: 15 * time.Second,
		DedupWindow:     10 * time.Second,
		DedupCapacity:   1024,
		HistoryLimit:    10,
		HistoryMaxAge:   time.Hour,
		LearnBatch:      50,
		Pacing: Pacing{
			PerChar:   20 * time.Millisecond,
			MaxTyping: 3 * time.Second,
			MaxJitter: time.Second,
		},
	}
}

// withDefaults fills unset limits. Pacing is taken as given so it can be
// switched off.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CommandPrefix == "" {
		o.CommandPrefix = def.CommandPrefix
	}
	if o.DefaultDebounce <= 0 {
		o.DefaultDebounce = def.DefaultDebounce
	}
	if o.SpecialDebounce <= 0 {
		o.SpecialDebounce = def.SpecialDebounce
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = def.DedupWindow
	}
	if o.DedupCapacity <= 0 {
		o.DedupCapacity = def.DedupCapacity
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = def.HistoryLimit
	}
	if o.HistoryMaxAge <= 0 {
		o.HistoryMaxAge = def.HistoryMaxAge
	}
	if o.LearnBatch <= 0 {
		o.LearnBatch = def.LearnBatch
	}
	return o
}

type Orchestrator struct {
	memory    Memory
	auth      Authorizer
	generator Generator
	sender    Sender
	learner   StyleLearner
	prompts   *prompt.Builder
	parser    *command.Parser
	opts      Options
	logger    *zap.Logger

	seen *expirable.LRU[string, struct{}]

	mu      sync.Mutex
	pending map[string]*conversationState
	closed  bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, opts Options, logger *zap.Logger) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		memory:    deps.Memory,
		auth:      deps.Authorizer,
		generator: deps.Generator,
		sender:    deps.Sender,
		learner:   deps.Learner,
		prompts:   deps.Prompts,
		parser:    command.NewParser(opts.CommandPrefix),
		opts:      opts,
		logger:    logger,
		seen:      expirable.NewLRU[string, struct{}](opts.DedupCapacity, nil, opts.DedupWindow),
		pending:   make(map[string]*conversationState),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Run handles events one at a time until ctx is cancelled or events is
// closed. Pending buffers are dropped on return.
func (o *Orchestrator) Run(ctx context.Context, events <-chan models.InboundEvent) error {
	defer o.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			o.HandleIncoming(ctx, ev)
		}
	}
}

// HandleIncoming processes a single inbound event.
func (o *Orchestrator) HandleIncoming(ctx context.Context, ev models.InboundEvent) {
	if ev.Content == nil || ev.FromMe == nil {
		o.logger.Debug("Dropping unclassifiable event",
			zap.String("chat_id", ev.ConversationID),
			zap.String("message_id", ev.MessageID))
		return
	}

	if ev.MessageID != "" {
		if o.seen.Contains(ev.MessageID) {
			return
		}
		o.seen.Add(ev.MessageID, struct{}{})
	}

	text := strings.TrimSpace(ev.Content.PlainText())
	if text == "" {
		return
	}

	if o.parser.IsCommand(text) {
		o.handleCommand(ctx, ev, text)
		return
	}

	fromMe := *ev.FromMe
	origin := models.OriginCounterpart
	if fromMe {
		origin = models.OriginOwner
	}

	msg := &models.Message{
		ID:             ev.MessageID,
		ConversationID: ev.ConversationID,
		SenderID:       ev.Sender(),
		Text:           text,
		Timestamp:      ev.Timestamp,
		Origin:         origin,
	}
	if err := o.memory.SaveMessage(ctx, msg); err != nil {
		o.logger.Error("Failed to save message",
			zap.Error(err),
			zap.String("chat_id", ev.ConversationID),
			zap.String("message_id", ev.MessageID))
	}

	if fromMe {
		o.maybeLearn(ctx)
		return
	}

	if !o.auth.IsAuthorized(ev.ConversationID) {
		o.logger.Debug("Ignoring unauthorized chat", zap.String("chat_id", ev.ConversationID))
		return
	}

	o.enqueue(ctx, ev, text)
}

// Close cancels every pending debounce timer. Buffered messages are lost.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	for id, st := range o.pending {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(o.pending, id)
	}
}

func (o *Orchestrator) reply(ctx context.Context, conversationID, text string) {
	if err := o.sender.Send(ctx, conversationID, text, nil); err != nil {
		o.logger.Error("Failed to send message",
			zap.Error(err),
			zap.String("chat_id", conversationID))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
