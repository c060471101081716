// Package memory keeps the conversation log and a per-conversation recency
// cache in front of storage.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	// MaxCachedTurns bounds the recency cache of a single conversation.
	MaxCachedTurns = 50
	// MaxCachedConversations bounds how many conversations keep a cache.
	MaxCachedConversations = 100
)

// recentTurns holds every message of a conversation with timestamp >= since.
type recentTurns struct {
	since    int64
	messages []*models.Message
}

type ConversationMemory struct {
	store  storage.Storage
	logger *zap.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, *recentTurns]
	now   func() time.Time
}

func New(store storage.Storage, logger *zap.Logger) *ConversationMemory {
	cache, err := lru.New[string, *recentTurns](MaxCachedConversations)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &ConversationMemory{
		store:  store,
		logger: logger,
		cache:  cache,
		now:    time.Now,
	}
}

// SaveMessage appends a turn to the log. Missing id, kind and timestamp are filled in.
func (m *ConversationMemory) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Kind == "" {
		msg.Kind = models.DefaultMessageKind
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = m.now().UnixMilli()
	}

	if err := m.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save message: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *msg
	entry, ok := m.cache.Get(msg.ConversationID)
	if !ok {
		m.cache.Add(msg.ConversationID, &recentTurns{
			since:    msg.Timestamp,
			messages: []*models.Message{&stored},
		})
		return nil
	}

	entry.messages = append(entry.messages, &stored)
	if len(entry.messages) > MaxCachedTurns {
		entry.messages = entry.messages[len(entry.messages)-MaxCachedTurns:]
		entry.since = entry.messages[0].Timestamp
	}

	m.logger.Debug("Message saved",
		zap.String("chat_id", msg.ConversationID),
		zap.String("origin", string(msg.Origin)))
	return nil
}

// GetRecentMessages returns up to limit turns of the conversation younger
// than maxAge, oldest first. The cache answers when it provably covers the
// window, otherwise storage is queried and the cache reseeded.
func (m *ConversationMemory) GetRecentMessages(ctx context.Context, conversationID string, limit int, maxAge time.Duration) ([]*models.Message, error) {
	cutoff := m.now().Add(-maxAge).UnixMilli()

	if cached, ok := m.fromCache(conversationID, cutoff, limit); ok {
		return cached, nil
	}

	messages, err := m.store.GetRecentMessages(ctx, conversationID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}

	m.mu.Lock()
	since := cutoff
	if len(messages) == limit && limit > 0 {
		since = messages[0].Timestamp
	}
	seeded := make([]*models.Message, len(messages))
	for i, msg := range messages {
		cp := *msg
		seeded[i] = &cp
	}
	m.cache.Add(conversationID, &recentTurns{since: since, messages: seeded})
	m.mu.Unlock()

	m.logger.Debug("History loaded from storage",
		zap.String("chat_id", conversationID),
		zap.Int("count", len(messages)),
		zap.Int("limit", limit))
	return messages, nil
}

func (m *ConversationMemory) fromCache(conversationID string, cutoff int64, limit int) ([]*models.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache.Get(conversationID)
	if !ok {
		return nil, false
	}

	var window []*models.Message
	for _, msg := range entry.messages {
		if msg.Timestamp > cutoff {
			window = append(window, msg)
		}
	}
	if len(window) < limit && entry.since > cutoff {
		return nil, false
	}
	if len(window) > limit {
		window = window[len(window)-limit:]
	}

	out := make([]*models.Message, len(window))
	for i, msg := range window {
		cp := *msg
		out[i] = &cp
	}
	return out, true
}

func (m *ConversationMemory) CountOwnMessages(ctx context.Context) (int64, error) {
	return m.store.CountOwnMessages(ctx)
}

func (m *ConversationMemory) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	return m.store.GetStatistics(ctx)
}

func (m *ConversationMemory) GetStyleProfile(ctx context.Context) (*models.StyleProfile, error) {
	return m.store.GetStyleProfile(ctx)
}

// LastStyleAnalysis returns when the style profile was last written.
func (m *ConversationMemory) LastStyleAnalysis(ctx context.Context) (time.Time, error) {
	profile, err := m.store.GetStyleProfile(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return profile.UpdatedAt, nil
}

// PruneOlderThan deletes non-owner log entries older than age and drops the cache.
func (m *ConversationMemory) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	before := m.now().Add(-age).UnixMilli()
	removed, err := m.store.DeleteMessagesBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}

	m.mu.Lock()
	m.cache.Purge()
	m.mu.Unlock()

	return removed, nil
}
