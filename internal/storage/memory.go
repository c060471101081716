package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/mimic-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	messages []*models.Message
	profile  *models.StyleProfile
}

func NewMemoryStorage() *MemoryStorage {
	profile := models.DefaultStyleProfile()
	profile.UpdatedAt = time.Now()
	return &MemoryStorage{
		profile: profile,
	}
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *MemoryStorage) GetRecentMessages(ctx context.Context, conversationID string, since int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.Timestamp > since {
			cp := *m
			matched = append(matched, &cp)
		}
	}

	// Stable keeps insertion order for equal timestamps
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp < matched[j].Timestamp
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *MemoryStorage) GetOwnMessages(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var own []*models.Message
	for _, m := range s.messages {
		if m.Origin == models.OriginOwner {
			own = append(own, m)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		return own[i].Timestamp < own[j].Timestamp
	})

	texts := make([]string, 0, limit)
	for i := len(own) - 1; i >= 0 && len(texts) < limit; i-- {
		texts = append(texts, own[i].Text)
	}
	return texts, nil
}

func (s *MemoryStorage) CountOwnMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, m := range s.messages {
		if m.Origin == models.OriginOwner {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Statistics{}
	chats := make(map[string]struct{})
	for _, m := range s.messages {
		switch m.Origin {
		case models.OriginCounterpart:
			stats.TotalMessages++
			chats[m.ConversationID] = struct{}{}
		case models.OriginOwner:
			stats.OwnMessages++
		}
	}
	stats.UniqueChats = int64(len(chats))
	return stats, nil
}

func (s *MemoryStorage) DeleteMessagesBefore(ctx context.Context, before int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.messages[:0]
	var removed int64
	for _, m := range s.messages {
		if m.Timestamp < before && m.Origin != models.OriginOwner {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	return removed, nil
}

func (s *MemoryStorage) GetStyleProfile(ctx context.Context) (*models.StyleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return models.DefaultStyleProfile(), nil
	}
	return copyProfile(s.profile), nil
}

func (s *MemoryStorage) SaveStyleProfile(ctx context.Context, profile *models.StyleProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile = copyProfile(profile)
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func copyProfile(p *models.StyleProfile) *models.StyleProfile {
	cp := *p
	cp.FavoriteEmojis = append([]string(nil), p.FavoriteEmojis...)
	cp.CommonPhrases = append([]string(nil), p.CommonPhrases...)
	cp.CommonWords = append([]string(nil), p.CommonWords...)
	cp.ExampleMessages = append([]string(nil), p.ExampleMessages...)
	return &cp
}
