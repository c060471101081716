package storage

import (
	"context"

	"github.com/xaenox/mimic-bot/internal/models"
)

type Storage interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	// GetRecentMessages returns up to limit messages of a conversation newer
	// than since (epoch ms), oldest first.
	GetRecentMessages(ctx context.Context, conversationID string, since int64, limit int) ([]*models.Message, error)
	// GetOwnMessages returns the texts of up to limit owner messages, newest first.
	GetOwnMessages(ctx context.Context, limit int) ([]string, error)
	CountOwnMessages(ctx context.Context) (int64, error)
	GetStatistics(ctx context.Context) (*models.Statistics, error)
	// DeleteMessagesBefore removes counterpart and bot turns older than before.
	// Owner messages are kept for style analysis.
	DeleteMessagesBefore(ctx context.Context, before int64) (int64, error)
	Close() error

	// Embed StyleStorage interface
	StyleStorage
}

// StyleStorage holds the singleton style profile.
type StyleStorage interface {
	// GetStyleProfile never returns nil; an absent row yields the default profile.
	GetStyleProfile(ctx context.Context) (*models.StyleProfile, error)
	// SaveStyleProfile replaces the profile in one write.
	SaveStyleProfile(ctx context.Context, profile *models.StyleProfile) error
}
