package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/mimic-bot/internal/models"
)

// sqlStore holds the queries shared by the PostgreSQL and SQLite backends.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db         *sql.DB
	dollarArgs bool
}

func (s *sqlStore) rebind(query string) string {
	if !s.dollarArgs {
		return query
	}
	return rebindDollar(query)
}

// rebindDollar rewrites ? placeholders to $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) initializeProfile(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO style_profile (id, updated_at)
		VALUES (1, ?)
		ON CONFLICT (id) DO NOTHING`), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("error creating default style profile: %w", err)
	}
	return nil
}

func (s *sqlStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender, message, timestamp, origin, message_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	kind := msg.Kind
	if kind == "" {
		kind = models.DefaultMessageKind
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Text,
		msg.Timestamp,
		string(msg.Origin),
		kind,
	)
	if err != nil {
		return fmt.Errorf("error saving message: %w", err)
	}
	return nil
}

func (s *sqlStore) GetRecentMessages(ctx context.Context, conversationID string, since int64, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, sender, message, timestamp, origin, message_type
		FROM messages
		WHERE chat_id = ? AND timestamp > ?
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), conversationID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var origin string
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Text,
			&msg.Timestamp,
			&origin,
			&msg.Kind,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msg.Origin = models.Origin(origin)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// Newest-first from the query, callers want oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *sqlStore) GetOwnMessages(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT message FROM messages
		WHERE origin = ?
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), string(models.OriginOwner), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying own messages: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("error scanning own message: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

func (s *sqlStore) CountOwnMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM messages WHERE origin = ?`),
		string(models.OriginOwner)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting own messages: %w", err)
	}
	return count, nil
}

func (s *sqlStore) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(DISTINCT chat_id), COUNT(*)
		FROM messages WHERE origin = ?`), string(models.OriginCounterpart)).
		Scan(&stats.UniqueChats, &stats.TotalMessages)
	if err != nil {
		return nil, fmt.Errorf("error querying statistics: %w", err)
	}

	own, err := s.CountOwnMessages(ctx)
	if err != nil {
		return nil, err
	}
	stats.OwnMessages = own
	return stats, nil
}

func (s *sqlStore) DeleteMessagesBefore(ctx context.Context, before int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE timestamp < ? AND origin <> ?`), before, string(models.OriginOwner))
	if err != nil {
		return 0, fmt.Errorf("error deleting old messages: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (s *sqlStore) GetStyleProfile(ctx context.Context) (*models.StyleProfile, error) {
	query := `
		SELECT tone, formality, avg_length, min_length, max_length, emoji_frequency,
			favorite_emojis, common_phrases, common_words, use_slang, slang_percentage,
			uses_punctuation, avg_punctuation, example_messages, total_analyzed, updated_at
		FROM style_profile
		WHERE id = 1`

	p := &models.StyleProfile{}
	var (
		tone                               string
		favorite, phrases, words, examples string
		updatedAt                          int64
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&tone,
		&p.Formality,
		&p.AvgLength,
		&p.MinLength,
		&p.MaxLength,
		&p.EmojiFrequency,
		&favorite,
		&phrases,
		&words,
		&p.UseSlang,
		&p.SlangPercentage,
		&p.UsesPunctuation,
		&p.AvgPunctuation,
		&examples,
		&p.TotalAnalyzed,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultStyleProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying style profile: %w", err)
	}

	p.Tone = models.Tone(tone)
	p.UpdatedAt = time.UnixMilli(updatedAt)
	for _, col := range []struct {
		raw  string
		dest *[]string
	}{
		{favorite, &p.FavoriteEmojis},
		{phrases, &p.CommonPhrases},
		{words, &p.CommonWords},
		{examples, &p.ExampleMessages},
	} {
		if err := decodeList(col.raw, col.dest); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *sqlStore) SaveStyleProfile(ctx context.Context, p *models.StyleProfile) error {
	query := `
		INSERT INTO style_profile (id, tone, formality, avg_length, min_length, max_length,
			emoji_frequency, favorite_emojis, common_phrases, common_words, use_slang,
			slang_percentage, uses_punctuation, avg_punctuation, example_messages,
			total_analyzed, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tone = excluded.tone,
			formality = excluded.formality,
			avg_length = excluded.avg_length,
			min_length = excluded.min_length,
			max_length = excluded.max_length,
			emoji_frequency = excluded.emoji_frequency,
			favorite_emojis = excluded.favorite_emojis,
			common_phrases = excluded.common_phrases,
			common_words = excluded.common_words,
			use_slang = excluded.use_slang,
			slang_percentage = excluded.slang_percentage,
			uses_punctuation = excluded.uses_punctuation,
			avg_punctuation = excluded.avg_punctuation,
			example_messages = excluded.example_messages,
			total_analyzed = excluded.total_analyzed,
			updated_at = excluded.updated_at`

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		string(p.Tone),
		p.Formality,
		p.AvgLength,
		p.MinLength,
		p.MaxLength,
		p.EmojiFrequency,
		encodeList(p.FavoriteEmojis),
		encodeList(p.CommonPhrases),
		encodeList(p.CommonWords),
		p.UseSlang,
		p.SlangPercentage,
		p.UsesPunctuation,
		p.AvgPunctuation,
		encodeList(p.ExampleMessages),
		p.TotalAnalyzed,
		updatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error saving style profile: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func encodeList(list []string) string {
	if list == nil {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string, dest *[]string) error {
	if raw == "" {
		*dest = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("error decoding profile list: %w", err)
	}
	return nil
}
