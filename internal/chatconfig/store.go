// Package chatconfig persists which conversations the bot may answer.
package chatconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/xaenox/mimic-bot/internal/models"
	"go.uber.org/zap"
)

// Store is the authorization config backed by a JSON file. Every mutation
// writes the whole file before returning.
type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	config *models.ChatConfig
}

// Load reads the config at path, writing the default config when the file
// does not exist yet.
func Load(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("Chat config not found, creating default", zap.String("path", path))
		s.config = models.DefaultChatConfig()
		if err := s.persist(s.config); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chat config: %w", err)
	}

	cfg := models.DefaultChatConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse chat config %s: %w", path, err)
	}
	normalize(cfg)
	s.config = cfg

	logger.Info("Chat config loaded",
		zap.String("path", path),
		zap.Int("authorized_chats", len(cfg.AuthorizedChats)),
		zap.Int("authorized_groups", len(cfg.AuthorizedGroups)))
	return s, nil
}

// NewInMemory returns a store that never touches disk.
func NewInMemory(cfg *models.ChatConfig, logger *zap.Logger) *Store {
	if cfg == nil {
		cfg = models.DefaultChatConfig()
	}
	normalize(cfg)
	return &Store{config: cfg, logger: logger}
}

func normalize(cfg *models.ChatConfig) {
	if cfg.AuthorizedChats == nil {
		cfg.AuthorizedChats = []string{}
	}
	if cfg.AuthorizedGroups == nil {
		cfg.AuthorizedGroups = []string{}
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = []string{}
	}
	if cfg.SpecialContacts == nil {
		cfg.SpecialContacts = map[string]models.SpecialContact{}
	}
}

// IsAuthorized applies, in order: global enabled flag, blacklist,
// respond-to-all, then group or individual membership.
func (s *Store) IsAuthorized(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.config.Enabled {
		return false
	}
	if slices.Contains(s.config.Blacklist, chatID) {
		return false
	}
	if s.config.Settings.RespondToAll {
		return true
	}
	if models.IsGroup(chatID) {
		return slices.Contains(s.config.AuthorizedGroups, chatID)
	}
	return slices.Contains(s.config.AuthorizedChats, chatID)
}

// Authorize adds chatID to the group or individual set. It reports whether
// the config changed.
func (s *Store) Authorize(chatID string, isGroup bool) (bool, error) {
	return s.mutate(func(cfg *models.ChatConfig) bool {
		list := &cfg.AuthorizedChats
		if isGroup {
			list = &cfg.AuthorizedGroups
		}
		if slices.Contains(*list, chatID) {
			return false
		}
		*list = append(*list, chatID)
		return true
	})
}

// Deauthorize removes chatID from whichever authorized set holds it.
func (s *Store) Deauthorize(chatID string) (bool, error) {
	return s.mutate(func(cfg *models.ChatConfig) bool {
		return removeAuthorized(cfg, chatID)
	})
}

// Blacklist adds chatID to the blacklist and drops any authorization.
func (s *Store) Blacklist(chatID string) (bool, error) {
	return s.mutate(func(cfg *models.ChatConfig) bool {
		removed := removeAuthorized(cfg, chatID)
		if slices.Contains(cfg.Blacklist, chatID) {
			return removed
		}
		cfg.Blacklist = append(cfg.Blacklist, chatID)
		return true
	})
}

func (s *Store) Unblacklist(chatID string) (bool, error) {
	return s.mutate(func(cfg *models.ChatConfig) bool {
		before := len(cfg.Blacklist)
		cfg.Blacklist = slices.DeleteFunc(cfg.Blacklist, func(id string) bool { return id == chatID })
		return len(cfg.Blacklist) != before
	})
}

func removeAuthorized(cfg *models.ChatConfig, chatID string) bool {
	match := func(id string) bool { return id == chatID }
	before := len(cfg.AuthorizedChats) + len(cfg.AuthorizedGroups)
	cfg.AuthorizedChats = slices.DeleteFunc(cfg.AuthorizedChats, match)
	cfg.AuthorizedGroups = slices.DeleteFunc(cfg.AuthorizedGroups, match)
	return len(cfg.AuthorizedChats)+len(cfg.AuthorizedGroups) != before
}

// SpecialContact returns the special-contact metadata for chatID, if any.
func (s *Store) SpecialContact(chatID string) (*models.SpecialContact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.config.SpecialContacts[chatID]
	if !ok {
		return nil, false
	}
	sc.Nicknames = slices.Clone(sc.Nicknames)
	return &sc, true
}

func (s *Store) Settings() models.ChatSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Settings
}

// Snapshot returns a deep copy of the current config.
func (s *Store) Snapshot() *models.ChatConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(s.config)
}

// mutate applies fn to a copy of the config and persists it when fn reports a
// change. On a write failure the in-memory config is left untouched.
func (s *Store) mutate(fn func(cfg *models.ChatConfig) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneConfig(s.config)
	if !fn(next) {
		return false, nil
	}
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.config = next
	return true, nil
}

func (s *Store) persist(cfg *models.ChatConfig) error {
	if s.path == "" {
		return nil
	}

	if cfg.Info == nil {
		cfg.Info = &models.ChatConfigInfo{}
	}
	cfg.Info.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create chat config directory: %w", err)
	}

	// Write to a sibling temp file and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".chats-*.json")
	if err != nil {
		return fmt.Errorf("create temp chat config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write chat config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chat config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace chat config: %w", err)
	}

	s.logger.Debug("Chat config saved", zap.String("path", s.path))
	return nil
}

func cloneConfig(cfg *models.ChatConfig) *models.ChatConfig {
	cp := *cfg
	cp.AuthorizedChats = slices.Clone(cfg.AuthorizedChats)
	cp.AuthorizedGroups = slices.Clone(cfg.AuthorizedGroups)
	cp.Blacklist = slices.Clone(cfg.Blacklist)
	cp.SpecialContacts = make(map[string]models.SpecialContact, len(cfg.SpecialContacts))
	for k, v := range cfg.SpecialContacts {
		v.Nicknames = slices.Clone(v.Nicknames)
		cp.SpecialContacts[k] = v
	}
	if cfg.Info != nil {
		info := *cfg.Info
		cp.Info = &info
	}
	return &cp
}
