package models

import "time"

// ChatConfig is the authorization config persisted as chats.json.
type ChatConfig struct {
	Enabled          bool                      `json:"enabled"`
	AuthorizedChats  []string                  `json:"authorizedChats"`
	AuthorizedGroups []string                  `json:"authorizedGroups"`
	Blacklist        []string                  `json:"blacklist"`
	Settings         ChatSettings              `json:"settings"`
	SpecialContacts  map[string]SpecialContact `json:"specialContacts,omitempty"`
	Info             *ChatConfigInfo           `json:"_info,omitempty"`
}

type ChatSettings struct {
	RespondToAll bool `json:"respondToAll"`
	OnlyMentions bool `json:"onlyMentions"`
	AutoLearn    bool `json:"autoLearn"`
	// ResponseDelay is the base typing delay in milliseconds.
	ResponseDelay     int64 `json:"responseDelay"`
	MaxResponseLength int   `json:"maxResponseLength"`
	// AutoLearningInterval is the style refresh interval in milliseconds.
	AutoLearningInterval int64 `json:"autoLearningInterval"`
}

type ChatConfigInfo struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Description string    `json:"description,omitempty"`
}

// SpecialContact marks a conversation for an alternate persona and cadence.
type SpecialContact struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Affectionate bool     `json:"affectionate"`
	Nicknames    []string `json:"nicknames,omitempty"`
	// DebounceMS overrides the special-contact debounce window when > 0.
	DebounceMS int64 `json:"debounceMs,omitempty"`
}

// DefaultChatConfig is written when no config file exists.
func DefaultChatConfig() *ChatConfig {
	return &ChatConfig{
		Enabled:          true,
		AuthorizedChats:  []string{},
		AuthorizedGroups: []string{},
		Blacklist:        []string{},
		Settings: ChatSettings{
			RespondToAll:         false,
			OnlyMentions:         false,
			AutoLearn:            true,
			ResponseDelay:        1500,
			MaxResponseLength:    500,
			AutoLearningInterval: (6 * time.Hour).Milliseconds(),
		},
		SpecialContacts: map[string]SpecialContact{},
		Info: &ChatConfigInfo{
			Description: "Configure which chats and groups the bot may answer",
		},
	}
}
