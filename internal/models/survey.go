package models

import (
	"time"
)

// ResponseType is the expected answer type of a question.
type ResponseType string

const (
	ResponseText   ResponseType = "text"
	ResponseNumber ResponseType = "number"
)

// Question is one item of a survey. SummaryText is the short label used in
// SMS prompts, errors and confirmations.
type Question struct {
	Text         string       `json:"text" yaml:"text"`
	SummaryText  string       `json:"summaryText" yaml:"summaryText"`
	ResponseType ResponseType `json:"responseType" yaml:"responseType"`
	ExternalKey  string       `json:"externalKey,omitempty" yaml:"externalKey,omitempty"`
}

// Survey is the read-only schema a conversation collects answers for.
type Survey struct {
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	Tag            string     `json:"tag,omitempty" db:"tag"`
	Active         bool       `json:"active" db:"active"`
	Questions      []Question `json:"questions" db:"-"`
	MapID          *string    `json:"mapId,omitempty" db:"map_id"`
	TopicID        *string    `json:"topicId,omitempty" db:"topic_id"`
	ExternalAPIKey *string    `json:"-" db:"external_api_key"`

	// MessageSet picks the template set used for replies; Messages overrides
	// individual templates by name.
	MessageSet string            `json:"messageSet" db:"message_set"`
	Messages   map[string]string `json:"messages,omitempty" db:"-"`

	// LocationLevels restricts which gazetteer levels can be registered for
	// this survey. Empty means any level.
	LocationLevels []string `json:"locationLevels,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasCrisisMap reports whether submitted reports are pushed to Crisis Map.
func (s *Survey) HasCrisisMap() bool {
	return s.MapID != nil && *s.MapID != "" &&
		s.TopicID != nil && *s.TopicID != "" &&
		s.ExternalAPIKey != nil && *s.ExternalAPIKey != ""
}

// AllowsLevel reports whether locations of the given level can be registered.
func (s *Survey) AllowsLevel(level string) bool {
	if len(s.LocationLevels) == 0 {
		return true
	}
	for _, l := range s.LocationLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Labels returns question summary labels in schema order.
func (s *Survey) Labels() []string {
	labels := make([]string, len(s.Questions))
	for i, q := range s.Questions {
		labels[i] = q.SummaryText
	}
	return labels
}
