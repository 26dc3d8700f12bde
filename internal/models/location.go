package models

import (
	"strings"
)

// Location is a node of the administrative hierarchy (state, district, ward).
// Code is the lower-case dotted path from the root, e.g. "so.22.8".
type Location struct {
	Code       string   `json:"code" db:"code"`
	Name       string   `json:"name" db:"name"`
	Level      string   `json:"level" db:"level"`
	ParentCode *string  `json:"parentCode,omitempty" db:"parent_code"`
	Lat        *float64 `json:"lat,omitempty" db:"lat"`
	Lng        *float64 `json:"lng,omitempty" db:"lng"`

	// Ancestors holds ancestor names nearest first: ACHIDA -> [WURNO, SOKOTO].
	Ancestors []string `json:"ancestors,omitempty" db:"-"`
}

// DisplayName renders the location with its level and ancestor chain,
// e.g. "Ward: ACHIDA, WURNO, SOKOTO".
func (l *Location) DisplayName() string {
	parts := append([]string{l.Name}, l.Ancestors...)
	names := strings.Join(parts, ", ")
	if l.Level == "" {
		return names
	}
	return titleCase(l.Level) + ": " + names
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
