package models

import (
	"github.com/terra-clan/pylearn-arcade/internal/game"
)

// Activity is a single playable learning unit, addressed by slug.
type Activity struct {
	Slug         string    `yaml:"slug" json:"slug"`
	Type         game.Kind `yaml:"type" json:"type"`
	Title        string    `yaml:"title" json:"title"`
	Description  string    `yaml:"description" json:"description,omitempty"`
	Category     string    `yaml:"category" json:"category"`
	Difficulty   string    `yaml:"difficulty" json:"difficulty,omitempty"` // easy | medium | hard
	TimeLimit    int       `yaml:"time_limit" json:"time_limit,omitempty"` // seconds
	Instructions string    `yaml:"instructions" json:"instructions,omitempty"`
	Tags         []string  `yaml:"tags" json:"tags,omitempty"`
	Order        int       `yaml:"order" json:"order"`

	// Content is either a JSON string or an already decoded object. Its shape
	// depends on Type and is normalized by the engine that plays it.
	Content any `yaml:"content" json:"-"`
}

// IsPlayable returns true if one of the game engines can run the activity
func (a *Activity) IsPlayable() bool {
	return a != nil && a.Type.Valid()
}

// ActivityFilters narrows catalog listings
type ActivityFilters struct {
	Category string
	Type     game.Kind
	Tag      string
}

// Matches reports whether a passes every set filter
func (f ActivityFilters) Matches(a *Activity) bool {
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Tag != "" {
		for _, t := range a.Tags {
			if t == f.Tag {
				return true
			}
		}
		return false
	}
	return true
}
