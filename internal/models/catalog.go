package models

// Category groups activities on the browse page (e.g., basics, data-structures)
type Category struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	Description     string `yaml:"description" json:"description"`
	Icon            string `yaml:"icon" json:"icon,omitempty"`
	Order           int    `yaml:"order" json:"order"`
	ActivitiesCount int    `yaml:"-" json:"activitiesCount"`
}

// CatalogActivity is the listing view of an activity, without its content
type CatalogActivity struct {
	Slug       string   `json:"slug"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Category   string   `json:"categoryId"`
	Difficulty string   `json:"difficulty,omitempty"` // easy | medium | hard
	TimeLimit  int      `json:"timeLimit,omitempty"`  // seconds
	Tags       []string `json:"tags"`
}

// Summary converts an activity into its listing view
func (a *Activity) Summary() CatalogActivity {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return CatalogActivity{
		Slug:       a.Slug,
		Type:       string(a.Type),
		Title:      a.Title,
		Category:   a.Category,
		Difficulty: a.Difficulty,
		TimeLimit:  a.TimeLimit,
		Tags:       tags,
	}
}
