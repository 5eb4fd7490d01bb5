package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// ErrActivityNotFound is returned when no source knows a slug
var ErrActivityNotFound = errors.New("activity not found")

// Loader manages loading and caching of activity packs
type Loader struct {
	mu         sync.RWMutex
	dir        string
	categories map[string]*models.Category
	activities map[string]*models.Activity
}

// NewLoader creates a new content loader
func NewLoader() *Loader {
	return &Loader{
		categories: make(map[string]*models.Category),
		activities: make(map[string]*models.Activity),
	}
}

// LoadFromDir loads every pack under dir (flat files and category
// directories) and replaces the current catalog. On error the previous
// catalog is kept.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading content from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to stat content dir: %w", err)
	}

	categories := make(map[string]*models.Category)
	activities := make(map[string]*models.Activity)

	// Flat files belong to the "general" category unless they say otherwise
	flat, err := yamlFiles(dir)
	if err != nil {
		return err
	}
	for _, file := range flat {
		a, err := loadActivity(file, "general")
		if err != nil {
			slog.Warn("failed to load activity", "file", file, "error", err)
			continue
		}
		addActivity(activities, a, file)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		categoryDir := filepath.Join(dir, entry.Name())
		category, err := loadCategory(entry.Name(), categoryDir)
		if err != nil {
			slog.Warn("failed to load category", "dir", entry.Name(), "error", err)
			continue
		}
		categories[category.ID] = category

		files, err := yamlFiles(categoryDir)
		if err != nil {
			slog.Warn("failed to list category files", "dir", entry.Name(), "error", err)
			continue
		}
		for _, file := range files {
			if isCategoryFile(file) {
				continue
			}
			a, err := loadActivity(file, category.ID)
			if err != nil {
				slog.Warn("failed to load activity", "file", file, "error", err)
				continue
			}
			addActivity(activities, a, file)
		}
	}

	for _, a := range activities {
		c, ok := categories[a.Category]
		if !ok {
			c = &models.Category{ID: a.Category, Name: a.Category}
			categories[a.Category] = c
		}
		c.ActivitiesCount++
	}

	l.mu.Lock()
	l.dir = dir
	l.categories = categories
	l.activities = activities
	l.mu.Unlock()

	slog.Info("content loaded", "categories", len(categories), "activities", len(activities))
	return nil
}

// Dir returns the directory of the last successful load
func (l *Loader) Dir() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dir
}

func addActivity(activities map[string]*models.Activity, a *models.Activity, file string) {
	if prev, ok := activities[a.Slug]; ok {
		slog.Warn("duplicate activity slug, keeping first", "slug", a.Slug, "file", file, "kept_category", prev.Category)
		return
	}
	activities[a.Slug] = a
}

func yamlFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func isCategoryFile(path string) bool {
	base := filepath.Base(path)
	return base == "category.yaml" || base == "category.yml"
}

// loadCategory reads <dir>/category.yaml. A directory without one still forms
// a category named after the directory.
func loadCategory(id, dir string) (*models.Category, error) {
	category := &models.Category{ID: id, Name: id}

	data, err := os.ReadFile(filepath.Join(dir, "category.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return category, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read category.yaml: %w", err)
	}

	var cf categoryFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse category.yaml: %w", err)
	}
	if cf.Name != "" {
		category.Name = cf.Name
	}
	category.Description = cf.Description
	category.Icon = cf.Icon
	category.Order = cf.Order
	return category, nil
}

// loadActivity loads a single activity YAML file
func loadActivity(path, category string) (*models.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity file: %w", err)
	}

	var af activityFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("failed to parse activity YAML: %w", err)
	}

	// Use slug from YAML, fall back to filename without extension
	slug := af.Slug
	if slug == "" {
		base := filepath.Base(path)
		slug = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if af.Title == "" {
		return nil, fmt.Errorf("activity title is required")
	}
	kind := game.Kind(strings.ToLower(af.Type))
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown activity type %q", af.Type)
	}
	if af.Category != "" {
		category = af.Category
	}

	return &models.Activity{
		Slug:         slug,
		Type:         kind,
		Title:        af.Title,
		Description:  af.Description,
		Category:     category,
		Difficulty:   af.Difficulty,
		TimeLimit:    af.TimeLimit,
		Instructions: af.Instructions,
		Tags:         af.Tags,
		Order:        af.Order,
		Content:      af.Content,
	}, nil
}

// Activity implements Source
func (l *Loader) Activity(_ context.Context, slug string) (*models.Activity, error) {
	if a := l.Get(slug); a != nil {
		return a, nil
	}
	return nil, ErrActivityNotFound
}

// Get retrieves an activity by slug
func (l *Loader) Get(slug string) *models.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activities[slug]
}

// List returns activities matching filters, ordered by category, order, slug
func (l *Loader) List(filters models.ActivityFilters) []*models.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Activity, 0, len(l.activities))
	for _, a := range l.activities {
		if filters.Matches(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Slug < b.Slug
	})
	return result
}

// ListCategories returns all categories ordered for display
func (l *Loader) ListCategories() []*models.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Category, 0, len(l.categories))
	for _, c := range l.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// GetCategory returns a category by ID
func (l *Loader) GetCategory(id string) *models.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.categories[id]
}

// Add programmatically adds an activity
func (l *Loader) Add(a *models.Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.activities[a.Slug]; !ok {
		c, ok := l.categories[a.Category]
		if !ok {
			c = &models.Category{ID: a.Category, Name: a.Category}
			l.categories[a.Category] = c
		}
		c.ActivitiesCount++
	}
	l.activities[a.Slug] = a
}

// --- YAML file structs ---

// categoryFile represents the YAML structure of a category.yaml file
type categoryFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Order       int    `yaml:"order"`
}

// activityFile represents the YAML structure of an activity file. Content is
// either a mapping or a JSON string.
type activityFile struct {
	Slug         string   `yaml:"slug"`
	Type         string   `yaml:"type"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Category     string   `yaml:"category"`
	Difficulty   string   `yaml:"difficulty"`
	TimeLimit    int      `yaml:"time_limit"`
	Instructions string   `yaml:"instructions"`
	Tags         []string `yaml:"tags"`
	Order        int      `yaml:"order"`
	Content      any      `yaml:"content"`
}
