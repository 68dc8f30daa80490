package catalog

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownLabel is reported for class indices outside the label list.
const UnknownLabel = "Unknown"

// Category groups labels that share an overlay colour.
type Category string

const (
	CategoryHuman   Category = "human"
	CategoryVehicle Category = "vehicle"
	// CategoryAnimal also covers every label not matched by another category.
	CategoryAnimal Category = "animal"
)

var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

// DefaultLabels is the class order the bundled model was trained with.
var DefaultLabels = []string{"Animal", "Binocular", "Fire", "Helicopter", "Poacher", "Ranger", "Vehicle", "Weapon"}

var (
	defaultHumanWords   = []string{"hunter", "human", "poacher", "ranger"}
	defaultVehicleWords = []string{"bike", "car", "jeep", "truck", "van", "helicopter", "vehicle"}
)

// File is the YAML layout accepted by LoadFile.
type File struct {
	Labels     []string `yaml:"labels"`
	Categories struct {
		Human   []string `yaml:"human"`
		Vehicle []string `yaml:"vehicle"`
	} `yaml:"categories"`
}

// Catalog maps class indices to labels and labels to display categories.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	labels  []string
	human   map[string]struct{}
	vehicle map[string]struct{}
}

// New builds a catalog from an ordered label list and category word lists.
// Nil word lists fall back to the built-in ones.
func New(labels, humanWords, vehicleWords []string) (*Catalog, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("catalog needs at least one label")
	}
	seen := make(map[string]struct{}, len(labels))
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("label %d is empty", i)
		}
		if _, dup := seen[l]; dup {
			return nil, fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = struct{}{}
	}
	if humanWords == nil {
		humanWords = defaultHumanWords
	}
	if vehicleWords == nil {
		vehicleWords = defaultVehicleWords
	}

	return &Catalog{
		labels:  append([]string(nil), labels...),
		human:   wordSet(humanWords),
		vehicle: wordSet(vehicleWords),
	}, nil
}

// Default returns the built-in wildlife catalog.
func Default() *Catalog {
	c, _ := New(DefaultLabels, nil, nil)
	return c
}

// LoadFile reads a YAML catalog. An empty path yields the default catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	labels := f.Labels
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return New(labels, f.Categories.Human, f.Categories.Vehicle)
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}

// Labels returns a copy of the ordered label list.
func (c *Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Len is the number of classes the model is expected to emit.
func (c *Catalog) Len() int {
	return len(c.labels)
}

// Label maps a class index to its label, or UnknownLabel when out of range.
func (c *Catalog) Label(classID int) string {
	if classID < 0 || classID >= len(c.labels) {
		return UnknownLabel
	}
	return c.labels[classID]
}

// CategoryOf classifies a label, ignoring case.
func (c *Catalog) CategoryOf(label string) Category {
	key := strings.ToLower(label)
	if _, ok := c.human[key]; ok {
		return CategoryHuman
	}
	if _, ok := c.vehicle[key]; ok {
		return CategoryVehicle
	}
	return CategoryAnimal
}

// ColorOf returns the overlay colour for a label.
func (c *Catalog) ColorOf(label string) color.RGBA {
	switch c.CategoryOf(label) {
	case CategoryHuman:
		return Green
	case CategoryVehicle:
		return Red
	default:
		return Blue
	}
}

// NewStats returns a per-request counter with every label seeded at zero.
func (c *Catalog) NewStats() map[string]int {
	stats := make(map[string]int, len(c.labels)+1)
	for _, l := range c.labels {
		stats[l] = 0
	}
	return stats
}
