package manifest

import (
	"time"
)

// UncategorizedCategory is assigned when no derivation rule produces a category
const UncategorizedCategory = "Uncategorized"

// DefaultRecencyWindow is how long after its last use a plugin counts as recently used
const DefaultRecencyWindow = 5 * time.Minute

// PluginRecord describes a single plugin as published in a manifest
type PluginRecord struct {
	Name         string     `json:"name" yaml:"name"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Usage        int64      `json:"usage" yaml:"usage"`
	LastUsed     *time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	Tags         []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Category     string     `json:"category,omitempty" yaml:"category,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	RequiresLLM  bool       `json:"requires_llm,omitempty" yaml:"requires_llm,omitempty"`
	Namespace    string     `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Path         string     `json:"path,omitempty" yaml:"path,omitempty"`
}

// Clone returns a deep copy of the record
func (p PluginRecord) Clone() PluginRecord {
	out := p
	if p.LastUsed != nil {
		t := *p.LastUsed
		out.LastUsed = &t
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Capabilities != nil {
		out.Capabilities = append([]string(nil), p.Capabilities...)
	}
	return out
}

// EnrichedPluginRecord is a plugin record with its derived display fields
type EnrichedPluginRecord struct {
	PluginRecord

	DerivedCategory string   `json:"derived_category"`
	DerivedTags     []string `json:"derived_tags"`
	UsageRatio      float64  `json:"usage_ratio"`
	RecentlyUsed    bool     `json:"recently_used"`
}

// CategoryGroup holds the records of one derived category in display order
type CategoryGroup struct {
	Category string                 `json:"category"`
	Plugins  []EnrichedPluginRecord `json:"plugins"`
}

// GroupedResult is the ordered category -> records mapping produced by Aggregate.
// Groups are kept in order of first appearance in the input.
type GroupedResult struct {
	Groups []CategoryGroup `json:"categories"`
}

// Categories returns the category names in display order
func (g *GroupedResult) Categories() []string {
	names := make([]string, 0, len(g.Groups))
	for _, group := range g.Groups {
		names = append(names, group.Category)
	}
	return names
}

// Group returns the records of a category
func (g *GroupedResult) Group(category string) ([]EnrichedPluginRecord, bool) {
	for _, group := range g.Groups {
		if group.Category == category {
			return group.Plugins, true
		}
	}
	return nil, false
}

// Len returns the number of categories
func (g *GroupedResult) Len() int {
	return len(g.Groups)
}

// Total returns the number of records across all categories
func (g *GroupedResult) Total() int {
	total := 0
	for _, group := range g.Groups {
		total += len(group.Plugins)
	}
	return total
}

// SortKey selects how records are ordered within each category
type SortKey string

const (
	SortByName   SortKey = "byName"
	SortByUsage  SortKey = "byUsage"
	SortByRecent SortKey = "byRecent"
)

// IsValid reports whether the key is one of the recognized sort keys
func (k SortKey) IsValid() bool {
	switch k {
	case SortByName, SortByUsage, SortByRecent:
		return true
	default:
		return false
	}
}

func (k SortKey) String() string {
	return string(k)
}
