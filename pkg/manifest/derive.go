package manifest

import (
	"strings"
	"time"
)

// DeriveCategory returns the display category of a record
func DeriveCategory(record PluginRecord) string {
	if record.Category != "" {
		return record.Category
	}

	if category := secondToLast(record.Path); category != "" {
		return category
	}

	if strings.Contains(record.Name, "/") {
		if category := secondToLast(record.Name); category != "" {
			return category
		}
	}

	if idx := strings.Index(record.Name, "_"); idx > 0 {
		return record.Name[:idx]
	}

	return UncategorizedCategory
}

// secondToLast returns the second-to-last slash-delimited segment, or ""
// when s has fewer than two segments
func secondToLast(s string) string {
	if s == "" {
		return ""
	}
	segments := strings.Split(s, "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-2]
}

// DeriveTags returns the record's tags followed by the directory segments of
// its path, without duplicates
func DeriveTags(record PluginRecord) []string {
	var dirs []string
	if record.Path != "" {
		segments := strings.Split(record.Path, "/")
		dirs = segments[:len(segments)-1]
	}

	tags := make([]string, 0, len(record.Tags)+len(dirs))
	seen := make(map[string]struct{}, cap(tags))

	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, tag := range record.Tags {
		add(tag)
	}
	for _, dir := range dirs {
		// leading, trailing and doubled slashes produce empty segments
		if dir == "" {
			continue
		}
		add(dir)
	}

	return tags
}

// MaxUsage returns the largest usage count of the records, floored at 1
func MaxUsage(records []PluginRecord) int64 {
	max := int64(1)
	for _, record := range records {
		if record.Usage > max {
			max = record.Usage
		}
	}
	return max
}

// IsRecentlyUsed reports whether lastUsed falls within window of now
func IsRecentlyUsed(lastUsed *time.Time, now time.Time, window time.Duration) bool {
	if lastUsed == nil {
		return false
	}
	return now.Sub(*lastUsed) < window
}

// Enrich computes the derived fields of a single record. maxUsage and now
// are call-scoped values shared by every record of one aggregation.
func Enrich(record PluginRecord, maxUsage int64, now time.Time, window time.Duration) EnrichedPluginRecord {
	if maxUsage < 1 {
		maxUsage = 1
	}
	return EnrichedPluginRecord{
		PluginRecord:    record.Clone(),
		DerivedCategory: DeriveCategory(record),
		DerivedTags:     DeriveTags(record),
		UsageRatio:      float64(record.Usage) / float64(maxUsage),
		RecentlyUsed:    IsRecentlyUsed(record.LastUsed, now, window),
	}
}
