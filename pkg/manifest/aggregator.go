package manifest

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Aggregator groups plugin records into categories
type Aggregator struct {
	now           func() time.Time
	recencyWindow time.Duration
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock sets the function used to sample the current time once per call
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRecencyWindow overrides the recently-used window
func WithRecencyWindow(window time.Duration) Option {
	return func(a *Aggregator) {
		if window > 0 {
			a.recencyWindow = window
		}
	}
}

// NewAggregator creates a new aggregator
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		now:           time.Now,
		recencyWindow: DefaultRecencyWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate groups records by derived category and orders each group by sortBy
func (a *Aggregator) Aggregate(records []PluginRecord, sortBy SortKey) (*GroupedResult, error) {
	return aggregate(records, sortBy, a.now(), a.recencyWindow)
}

// Aggregate groups records using the wall clock and the default recency window
func Aggregate(records []PluginRecord, sortBy SortKey) (*GroupedResult, error) {
	return aggregate(records, sortBy, time.Now(), DefaultRecencyWindow)
}

// AggregateAt groups records judging recency against now
func AggregateAt(records []PluginRecord, sortBy SortKey, now time.Time) (*GroupedResult, error) {
	return aggregate(records, sortBy, now, DefaultRecencyWindow)
}

func aggregate(records []PluginRecord, sortBy SortKey, now time.Time, window time.Duration) (*GroupedResult, error) {
	if !sortBy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortKey, sortBy)
	}
	if err := Validate(records); err != nil {
		return nil, err
	}

	result := &GroupedResult{Groups: make([]CategoryGroup, 0)}
	if len(records) == 0 {
		return result, nil
	}

	maxUsage := MaxUsage(records)
	index := make(map[string]int)

	for _, record := range records {
		enriched := Enrich(record, maxUsage, now, window)

		pos, ok := index[enriched.DerivedCategory]
		if !ok {
			pos = len(result.Groups)
			index[enriched.DerivedCategory] = pos
			result.Groups = append(result.Groups, CategoryGroup{Category: enriched.DerivedCategory})
		}
		result.Groups[pos].Plugins = append(result.Groups[pos].Plugins, enriched)
	}

	cmp := compareFunc(sortBy)
	for i := range result.Groups {
		slices.SortStableFunc(result.Groups[i].Plugins, cmp)
	}

	return result, nil
}

// compareFunc returns the within-category ordering for a sort key. Ties
// compare equal so the stable sort keeps input order.
func compareFunc(sortBy SortKey) func(a, b EnrichedPluginRecord) int {
	switch sortBy {
	case SortByUsage:
		return func(a, b EnrichedPluginRecord) int {
			switch {
			case a.Usage > b.Usage:
				return -1
			case a.Usage < b.Usage:
				return 1
			default:
				return 0
			}
		}
	case SortByRecent:
		return func(a, b EnrichedPluginRecord) int {
			switch {
			case a.LastUsed == nil && b.LastUsed == nil:
				return 0
			case a.LastUsed == nil:
				return 1
			case b.LastUsed == nil:
				return -1
			default:
				return b.LastUsed.Compare(*a.LastUsed)
			}
		}
	default:
		return func(a, b EnrichedPluginRecord) int {
			return strings.Compare(a.Name, b.Name)
		}
	}
}
